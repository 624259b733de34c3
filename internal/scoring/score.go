// Package scoring maps a submitted answer to correctness and points. It is
// pure: nothing here touches storage or clocks.
package scoring

import (
	"math"

	"live-quiz-service/internal/domain"
)

const (
	// BasePoints is awarded for any correct answer inside the timer.
	BasePoints = 100
	// SpeedBonusPerSecond is awarded per second left on the timer.
	SpeedBonusPerSecond = 2
)

// Result is the outcome of scoring one submission.
type Result struct {
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
	// Late is set when the answer arrived after the timer expired.
	Late bool `json:"late"`
}

// Score grades a submission. timerSeconds <= 0 falls back to the question timer.
func Score(q domain.Question, submitted domain.AnswerValue, elapsedSeconds, timerSeconds float64) Result {
	if timerSeconds <= 0 {
		timerSeconds = float64(q.Timer())
	}
	correct := IsCorrect(q, submitted)
	return Result{
		Correct: correct,
		Points:  Points(correct, elapsedSeconds, timerSeconds),
		Late:    elapsedSeconds > timerSeconds,
	}
}

// Points returns 100 + 2*(timer-elapsed) rounded down for a correct answer
// inside the timer, and zero otherwise.
func Points(correct bool, elapsedSeconds, timerSeconds float64) int {
	if !correct || elapsedSeconds > timerSeconds {
		return 0
	}
	remaining := math.Max(0, timerSeconds-math.Max(0, elapsedSeconds))
	return int(math.Floor(BasePoints + SpeedBonusPerSecond*remaining))
}

// IsCorrect compares the submission with the answer key of q.
func IsCorrect(q domain.Question, submitted domain.AnswerValue) bool {
	switch q.Kind {
	case domain.KindSelectAll:
		if !submitted.IsSet() {
			return false
		}
		return sameSet(submitted.Set, q.Answer.Set)
	case domain.KindMatch:
		if !submitted.IsPairs() {
			return false
		}
		return sameMapping(submitted.Pairs, q.CorrectMapping())
	default:
		// mcq, truefalse and oneword compare exactly, case included
		if !submitted.IsSingle() {
			return false
		}
		return submitted.Single == q.Answer.Single
	}
}

func sameSet(got, want []string) bool {
	if len(want) == 0 {
		return false
	}
	wantSet := make(map[string]struct{}, len(want))
	for _, v := range want {
		wantSet[v] = struct{}{}
	}
	gotSet := make(map[string]struct{}, len(got))
	for _, v := range got {
		if _, ok := wantSet[v]; !ok {
			return false
		}
		gotSet[v] = struct{}{}
	}
	return len(gotSet) == len(wantSet)
}

func sameMapping(got, want map[string]string) bool {
	if len(want) == 0 || len(got) != len(want) {
		return false
	}
	for left, right := range want {
		if got[left] != right {
			return false
		}
	}
	return true
}
