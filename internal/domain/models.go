package domain

import "time"

// DefaultTimerSeconds is used for questions that do not set a timer.
const DefaultTimerSeconds = 30

// QuestionKind selects how a submitted answer is compared to the answer key.
type QuestionKind string

const (
	KindMCQ       QuestionKind = "mcq"
	KindTrueFalse QuestionKind = "truefalse"
	KindOneWord   QuestionKind = "oneword"
	KindSelectAll QuestionKind = "selectall"
	KindMatch     QuestionKind = "match"
)

// Valid reports whether k is one of the supported kinds.
func (k QuestionKind) Valid() bool {
	switch k {
	case KindMCQ, KindTrueFalse, KindOneWord, KindSelectAll, KindMatch:
		return true
	}
	return false
}

// MatchPair is one left/right association of a match question.
type MatchPair struct {
	Left  string `json:"left" yaml:"left" validate:"required"`
	Right string `json:"right" yaml:"right" validate:"required"`
}

// Question is an immutable quiz question. Answer holds the key: a single
// value for mcq/truefalse/oneword, a set for selectall. Match questions
// carry their key in MatchPairs.
type Question struct {
	Text         string       `json:"text" yaml:"text" validate:"required"`
	Kind         QuestionKind `json:"type" yaml:"type" validate:"required"`
	Options      []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Answer       AnswerValue  `json:"answer" yaml:"answer"`
	MatchPairs   []MatchPair  `json:"matchPairs,omitempty" yaml:"matchPairs,omitempty" validate:"dive"`
	TimerSeconds int          `json:"timerInSeconds,omitempty" yaml:"timerInSeconds,omitempty" validate:"gte=0"`
}

// Timer returns the question timer in seconds, falling back to DefaultTimerSeconds.
func (q Question) Timer() int {
	if q.TimerSeconds <= 0 {
		return DefaultTimerSeconds
	}
	return q.TimerSeconds
}

// CorrectMapping returns the left->right key of a match question.
func (q Question) CorrectMapping() map[string]string {
	if len(q.MatchPairs) == 0 {
		return q.Answer.Pairs
	}
	m := make(map[string]string, len(q.MatchPairs))
	for _, p := range q.MatchPairs {
		m[p.Left] = p.Right
	}
	return m
}

// Quiz is a collection of questions owned by the quiz catalog. The question
// list must not change once a game referencing it has started.
type Quiz struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	Title     string     `json:"title" yaml:"title"`
	Theme     string     `json:"theme,omitempty" yaml:"theme,omitempty"`
	Questions []Question `json:"questions" yaml:"questions" validate:"dive"`
}

// Question returns the question at index i.
func (q Quiz) Question(i int) (Question, bool) {
	if i < 0 || i >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[i], true
}

// Player is a participant of one game. (GameCode, Name) is unique.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	GameCode string    `json:"gameCode"`
	JoinedAt time.Time `json:"joinedAt"`
	// JoinSeq orders players by join time and breaks leaderboard ties.
	JoinSeq int64 `json:"joinSeq"`
}

// AnswerRecord is one ledger entry. At most one exists per
// (PlayerID, GameCode, QuestionIndex).
type AnswerRecord struct {
	PlayerID        string      `json:"playerId"`
	GameCode        string      `json:"gameCode"`
	QuestionIndex   int         `json:"questionIndex"`
	QuestionText    string      `json:"questionText"`
	SubmittedAnswer AnswerValue `json:"submittedAnswer"`
	IsCorrect       bool        `json:"isCorrect"`
	PointsAwarded   int         `json:"pointsAwarded"`
	ElapsedSeconds  float64     `json:"elapsedSeconds"`
	AnsweredAt      time.Time   `json:"answeredAt"`
}

// AnswerSubmission is what a player sends for the open question.
// QuestionIndex is optional; when set it must name the current question.
type AnswerSubmission struct {
	Answer        AnswerValue `json:"answer"`
	QuestionIndex *int        `json:"questionIndex,omitempty"`
}

// LeaderboardEntry is a derived, ranked view of a player.
type LeaderboardEntry struct {
	PlayerID     string `json:"playerId"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	TotalScore   int    `json:"totalScore"`
	CorrectCount int    `json:"correctCount"`
	Streak       int    `json:"streak"`
	Rank         int    `json:"rank"`
}

// Leaderboard captures the ordered scoreboard for a game.
type Leaderboard struct {
	GameCode      string             `json:"gameCode"`
	Phase         Phase              `json:"phase"`
	QuestionIndex int                `json:"questionIndex"`
	Entries       []LeaderboardEntry `json:"entries"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}
