package app

import (
	"context"
	"sort"
	"time"

	"live-quiz-service/internal/domain"
)

// GetLeaderboard aggregates the ledger into a ranked scoreboard. Every current
// player is listed, including those without answers.
func (s *GameService) GetLeaderboard(ctx context.Context, code string) (domain.Leaderboard, error) {
	session, err := s.sessions.Get(ctx, NormalizeCode(code))
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return s.leaderboardFor(ctx, session)
}

func (s *GameService) leaderboardFor(ctx context.Context, session domain.GameSession) (domain.Leaderboard, error) {
	started := time.Now()
	players, err := s.players.List(ctx, session.Code)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	records, err := s.answers.List(ctx, session.Code)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb := BuildLeaderboard(session, players, records, s.now())
	s.metrics.ObserveLeaderboard(time.Since(started))
	return lb, nil
}

// BuildLeaderboard sums points per player. Entries are ordered by total score
// descending, ties broken by join order; equal scores share a rank.
// Records of players no longer in the game are ignored.
func BuildLeaderboard(session domain.GameSession, players []domain.Player, records []domain.AnswerRecord, now time.Time) domain.Leaderboard {
	byPlayer := make(map[string][]domain.AnswerRecord, len(players))
	for _, rec := range records {
		byPlayer[rec.PlayerID] = append(byPlayer[rec.PlayerID], rec)
	}

	type row struct {
		entry domain.LeaderboardEntry
		seq   int64
	}
	rows := make([]row, 0, len(players))
	for _, p := range players {
		entry := domain.LeaderboardEntry{PlayerID: p.ID, Name: p.Name, Avatar: p.Avatar}
		answers := byPlayer[p.ID]
		for _, rec := range answers {
			entry.TotalScore += rec.PointsAwarded
			if rec.IsCorrect {
				entry.CorrectCount++
			}
		}
		entry.Streak = currentStreak(answers, lastClosedQuestion(session))
		rows = append(rows, row{entry: entry, seq: p.JoinSeq})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].entry.TotalScore != rows[j].entry.TotalScore {
			return rows[i].entry.TotalScore > rows[j].entry.TotalScore
		}
		return rows[i].seq < rows[j].seq
	})

	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, r := range rows {
		r.entry.Rank = i + 1
		if i > 0 && r.entry.TotalScore == entries[i-1].TotalScore {
			r.entry.Rank = entries[i-1].Rank
		}
		entries[i] = r.entry
	}

	return domain.Leaderboard{
		GameCode:      session.Code,
		Phase:         session.Phase,
		QuestionIndex: session.CurrentQuestionIndex,
		Entries:       entries,
		UpdatedAt:     now,
	}
}

// lastClosedQuestion is the highest question index that no longer accepts
// answers, or -1.
func lastClosedQuestion(session domain.GameSession) int {
	if session.Phase == domain.PhaseQuestion {
		return session.CurrentQuestionIndex - 1
	}
	return session.CurrentQuestionIndex
}

// currentStreak counts consecutive correct answers up to lastClosed. A
// question skipped after the first answer breaks the streak, including
// closed questions after the player's latest answer. The open question does
// not count until it closes.
func currentStreak(records []domain.AnswerRecord, lastClosed int) int {
	if len(records) == 0 {
		return 0
	}
	sorted := make([]domain.AnswerRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].QuestionIndex < sorted[j].QuestionIndex })

	streak := 0
	prev := -1
	for _, rec := range sorted {
		if rec.QuestionIndex != prev+1 {
			streak = 0
		}
		if rec.IsCorrect {
			streak++
		} else {
			streak = 0
		}
		prev = rec.QuestionIndex
	}
	if prev < lastClosed {
		return 0
	}
	return streak
}
