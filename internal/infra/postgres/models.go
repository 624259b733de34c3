package postgres

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        string          `bun:"id,pk"`
	Title     string          `bun:"title"`
	Data      json.RawMessage `bun:"data,type:jsonb"`
	UpdatedAt time.Time       `bun:"updated_at"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:game_sessions"`

	Code                 string     `bun:"code,pk"`
	QuizID               string     `bun:"quiz_id"`
	CurrentQuestionIndex int        `bun:"current_question_index"`
	Phase                string     `bun:"phase"`
	RevealRequested      bool       `bun:"reveal_requested"`
	QuestionCount        int        `bun:"question_count"`
	QuestionStartedAt    *time.Time `bun:"question_started_at"`
	Version              int64      `bun:"version"`
	CreatedAt            time.Time  `bun:"created_at"`
	UpdatedAt            time.Time  `bun:"updated_at"`
	EndedAt              *time.Time `bun:"ended_at"`
}

func sessionRowFrom(s domain.GameSession) sessionRow {
	return sessionRow{
		Code:                 s.Code,
		QuizID:               s.QuizID,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		Phase:                string(s.Phase),
		RevealRequested:      s.RevealRequested,
		QuestionCount:        s.QuestionCount,
		QuestionStartedAt:    s.QuestionStartedAt,
		Version:              s.Version,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
		EndedAt:              s.EndedAt,
	}
}

func (r sessionRow) toDomain() domain.GameSession {
	return domain.GameSession{
		Code:                 r.Code,
		QuizID:               r.QuizID,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		Phase:                domain.Phase(r.Phase),
		RevealRequested:      r.RevealRequested,
		QuestionCount:        r.QuestionCount,
		QuestionStartedAt:    r.QuestionStartedAt,
		Version:              r.Version,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		EndedAt:              r.EndedAt,
	}
}

type playerRow struct {
	bun.BaseModel `bun:"table:players"`

	ID       string    `bun:"id,pk"`
	GameCode string    `bun:"game_code"`
	Name     string    `bun:"name"`
	Avatar   string    `bun:"avatar"`
	JoinedAt time.Time `bun:"joined_at"`
	JoinSeq  int64     `bun:"join_seq"`
}

func (r playerRow) toDomain() domain.Player {
	return domain.Player{
		ID:       r.ID,
		Name:     r.Name,
		Avatar:   r.Avatar,
		GameCode: r.GameCode,
		JoinedAt: r.JoinedAt,
		JoinSeq:  r.JoinSeq,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers"`

	GameCode        string          `bun:"game_code,pk"`
	PlayerID        string          `bun:"player_id,pk"`
	QuestionIndex   int             `bun:"question_index,pk"`
	QuestionText    string          `bun:"question_text"`
	SubmittedAnswer json.RawMessage `bun:"submitted_answer,type:jsonb"`
	IsCorrect       bool            `bun:"is_correct"`
	PointsAwarded   int             `bun:"points_awarded"`
	ElapsedSeconds  float64         `bun:"elapsed_seconds"`
	AnsweredAt      time.Time       `bun:"answered_at"`
}

func answerRowFrom(rec domain.AnswerRecord) (answerRow, error) {
	raw, err := json.Marshal(rec.SubmittedAnswer)
	if err != nil {
		return answerRow{}, err
	}
	return answerRow{
		GameCode:        rec.GameCode,
		PlayerID:        rec.PlayerID,
		QuestionIndex:   rec.QuestionIndex,
		QuestionText:    rec.QuestionText,
		SubmittedAnswer: raw,
		IsCorrect:       rec.IsCorrect,
		PointsAwarded:   rec.PointsAwarded,
		ElapsedSeconds:  rec.ElapsedSeconds,
		AnsweredAt:      rec.AnsweredAt,
	}, nil
}

func (r answerRow) toDomain() (domain.AnswerRecord, error) {
	var answer domain.AnswerValue
	if err := json.Unmarshal(r.SubmittedAnswer, &answer); err != nil {
		return domain.AnswerRecord{}, err
	}
	return domain.AnswerRecord{
		PlayerID:        r.PlayerID,
		GameCode:        r.GameCode,
		QuestionIndex:   r.QuestionIndex,
		QuestionText:    r.QuestionText,
		SubmittedAnswer: answer,
		IsCorrect:       r.IsCorrect,
		PointsAwarded:   r.PointsAwarded,
		ElapsedSeconds:  r.ElapsedSeconds,
		AnsweredAt:      r.AnsweredAt,
	}, nil
}
