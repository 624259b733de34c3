package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// QuizLoader reads quiz documents from the quizzes table.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
	}
	if err != nil {
		return domain.Quiz{}, storageErr(fmt.Errorf("load quiz %s: %w", quizID, err))
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: decode %s: %v", domain.ErrInvalidQuiz, quizID, err)
	}
	return quiz, nil
}

// QuizSummary is one row of the catalog listing.
type QuizSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Question int    `json:"questions"`
}

// ListQuizzes returns every stored quiz with its question count.
func (l *QuizLoader) ListQuizzes(ctx context.Context) ([]QuizSummary, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, title, jsonb_array_length(data->'questions') FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	var out []QuizSummary
	for rows.Next() {
		var s QuizSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Question); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, s)
	}
	return out, storageErr(rows.Err())
}
