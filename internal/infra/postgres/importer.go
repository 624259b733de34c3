package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// Importer writes validated quizzes into the quizzes table.
type Importer struct {
	db  *bun.DB
	now func() time.Time
}

func NewImporter(db *bun.DB) *Importer {
	return &Importer{db: db, now: time.Now}
}

// Import upserts quiz. Questions of a quiz already used by running games
// should not be reordered; the caller owns that decision.
func (i *Importer) Import(ctx context.Context, quiz domain.Quiz) error {
	if err := quiz.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	row := quizRow{ID: quiz.ID, Title: quiz.Title, Data: data, UpdatedAt: i.now()}
	_, err = i.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return storageErr(err)
}
