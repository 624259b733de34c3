package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// AnswerLedger keeps answers in the answers table, keyed by
// (game_code, player_id, question_index). Inserts use ON CONFLICT DO NOTHING
// so concurrent duplicates resolve inside Postgres, and run in a transaction
// holding FOR SHARE on the session row so no transition can close the
// question between the phase check and the write.
type AnswerLedger struct {
	db *bun.DB
}

func NewAnswerLedger(db *bun.DB) *AnswerLedger {
	return &AnswerLedger{db: db}
}

func (l *AnswerLedger) Insert(ctx context.Context, rec domain.AnswerRecord) (domain.AnswerRecord, error) {
	row, err := answerRowFrom(rec)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	var stored domain.AnswerRecord
	err = l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session := new(sessionRow)
		err := tx.NewSelect().
			Model(session).
			Column("phase", "current_question_index").
			Where("code = ?", rec.GameCode).
			For("SHARE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrGameNotFound
		}
		if err != nil {
			return storageErr(err)
		}

		if existing, ok, err := getAnswer(ctx, tx, rec.GameCode, rec.PlayerID, rec.QuestionIndex); err != nil {
			return err
		} else if ok {
			stored = existing
			return domain.ErrAlreadyAnswered
		}
		if err := session.toDomain().CheckAnswerable(rec.QuestionIndex); err != nil {
			return err
		}

		res, err := tx.NewInsert().
			Model(&row).
			On("CONFLICT (game_code, player_id, question_index) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return storageErr(err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			stored = rec
			return nil
		}
		existing, ok, err := getAnswer(ctx, tx, rec.GameCode, rec.PlayerID, rec.QuestionIndex)
		if err != nil {
			return err
		}
		if !ok {
			return domain.StorageError(errors.New("answer vanished after conflicting insert"))
		}
		stored = existing
		return domain.ErrAlreadyAnswered
	})
	if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
		return domain.AnswerRecord{}, err
	}
	return stored, err
}

func (l *AnswerLedger) Get(ctx context.Context, code, playerID string, questionIndex int) (domain.AnswerRecord, bool, error) {
	return getAnswer(ctx, l.db, code, playerID, questionIndex)
}

func getAnswer(ctx context.Context, db bun.IDB, code, playerID string, questionIndex int) (domain.AnswerRecord, bool, error) {
	row := new(answerRow)
	err := db.NewSelect().
		Model(row).
		Where("game_code = ? AND player_id = ? AND question_index = ?", code, playerID, questionIndex).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnswerRecord{}, false, nil
	}
	if err != nil {
		return domain.AnswerRecord{}, false, storageErr(err)
	}
	rec, err := row.toDomain()
	if err != nil {
		return domain.AnswerRecord{}, false, domain.StorageError(err)
	}
	return rec, true, nil
}

func (l *AnswerLedger) List(ctx context.Context, code string) ([]domain.AnswerRecord, error) {
	var rows []answerRow
	err := l.db.NewSelect().
		Model(&rows).
		Where("game_code = ?", code).
		Order("question_index ASC", "answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]domain.AnswerRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toDomain()
		if err != nil {
			return nil, domain.StorageError(err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *AnswerLedger) CountForQuestion(ctx context.Context, code string, questionIndex int) (int, error) {
	n, err := l.db.NewSelect().
		Model((*answerRow)(nil)).
		Where("game_code = ? AND question_index = ?", code, questionIndex).
		Count(ctx)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

func (l *AnswerLedger) DeleteGame(ctx context.Context, code string) error {
	_, err := l.db.NewDelete().Model((*answerRow)(nil)).Where("game_code = ?", code).Exec(ctx)
	return storageErr(err)
}
