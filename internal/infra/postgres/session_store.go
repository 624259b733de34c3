package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// SessionStore keeps game sessions in the game_sessions table. The version
// column is the optimistic lock for CompareAndSwap.
type SessionStore struct {
	db *bun.DB
}

func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, session domain.GameSession) error {
	row := sessionRowFrom(session)
	res, err := s.db.NewInsert().Model(&row).On("CONFLICT (code) DO NOTHING").Exec(ctx)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCodeTaken
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, code string) (domain.GameSession, error) {
	row := new(sessionRow)
	err := s.db.NewSelect().Model(row).Where("code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GameSession{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.GameSession{}, storageErr(err)
	}
	return row.toDomain(), nil
}

func (s *SessionStore) CompareAndSwap(ctx context.Context, expectedVersion int64, next domain.GameSession) error {
	row := sessionRowFrom(next)
	res, err := s.db.NewUpdate().Model(&row).WherePK().Where("version = ?", expectedVersion).Exec(ctx)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	exists, err := s.db.NewSelect().Model((*sessionRow)(nil)).Where("code = ?", next.Code).Exists(ctx)
	if err != nil {
		return storageErr(err)
	}
	if !exists {
		return domain.ErrGameNotFound
	}
	return domain.ErrVersionConflict
}

func (s *SessionStore) Delete(ctx context.Context, code string) error {
	res, err := s.db.NewDelete().Model((*sessionRow)(nil)).Where("code = ?", code).Exec(ctx)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}

func (s *SessionStore) ListExpired(ctx context.Context, endedBefore, idleBefore time.Time) ([]string, error) {
	var codes []string
	err := s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Column("code").
		Where("(ended_at IS NOT NULL AND ended_at < ?) OR updated_at < ?", endedBefore, idleBefore).
		Order("code").
		Scan(ctx, &codes)
	if err != nil {
		return nil, storageErr(err)
	}
	return codes, nil
}
