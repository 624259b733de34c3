package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// PlayerStore keeps players in the players table. The (game_code, name)
// unique constraint enforces one holder per name; join_seq is a bigserial.
type PlayerStore struct {
	db *bun.DB
}

func NewPlayerStore(db *bun.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) Add(ctx context.Context, player domain.Player) (domain.Player, bool, error) {
	row := playerRow{
		ID:       player.ID,
		GameCode: player.GameCode,
		Name:     player.Name,
		Avatar:   player.Avatar,
		JoinedAt: player.JoinedAt,
	}
	err := s.db.NewInsert().
		Model(&row).
		ExcludeColumn("join_seq").
		On("CONFLICT (game_code, name) DO NOTHING").
		Returning("join_seq").
		Scan(ctx)
	if err == nil {
		return row.toDomain(), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, false, storageErr(err)
	}

	existing := new(playerRow)
	err = s.db.NewSelect().Model(existing).Where("game_code = ? AND name = ?", player.GameCode, player.Name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		// the holder left between our insert and this read
		return domain.Player{}, false, domain.StorageError(fmt.Errorf("name %q changed hands concurrently", player.Name))
	}
	if err != nil {
		return domain.Player{}, false, storageErr(err)
	}
	return existing.toDomain(), false, nil
}

func (s *PlayerStore) Get(ctx context.Context, code, playerID string) (domain.Player, error) {
	row := new(playerRow)
	err := s.db.NewSelect().Model(row).Where("game_code = ? AND id = ?", code, playerID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, domain.ErrNotInGame
	}
	if err != nil {
		return domain.Player{}, storageErr(err)
	}
	return row.toDomain(), nil
}

func (s *PlayerStore) List(ctx context.Context, code string) ([]domain.Player, error) {
	var rows []playerRow
	if err := s.db.NewSelect().Model(&rows).Where("game_code = ?", code).Order("join_seq ASC").Scan(ctx); err != nil {
		return nil, storageErr(err)
	}
	players := make([]domain.Player, 0, len(rows))
	for _, r := range rows {
		players = append(players, r.toDomain())
	}
	return players, nil
}

func (s *PlayerStore) Remove(ctx context.Context, code, playerID string) (domain.Player, error) {
	row := new(playerRow)
	err := s.db.NewDelete().Model(row).Where("game_code = ? AND id = ?", code, playerID).Returning("*").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, domain.ErrNotInGame
	}
	if err != nil {
		return domain.Player{}, storageErr(err)
	}
	return row.toDomain(), nil
}

func (s *PlayerStore) DeleteGame(ctx context.Context, code string) error {
	_, err := s.db.NewDelete().Model((*playerRow)(nil)).Where("game_code = ?", code).Exec(ctx)
	return storageErr(err)
}
