package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ledfit/ledfit-backend/internal/database"
	"github.com/ledfit/ledfit-backend/internal/models"
)

const (
	selectUserSQL = `
SELECT id, COALESCE(board_id, ''), is_paused
FROM users
WHERE id = $1`

	setPausedSQL = `
UPDATE users SET is_paused = $2, updated_at = now()
WHERE id = $1`

	linkBoardSQL = `
INSERT INTO users (id, board_id)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET board_id = EXCLUDED.board_id, updated_at = now()`
)

// PostgresStore reads and writes the users table.
type PostgresStore struct {
	db database.DB
}

func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, selectUserSQL, userID).Scan(&u.ID, &u.BoardID, &u.IsPaused)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) SetPaused(ctx context.Context, userID string, paused bool) error {
	tag, err := s.db.Exec(ctx, setPausedSQL, userID, paused)
	if err != nil {
		return fmt.Errorf("failed to update pause state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) LinkBoard(ctx context.Context, userID, boardID string) error {
	if _, err := s.db.Exec(ctx, linkBoardSQL, userID, boardID); err != nil {
		return fmt.Errorf("failed to link board to user: %w", err)
	}
	return nil
}
