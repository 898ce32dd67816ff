package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ledfit/ledfit-backend/internal/database"
	"github.com/ledfit/ledfit-backend/internal/models"
)

const (
	insertBoardSQL = `
INSERT INTO boards (board_id, owner_id, is_connected, last_seen)
VALUES ($1, $2, $3, $4)`

	selectBoardSQL = `
SELECT board_id, owner_id, is_connected, last_seen
FROM boards
WHERE board_id = $1`

	selectBoardByOwnerSQL = `
SELECT board_id, owner_id, is_connected, last_seen
FROM boards
WHERE owner_id = $1`

	// The flag only changes when the event is not older than the stored
	// lastSeen, and lastSeen never moves backwards.
	recordStatusSQL = `
UPDATE boards SET
    is_connected = CASE
        WHEN $3::timestamptz >= last_seen THEN COALESCE($2::boolean, is_connected)
        ELSE is_connected
    END,
    last_seen  = GREATEST(last_seen, $3::timestamptz),
    updated_at = now()
WHERE board_id = $1
RETURNING board_id, owner_id, is_connected, last_seen`
)

// PostgresDirectory is the durable Directory backed by the boards table.
type PostgresDirectory struct {
	db database.DB
}

// NewPostgresDirectory creates a directory over db (normally a *pgxpool.Pool).
func NewPostgresDirectory(db database.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Register(ctx context.Context, board models.Board) error {
	lastSeen := board.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}
	_, err := d.db.Exec(ctx, insertBoardSQL, board.BoardID, board.OwnerID, board.IsConnected, lastSeen)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateBoard
		}
		return fmt.Errorf("failed to register board: %w", err)
	}
	return nil
}

func (d *PostgresDirectory) Get(ctx context.Context, boardID string) (*models.Board, error) {
	return d.scanBoard(d.db.QueryRow(ctx, selectBoardSQL, boardID))
}

func (d *PostgresDirectory) GetByOwner(ctx context.Context, ownerID string) (*models.Board, error) {
	return d.scanBoard(d.db.QueryRow(ctx, selectBoardByOwnerSQL, ownerID))
}

func (d *PostgresDirectory) RecordStatus(ctx context.Context, boardID string, connected *bool, seenAt time.Time) (*models.Board, error) {
	return d.scanBoard(d.db.QueryRow(ctx, recordStatusSQL, boardID, connected, seenAt))
}

func (d *PostgresDirectory) scanBoard(row pgx.Row) (*models.Board, error) {
	var b models.Board
	if err := row.Scan(&b.BoardID, &b.OwnerID, &b.IsConnected, &b.LastSeen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to read board: %w", err)
	}
	return &b, nil
}
