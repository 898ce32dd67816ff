// Package directory keeps the durable record of every paired board.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/ledfit/ledfit-backend/internal/models"
)

var (
	// ErrBoardNotFound is returned when a referenced board is not in the directory.
	ErrBoardNotFound = errors.New("board not found")
	// ErrDuplicateBoard is returned when registering a board id or owner that is already paired.
	ErrDuplicateBoard = errors.New("board id or owner already paired")
)

// Directory stores one record per board. Boards are independent aggregates:
// every mutation touches exactly one board.
type Directory interface {
	// Register records a newly paired board.
	Register(ctx context.Context, board models.Board) error
	// Get returns the board with the given id.
	Get(ctx context.Context, boardID string) (*models.Board, error)
	// GetByOwner returns the board paired with ownerID.
	GetByOwner(ctx context.Context, ownerID string) (*models.Board, error)
	// RecordStatus applies an inbound status message. lastSeen only moves
	// forward; the connected flag is overwritten when connected is non-nil
	// and seenAt is not older than the stored lastSeen.
	RecordStatus(ctx context.Context, boardID string, connected *bool, seenAt time.Time) (*models.Board, error)
}
