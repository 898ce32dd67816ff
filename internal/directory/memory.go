package directory

import (
	"context"
	"sync"
	"time"

	"github.com/ledfit/ledfit-backend/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// MemoryDirectory is an in-process Directory used for local development
// against simulated boards and in tests.
type MemoryDirectory struct {
	boards cmap.ConcurrentMap[string, models.Board]
	owners cmap.ConcurrentMap[string, string] // ownerID -> boardID

	registerMu sync.Mutex
}

// NewMemoryDirectory returns an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		boards: cmap.New[models.Board](),
		owners: cmap.New[string](),
	}
}

func (d *MemoryDirectory) Register(_ context.Context, board models.Board) error {
	d.registerMu.Lock()
	defer d.registerMu.Unlock()

	if d.boards.Has(board.BoardID) || d.owners.Has(board.OwnerID) {
		return ErrDuplicateBoard
	}
	d.boards.Set(board.BoardID, board)
	d.owners.Set(board.OwnerID, board.BoardID)
	return nil
}

func (d *MemoryDirectory) Get(_ context.Context, boardID string) (*models.Board, error) {
	board, ok := d.boards.Get(boardID)
	if !ok {
		return nil, ErrBoardNotFound
	}
	return &board, nil
}

func (d *MemoryDirectory) GetByOwner(ctx context.Context, ownerID string) (*models.Board, error) {
	boardID, ok := d.owners.Get(ownerID)
	if !ok {
		return nil, ErrBoardNotFound
	}
	return d.Get(ctx, boardID)
}

func (d *MemoryDirectory) RecordStatus(_ context.Context, boardID string, connected *bool, seenAt time.Time) (*models.Board, error) {
	// Boards are never removed, so a board present here is still present inside Upsert.
	if !d.boards.Has(boardID) {
		return nil, ErrBoardNotFound
	}

	// Upsert runs under the shard lock, making the read-modify-write atomic per board.
	updated := d.boards.Upsert(boardID, models.Board{}, func(_ bool, current models.Board, _ models.Board) models.Board {
		return applyStatus(current, connected, seenAt)
	})
	return &updated, nil
}

// applyStatus is the monotonic update rule shared by every Directory implementation.
func applyStatus(board models.Board, connected *bool, seenAt time.Time) models.Board {
	if seenAt.Before(board.LastSeen) {
		return board
	}
	if connected != nil {
		board.IsConnected = *connected
	}
	board.LastSeen = seenAt
	return board
}
