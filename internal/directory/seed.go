package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledfit/ledfit-backend/internal/models"
	"github.com/rs/zerolog"
)

// OwnerLinker records which board a user owns.
type OwnerLinker interface {
	LinkBoard(ctx context.Context, userID, boardID string) error
}

// Seed pairs boards at startup, typically simulated boards for development.
// Boards already in the directory are left untouched. The owner link is only
// written when the stored board belongs to the seeded owner, so a seed never
// points a user at a board it does not own.
func Seed(ctx context.Context, dir Directory, linker OwnerLinker, boards []models.Board, now time.Time, logger zerolog.Logger) error {
	for _, board := range boards {
		if board.LastSeen.IsZero() {
			board.LastSeen = now
		}
		err := dir.Register(ctx, board)
		switch {
		case err == nil:
			logger.Info().Str("board_id", board.BoardID).Str("owner_id", board.OwnerID).Msg("Seeded board")
		case errors.Is(err, ErrDuplicateBoard):
			stored, getErr := dir.Get(ctx, board.BoardID)
			if getErr != nil && !errors.Is(getErr, ErrBoardNotFound) {
				return fmt.Errorf("failed to read seed board %s: %w", board.BoardID, getErr)
			}
			if stored == nil || stored.OwnerID != board.OwnerID {
				// Either the owner already has another board or the board belongs to someone else.
				logger.Warn().Str("board_id", board.BoardID).Str("owner_id", board.OwnerID).
					Msg("Seed board conflicts with an existing pairing, skipping")
				continue
			}
			logger.Debug().Str("board_id", board.BoardID).Msg("Seed board already paired, leaving it alone")
		default:
			return fmt.Errorf("failed to seed board %s: %w", board.BoardID, err)
		}

		if err := linker.LinkBoard(ctx, board.OwnerID, board.BoardID); err != nil {
			return fmt.Errorf("failed to link seed board %s: %w", board.BoardID, err)
		}
	}
	return nil
}
