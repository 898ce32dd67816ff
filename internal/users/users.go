// Package users is the narrow view of user accounts the board subsystem needs:
// which board a user owns and whether their workout is paused.
package users

import (
	"context"
	"errors"

	"github.com/ledfit/ledfit-backend/internal/models"
)

// ErrUserNotFound is returned when the user id is unknown.
var ErrUserNotFound = errors.New("user not found")

// Store reads and updates users.
type Store interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// SetPaused persists the user's workout pause flag.
	SetPaused(ctx context.Context, userID string, paused bool) error
	// LinkBoard records boardID as the user's board, creating the user if needed.
	LinkBoard(ctx context.Context, userID, boardID string) error
}
