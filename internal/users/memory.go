package users

import (
	"context"

	"github.com/ledfit/ledfit-backend/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	users cmap.ConcurrentMap[string, models.User]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: cmap.New[models.User]()}
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	user, ok := s.users.Get(userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (s *MemoryStore) SetPaused(_ context.Context, userID string, paused bool) error {
	// Users are never removed, so one found here is still present inside Upsert.
	if !s.users.Has(userID) {
		return ErrUserNotFound
	}
	s.users.Upsert(userID, models.User{}, func(_ bool, current models.User, _ models.User) models.User {
		current.IsPaused = paused
		return current
	})
	return nil
}

func (s *MemoryStore) LinkBoard(_ context.Context, userID, boardID string) error {
	s.users.Upsert(userID, models.User{}, func(_ bool, current models.User, _ models.User) models.User {
		current.ID = userID
		current.BoardID = boardID
		return current
	})
	return nil
}
