package models

import (
	"time"

	"github.com/ledfit/ledfit-backend/internal/constants"
)

// ConnectionEvent is produced for every inbound status message and consumed
// immediately by status ingestion. It is never persisted.
type ConnectionEvent struct {
	BoardID    string
	Status     string
	Kind       constants.StatusKind
	ReceivedAt time.Time
}
