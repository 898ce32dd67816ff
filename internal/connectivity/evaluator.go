// Package connectivity derives the externally reported connection state of a board.
package connectivity

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ledfit/ledfit-backend/internal/constants"
	"github.com/ledfit/ledfit-backend/internal/models"
)

// Evaluator combines a board's last reported flag with the freshness of its
// lastSeen. A board that stops reporting without a clean disconnect still has
// its flag set; the window catches that.
type Evaluator struct {
	clock  clockwork.Clock
	window time.Duration
}

// NewEvaluator returns an evaluator. A non-positive window falls back to
// constants.ConnectivityWindow.
func NewEvaluator(clock clockwork.Clock, window time.Duration) *Evaluator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = constants.ConnectivityWindow
	}
	return &Evaluator{clock: clock, window: window}
}

// IsActuallyConnected is true when the board last reported itself connected
// and that report is strictly younger than the window.
func (e *Evaluator) IsActuallyConnected(board models.Board) bool {
	if !board.IsConnected {
		return false
	}
	return e.clock.Since(board.LastSeen) < e.window
}

// Evaluate builds the status answer for an associated board.
func (e *Evaluator) Evaluate(board models.Board) models.BoardStatus {
	connected := e.IsActuallyConnected(board)
	lastSeen := board.LastSeen
	return models.BoardStatus{
		IsAssociated: true,
		BoardID:      board.BoardID,
		IsConnected:  &connected,
		LastSeen:     &lastSeen,
	}
}

// Window returns the freshness window in use.
func (e *Evaluator) Window() time.Duration {
	return e.window
}
