package connectivity

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ledfit/ledfit-backend/internal/constants"
	"github.com/ledfit/ledfit-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestEvaluator_IsActuallyConnected(t *testing.T) {
	tests := []struct {
		name      string
		flag      bool
		age       time.Duration
		connected bool
	}{
		{name: "fresh and flagged", flag: true, age: 0, connected: true},
		{name: "just inside the window", flag: true, age: 119999 * time.Millisecond, connected: true},
		{name: "exactly at the window", flag: true, age: 120000 * time.Millisecond, connected: false},
		{name: "just outside the window", flag: true, age: 120001 * time.Millisecond, connected: false},
		{name: "fresh but flagged disconnected", flag: false, age: time.Second, connected: false},
		{name: "stale and flagged disconnected", flag: false, age: time.Hour, connected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClockAt(start.Add(tt.age))
			e := NewEvaluator(clock, constants.ConnectivityWindow)

			board := models.Board{BoardID: "B1", IsConnected: tt.flag, LastSeen: start}
			assert.Equal(t, tt.connected, e.IsActuallyConnected(board))
		})
	}
}

func TestEvaluator_HeartbeatGoesStale(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	e := NewEvaluator(clock, 0)
	board := models.Board{BoardID: "B1", IsConnected: true, LastSeen: start}

	clock.Advance(119 * time.Second)
	assert.True(t, e.IsActuallyConnected(board))

	clock.Advance(2 * time.Second)
	assert.False(t, e.IsActuallyConnected(board))
}

func TestEvaluator_Evaluate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start.Add(30 * time.Second))
	e := NewEvaluator(clock, 0)
	assert.Equal(t, constants.ConnectivityWindow, e.Window())

	status := e.Evaluate(models.Board{BoardID: "B7", OwnerID: "user-1", IsConnected: true, LastSeen: start})

	assert.True(t, status.IsAssociated)
	assert.Equal(t, "B7", status.BoardID)
	require.NotNil(t, status.IsConnected)
	assert.True(t, *status.IsConnected)
	require.NotNil(t, status.LastSeen)
	assert.True(t, status.LastSeen.Equal(start))
}
