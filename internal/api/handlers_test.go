package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ledfit/ledfit-backend/internal/broker"
	"github.com/ledfit/ledfit-backend/internal/connectivity"
	"github.com/ledfit/ledfit-backend/internal/constants"
	"github.com/ledfit/ledfit-backend/internal/directory"
	"github.com/ledfit/ledfit-backend/internal/models"
	"github.com/ledfit/ledfit-backend/internal/services"
	"github.com/ledfit/ledfit-backend/internal/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type commandCall struct {
	boardID         string
	command         constants.Command
	clientTimestamp *int64
}

type timeSyncCall struct {
	boardID         string
	durationMs      float64
	clientTimestamp int64
	stage           constants.Stage
}

type fakeDispatcher struct {
	err       error
	commands  []commandCall
	timeSyncs []timeSyncCall
}

func (f *fakeDispatcher) PublishCommand(_ context.Context, boardID string, command constants.Command, clientTimestamp *int64) error {
	f.commands = append(f.commands, commandCall{boardID, command, clientTimestamp})
	return f.err
}

func (f *fakeDispatcher) PublishTimeSync(_ context.Context, boardID string, durationMs float64, clientTimestamp int64, stage constants.Stage) error {
	f.timeSyncs = append(f.timeSyncs, timeSyncCall{boardID, durationMs, clientTimestamp, stage})
	if f.err == nil && !stage.Valid() {
		return &services.ValidationError{Field: "etapa", Reason: "unknown stage"}
	}
	return f.err
}

type apiFixture struct {
	router     http.Handler
	users      *users.MemoryStore
	boards     *directory.MemoryDirectory
	dispatcher *fakeDispatcher
	clock      *clockwork.FakeClock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	userStore := users.NewMemoryStore()
	boards := directory.NewMemoryDirectory()
	require.NoError(t, boards.Register(ctx, models.Board{BoardID: "B1", OwnerID: "user-1", IsConnected: true, LastSeen: now}))
	require.NoError(t, boards.Register(ctx, models.Board{BoardID: "B2", OwnerID: "user-2", LastSeen: now}))
	require.NoError(t, userStore.LinkBoard(ctx, "user-1", "B1"))
	require.NoError(t, userStore.LinkBoard(ctx, "user-nb", ""))
	require.NoError(t, userStore.LinkBoard(ctx, "user-stale", "B404"))
	require.NoError(t, userStore.LinkBoard(ctx, "user-thief", "B2"))

	clock := clockwork.NewFakeClockAt(now.Add(30 * time.Second))
	dispatcher := &fakeDispatcher{}

	router := NewServer(Dependencies{
		Users:         userStore,
		Boards:        boards,
		Evaluator:     connectivity.NewEvaluator(clock, constants.ConnectivityWindow),
		Dispatcher:    dispatcher,
		BrokerCheck:   func(context.Context) bool { return true },
		DatabaseCheck: func(context.Context) bool { return true },
	}, zerolog.Nop())

	return &apiFixture{router: router, users: userStore, boards: boards, dispatcher: dispatcher, clock: clock}
}

func (f *apiFixture) do(method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAPI_RequiresUser(t *testing.T) {
	f := newAPIFixture(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/boards/status"},
		{http.MethodPost, "/api/boards/sync-time"},
		{http.MethodPost, "/api/workout/state"},
	} {
		rec := f.do(route.method, route.path, "", "{}")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestAPI_BoardStatus(t *testing.T) {
	t.Run("connected board", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodGet, "/api/boards/status", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var status models.BoardStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.IsAssociated)
		assert.Equal(t, "B1", status.BoardID)
		require.NotNil(t, status.IsConnected)
		assert.True(t, *status.IsConnected)
		require.NotNil(t, status.LastSeen)
		assert.True(t, status.LastSeen.Equal(now))
	})

	t.Run("stale heartbeat reports disconnected", func(t *testing.T) {
		f := newAPIFixture(t)
		f.clock.Advance(91 * time.Second)

		rec := f.do(http.MethodGet, "/api/boards/status", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"isAssociated":true,"boardId":"B1","isConnected":false,"lastSeen":"2026-03-01T10:00:00Z"}`, rec.Body.String())
	})

	t.Run("no board paired", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodGet, "/api/boards/status", "user-nb", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var status models.BoardStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.False(t, status.IsAssociated)
		assert.NotEmpty(t, status.Message)
		assert.Nil(t, status.IsConnected)
	})

	t.Run("board missing from directory", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodGet, "/api/boards/status", "user-stale", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("board owned by someone else", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodGet, "/api/boards/status", "user-thief", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodGet, "/api/boards/status", "user-404", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAPI_SyncTime(t *testing.T) {
	t.Run("publishes to the user's board", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/boards/sync-time", "user-1",
			`{"duration":30000,"clientTimestamp":1700000000000.4,"etapa":"ACTIVO"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, f.dispatcher.timeSyncs, 1)
		assert.Equal(t, timeSyncCall{"B1", 30000, 1700000000000, constants.StageActive}, f.dispatcher.timeSyncs[0])
	})

	t.Run("zero duration is accepted", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/boards/sync-time", "user-1",
			`{"duration":0,"clientTimestamp":1,"etapa":"DESCANSO"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, f.dispatcher.timeSyncs, 1)
	})

	badRequests := []struct {
		name   string
		userID string
		body   string
	}{
		{name: "no board paired", userID: "user-nb", body: `{"duration":1,"clientTimestamp":1,"etapa":"INICIO"}`},
		{name: "negative duration", userID: "user-1", body: `{"duration":-1,"clientTimestamp":1,"etapa":"INICIO"}`},
		{name: "string duration", userID: "user-1", body: `{"duration":"10","clientTimestamp":1,"etapa":"INICIO"}`},
		{name: "missing duration", userID: "user-1", body: `{"clientTimestamp":1,"etapa":"INICIO"}`},
		{name: "missing timestamp", userID: "user-1", body: `{"duration":1,"etapa":"INICIO"}`},
		{name: "invalid json", userID: "user-1", body: `{"duration":`},
		{name: "timestamp beyond int64", userID: "user-1", body: `{"duration":1,"clientTimestamp":1e30,"etapa":"INICIO"}`},
		{name: "timestamp below int64", userID: "user-1", body: `{"duration":1,"clientTimestamp":-1e30,"etapa":"INICIO"}`},
	}
	for _, tt := range badRequests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			rec := f.do(http.MethodPost, "/api/boards/sync-time", tt.userID, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.dispatcher.timeSyncs)
		})
	}

	t.Run("unknown stage", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/boards/sync-time", "user-1",
			`{"duration":1,"clientTimestamp":1,"etapa":"PAUSA"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("transport unavailable", func(t *testing.T) {
		f := newAPIFixture(t)
		f.dispatcher.err = broker.ErrTransportUnavailable
		rec := f.do(http.MethodPost, "/api/boards/sync-time", "user-1",
			`{"duration":1,"clientTimestamp":1,"etapa":"INICIO"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("publish failure", func(t *testing.T) {
		f := newAPIFixture(t)
		f.dispatcher.err = &broker.PublishError{Topic: "ledfit/boards/B1/time", Err: broker.ErrPublishTimeout}
		rec := f.do(http.MethodPost, "/api/boards/sync-time", "user-1",
			`{"duration":1,"clientTimestamp":1,"etapa":"INICIO"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestAPI_WorkoutState(t *testing.T) {
	t.Run("pause persists and dispatches", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/workout/state", "user-1", `{"paused":true,"clientTimestamp":1700000000000}`)
		require.Equal(t, http.StatusOK, rec.Code)

		u, err := f.users.GetUser(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, u.IsPaused)

		require.Len(t, f.dispatcher.commands, 1)
		call := f.dispatcher.commands[0]
		assert.Equal(t, "B1", call.boardID)
		assert.Equal(t, constants.CommandPause, call.command)
		require.NotNil(t, call.clientTimestamp)
		assert.Equal(t, int64(1700000000000), *call.clientTimestamp)
	})

	t.Run("resume without timestamp", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/workout/state", "user-1", `{"paused":false}`)
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, f.dispatcher.commands, 1)
		assert.Equal(t, constants.CommandResume, f.dispatcher.commands[0].command)
		assert.Nil(t, f.dispatcher.commands[0].clientTimestamp)
	})

	t.Run("no board paired", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/workout/state", "user-nb", `{"paused":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.dispatcher.commands)

		u, err := f.users.GetUser(context.Background(), "user-nb")
		require.NoError(t, err)
		assert.True(t, u.IsPaused)
	})

	t.Run("dispatch failure still stores the flag", func(t *testing.T) {
		f := newAPIFixture(t)
		f.dispatcher.err = broker.ErrTransportUnavailable
		rec := f.do(http.MethodPost, "/api/workout/state", "user-1", `{"paused":true}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp MessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)

		u, err := f.users.GetUser(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, u.IsPaused)
	})

	for _, body := range []string{`{"paused":"yes"}`, `{}`, `{"paused":true,"clientTimestamp":"now"}`, `{"paused":true,"clientTimestamp":1e30}`, `nope`} {
		t.Run("bad request "+body, func(t *testing.T) {
			f := newAPIFixture(t)
			rec := f.do(http.MethodPost, "/api/workout/state", "user-1", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.dispatcher.commands)

			u, err := f.users.GetUser(context.Background(), "user-1")
			require.NoError(t, err)
			assert.False(t, u.IsPaused)
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/workout/state", "user-404", `{"paused":true}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTimestampValue(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{in: json.Number("1700000000000.4"), want: 1700000000000, ok: true},
		{in: json.Number("-5"), want: -5, ok: true},
		{in: json.Number("9.2e18"), want: 9200000000000000000, ok: true},
		{in: json.Number("9.3e18")},
		{in: json.Number("1e30")},
		{in: json.Number("-1e30")},
		{in: "1700000000000"},
		{in: nil},
	}
	for _, tt := range tests {
		got, ok := timestampValue(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"broker":true,"database":true}`, rec.Body.String())

	router := NewServer(Dependencies{
		BrokerCheck:   func(context.Context) bool { return false },
		DatabaseCheck: func(context.Context) bool { return true },
	}, zerolog.Nop())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"broker":false,"database":true}`, rec.Body.String())
}
