package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/ledfit/ledfit-backend/internal/broker"
	"github.com/ledfit/ledfit-backend/internal/constants"
	"github.com/ledfit/ledfit-backend/internal/directory"
	"github.com/ledfit/ledfit-backend/internal/models"
	"github.com/ledfit/ledfit-backend/internal/services"
	"github.com/ledfit/ledfit-backend/internal/users"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 16

type handlers struct {
	deps   Dependencies
	logger zerolog.Logger
}

// syncTimeRequest fields are decoded loosely so a value of the wrong JSON
// type is reported as a validation error instead of a decode error.
type syncTimeRequest struct {
	Duration        any `json:"duration"`
	ClientTimestamp any `json:"clientTimestamp"`
	Etapa           any `json:"etapa"`
}

type workoutStateRequest struct {
	Paused          any `json:"paused"`
	ClientTimestamp any `json:"clientTimestamp"`
}

func (h *handlers) boardStatus(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	user, ok := h.lookupUser(w, r, userID)
	if !ok {
		return
	}
	if user.BoardID == "" {
		writeJSON(w, models.BoardStatus{IsAssociated: false, Message: "No board is paired with this account"}, http.StatusOK)
		return
	}

	board, err := h.deps.Boards.Get(r.Context(), user.BoardID)
	if err != nil {
		if errors.Is(err, directory.ErrBoardNotFound) {
			h.logger.Warn().Str("user_id", userID).Str("board_id", user.BoardID).Msg("User references a board missing from the directory")
			writeError(w, "board not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("board_id", user.BoardID).Msg("Failed to read board")
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if board.OwnerID != userID {
		h.logger.Warn().Str("user_id", userID).Str("board_id", board.BoardID).Str("owner_id", board.OwnerID).
			Msg("Board owner does not match user")
		writeError(w, "board not found", http.StatusNotFound)
		return
	}

	writeJSON(w, h.deps.Evaluator.Evaluate(*board), http.StatusOK)
}

func (h *handlers) syncTime(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req syncTimeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, ok := h.lookupUser(w, r, userID)
	if !ok {
		return
	}
	if user.BoardID == "" {
		writeError(w, "no board is paired with this account", http.StatusBadRequest)
		return
	}

	duration, ok := numberValue(req.Duration)
	if !ok || duration < 0 {
		writeError(w, "duration must be a number >= 0", http.StatusBadRequest)
		return
	}
	clientTimestamp, ok := timestampValue(req.ClientTimestamp)
	if !ok {
		writeError(w, "clientTimestamp must be a number", http.StatusBadRequest)
		return
	}
	etapa, _ := req.Etapa.(string)

	err := h.deps.Dispatcher.PublishTimeSync(r.Context(), user.BoardID, duration, clientTimestamp, constants.Stage(etapa))
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, MessageResponse{Message: "Time synchronized with the board"}, http.StatusOK)
}

func (h *handlers) workoutState(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req workoutStateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	paused, ok := req.Paused.(bool)
	if !ok {
		writeError(w, "paused must be a boolean", http.StatusBadRequest)
		return
	}
	var clientTimestamp *int64
	if req.ClientTimestamp != nil {
		ts, ok := timestampValue(req.ClientTimestamp)
		if !ok {
			writeError(w, "clientTimestamp must be a number", http.StatusBadRequest)
			return
		}
		clientTimestamp = &ts
	}

	// The pause flag is the source of truth for the app and is stored even
	// when the board cannot be reached.
	if err := h.deps.Users.SetPaused(r.Context(), userID, paused); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeError(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to persist pause state")
		writeError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	user, ok := h.lookupUser(w, r, userID)
	if !ok {
		return
	}
	if user.BoardID == "" {
		writeJSON(w, MessageResponse{Message: "Workout state updated, no board is paired", Paused: &paused}, http.StatusOK)
		return
	}

	command := constants.CommandResume
	if paused {
		command = constants.CommandPause
	}
	if err := h.deps.Dispatcher.PublishCommand(r.Context(), user.BoardID, command, clientTimestamp); err != nil {
		h.logger.Warn().Err(err).Str("board_id", user.BoardID).Str("command", string(command)).
			Msg("Workout state stored but the board was not notified")
		writeJSON(w, MessageResponse{
			Message: "Workout state updated, but the board could not be notified",
			Paused:  &paused,
			Error:   err.Error(),
		}, http.StatusOK)
		return
	}
	writeJSON(w, MessageResponse{Message: "Workout state updated", Paused: &paused}, http.StatusOK)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Broker:   h.deps.BrokerCheck != nil && h.deps.BrokerCheck(r.Context()),
		Database: h.deps.DatabaseCheck != nil && h.deps.DatabaseCheck(r.Context()),
	}
	status := http.StatusOK
	if !resp.Broker || !resp.Database {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, resp, status)
}

func (h *handlers) lookupUser(w http.ResponseWriter, r *http.Request, userID string) (*models.User, bool) {
	user, err := h.deps.Users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			writeError(w, "user not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read user")
		writeError(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}

func writeDispatchError(w http.ResponseWriter, err error) {
	var vErr *services.ValidationError
	var pErr *broker.PublishError
	switch {
	case errors.As(err, &vErr):
		writeError(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, broker.ErrTransportUnavailable):
		writeError(w, "board messaging is currently unavailable", http.StatusServiceUnavailable)
	case errors.As(err, &pErr):
		writeError(w, "failed to deliver message to the board", http.StatusInternalServerError)
	default:
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// numberValue accepts only JSON numbers.
func numberValue(v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// timestampValue accepts a JSON number that rounds into the int64 range.
func timestampValue(v any) (int64, bool) {
	f, ok := numberValue(v)
	if !ok {
		return 0, false
	}
	rounded := math.Round(f)
	// float64(math.MaxInt64) is 2^63, one past the largest int64.
	if rounded < math.MinInt64 || rounded >= math.MaxInt64 {
		return 0, false
	}
	return int64(rounded), true
}
