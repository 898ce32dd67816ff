package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ledfit/ledfit-backend/internal/broker"
	"github.com/ledfit/ledfit-backend/internal/constants"
	"github.com/ledfit/ledfit-backend/internal/models"
	"github.com/rs/zerolog"
)

// ValidationError reports an argument rejected before anything was published.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Publisher is the part of the broker transport the dispatcher needs.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, payload []byte) broker.Result
}

// Dispatcher publishes workout commands and time-sync messages to boards.
// Publishes are fire-and-confirm: they wait for the broker acknowledgement
// and are never retried.
type Dispatcher struct {
	publisher Publisher
	logger    zerolog.Logger
}

func NewDispatcher(publisher Publisher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{publisher: publisher, logger: logger}
}

// PublishCommand sends a pause/resume command to ledfit/boards/{boardID}/commands.
func (d *Dispatcher) PublishCommand(ctx context.Context, boardID string, command constants.Command, clientTimestamp *int64) error {
	if err := validateBoardID(boardID); err != nil {
		return err
	}
	if !command.Valid() {
		return &ValidationError{Field: "command", Reason: fmt.Sprintf("unknown command %q", command)}
	}

	payload, err := json.Marshal(models.CommandMessage{Command: command, ClientTimestamp: clientTimestamp})
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	logger := d.logger.With().Str("board_id", boardID).Str("command", string(command)).Logger()
	return d.publish(ctx, logger, CommandsTopic(boardID), payload)
}

// PublishTimeSync sends the remaining duration of the current stage to
// ledfit/boards/{boardID}/time. durationMs is rounded to whole milliseconds.
func (d *Dispatcher) PublishTimeSync(ctx context.Context, boardID string, durationMs float64, clientTimestamp int64, stage constants.Stage) error {
	if err := validateBoardID(boardID); err != nil {
		return err
	}
	if math.IsNaN(durationMs) || math.IsInf(durationMs, 0) || durationMs < 0 {
		return &ValidationError{Field: "duration", Reason: "must be a finite number >= 0"}
	}
	if math.Round(durationMs) >= math.MaxInt64 {
		return &ValidationError{Field: "duration", Reason: "out of range"}
	}
	if !stage.Valid() {
		return &ValidationError{Field: "etapa", Reason: fmt.Sprintf("unknown stage %q", stage)}
	}

	payload, err := json.Marshal(models.TimeSyncMessage{
		Duration:        int64(math.Round(durationMs)),
		ClientTimestamp: clientTimestamp,
		Etapa:           stage,
	})
	if err != nil {
		return fmt.Errorf("failed to encode time sync: %w", err)
	}

	logger := d.logger.With().Str("board_id", boardID).Str("stage", string(stage)).Logger()
	return d.publish(ctx, logger, TimeTopic(boardID), payload)
}

func (d *Dispatcher) publish(ctx context.Context, logger zerolog.Logger, topic string, payload []byte) error {
	if !d.publisher.IsConnected() {
		logger.Warn().Str("topic", topic).Msg("MQTT transport not connected, message not sent")
		return broker.ErrTransportUnavailable
	}

	if err := d.publisher.Publish(topic, constants.DefaultQOS, payload).Wait(ctx); err != nil {
		logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish message to board")
		return err
	}

	logger.Info().Str("topic", topic).Msg("Message published to board")
	return nil
}

func validateBoardID(boardID string) error {
	if strings.TrimSpace(boardID) == "" {
		return &ValidationError{Field: "boardId", Reason: "must not be empty"}
	}
	if strings.ContainsAny(boardID, "/+#") {
		return &ValidationError{Field: "boardId", Reason: "must not contain MQTT topic separators or wildcards"}
	}
	return nil
}

// CommandsTopic is the command topic of a board.
func CommandsTopic(boardID string) string {
	return constants.TopicPrefix + "/" + boardID + "/" + constants.CommandsTopicSuffix
}

// TimeTopic is the time-sync topic of a board.
func TimeTopic(boardID string) string {
	return constants.TopicPrefix + "/" + boardID + "/" + constants.TimeTopicSuffix
}
