package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	"github.com/ledfit/ledfit-backend/internal/constants"
	"github.com/ledfit/ledfit-backend/internal/directory"
	"github.com/ledfit/ledfit-backend/internal/models"
	"github.com/ledfit/ledfit-backend/internal/utils"
	"github.com/rs/zerolog"
)

// ErrMalformedStatus marks an inbound status message that could not be parsed.
var ErrMalformedStatus = errors.New("malformed status message")

// Subscriber is the part of the broker transport status ingestion needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MQTT.MessageHandler) error
	Unsubscribe(topic string) error
}

// StatusIngestionService consumes board status messages and keeps the
// directory's connected flag and lastSeen current.
type StatusIngestionService struct {
	topic   string
	qos     byte
	timeout time.Duration

	subscriber Subscriber
	directory  directory.Directory
	pool       *utils.KeyedWorkerPool
	clock      clockwork.Clock
	logger     zerolog.Logger
}

// NewStatusIngestionService wires the ingestion service. Updates for one board
// are applied in arrival order on the pool; boards are processed in parallel.
func NewStatusIngestionService(subscriber Subscriber, dir directory.Directory, pool *utils.KeyedWorkerPool,
	updateTimeout time.Duration, clock clockwork.Clock, logger zerolog.Logger) *StatusIngestionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if updateTimeout <= 0 {
		updateTimeout = 5 * time.Second
	}
	return &StatusIngestionService{
		topic:      constants.StatusTopicPattern,
		qos:        constants.DefaultQOS,
		timeout:    updateTimeout,
		subscriber: subscriber,
		directory:  dir,
		pool:       pool,
		clock:      clock,
		logger:     logger,
	}
}

// Start subscribes to the status topic of every board. The transport keeps
// the subscription across reconnects, so a failure here is only logged.
func (s *StatusIngestionService) Start() error {
	s.logger.Info().Str("topic", s.topic).Msg("Starting StatusIngestionService")
	if err := s.subscriber.Subscribe(s.topic, s.qos, s.HandleMessage); err != nil {
		s.logger.Error().Err(err).Str("topic", s.topic).Msg("Initial status subscription failed, will retry on reconnect")
	}
	return nil
}

// Stop unsubscribes and waits for queued updates to be applied.
func (s *StatusIngestionService) Stop() error {
	err := s.subscriber.Unsubscribe(s.topic)
	if err != nil {
		s.logger.Error().Err(err).Str("topic", s.topic).Msg("Failed to unsubscribe from status topic")
	}
	s.pool.Shutdown()
	s.logger.Info().Msg("StatusIngestionService stopped successfully")
	return err
}

// HandleMessage is the MQTT callback for status messages. The receive time is
// taken here, before the update is queued.
func (s *StatusIngestionService) HandleMessage(_ MQTT.Client, msg MQTT.Message) {
	receivedAt := s.clock.Now()
	topic := msg.Topic()

	boardID, ok := BoardIDFromStatusTopic(topic)
	if !ok {
		s.logger.Warn().Str("topic", topic).Msg("Ignoring message on unexpected topic")
		return
	}

	status, kind, err := ParseStatus(msg.Payload())
	if err != nil {
		s.logger.Error().Err(err).Str("board_id", boardID).Str("topic", topic).Msg("Dropping status message")
		return
	}

	event := models.ConnectionEvent{
		BoardID:    boardID,
		Status:     status,
		Kind:       kind,
		ReceivedAt: receivedAt,
	}
	s.logger.Debug().Str("board_id", boardID).Str("status", status).Msg("Received board status")

	if !s.pool.Submit(boardID, func() { s.apply(event) }) {
		s.logger.Warn().Str("board_id", boardID).Msg("Status ingestion stopped, dropping status message")
	}
}

func (s *StatusIngestionService) apply(event models.ConnectionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	board, err := s.directory.RecordStatus(ctx, event.BoardID, ConnectedFlag(event.Kind), event.ReceivedAt)
	if err != nil {
		if errors.Is(err, directory.ErrBoardNotFound) {
			s.logger.Warn().Str("board_id", event.BoardID).Msg("Status received for unknown board")
			return
		}
		s.logger.Error().Err(err).Str("board_id", event.BoardID).Msg("Failed to record board status")
		return
	}

	switch event.Kind {
	case constants.StatusConnected, constants.StatusDisconnected:
		s.logger.Info().Str("board_id", board.BoardID).Str("status", event.Status).
			Bool("is_connected", board.IsConnected).Msg("Board connection state changed")
	}
}

// BoardIDFromStatusTopic extracts the board id from ledfit/boards/{boardId}/status.
func BoardIDFromStatusTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, constants.TopicPrefix+"/")
	if !ok {
		return "", false
	}
	boardID, suffix, ok := strings.Cut(rest, "/")
	if !ok || boardID == "" || suffix != constants.StatusTopicSuffix {
		return "", false
	}
	return boardID, true
}

// ParseStatus decodes a status payload. The payload must be a JSON object; a
// missing or non-string status field classifies as StatusOther.
func ParseStatus(payload []byte) (string, constants.StatusKind, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(payload, &body); err != nil || body == nil {
		return "", "", fmt.Errorf("%w: payload is not a JSON object", ErrMalformedStatus)
	}

	var status string
	if raw, ok := body["status"]; ok {
		if err := json.Unmarshal(raw, &status); err != nil {
			status = ""
		}
	}
	return status, ClassifyStatus(status), nil
}

// ClassifyStatus maps a status string to its kind.
func ClassifyStatus(status string) constants.StatusKind {
	switch kind := constants.StatusKind(status); kind {
	case constants.StatusConnected, constants.StatusHeartbeat, constants.StatusReceived, constants.StatusDisconnected:
		return kind
	}
	return constants.StatusOther
}

// ConnectedFlag returns the flag value a status kind sets, or nil when the
// kind leaves the flag unchanged.
func ConnectedFlag(kind constants.StatusKind) *bool {
	var connected bool
	switch kind {
	case constants.StatusConnected, constants.StatusHeartbeat, constants.StatusReceived:
		connected = true
	case constants.StatusDisconnected:
		connected = false
	default:
		return nil
	}
	return &connected
}
