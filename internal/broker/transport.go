package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	"github.com/ledfit/ledfit-backend/pkg/mqtt"
	"github.com/rs/zerolog"
)

var (
	// ErrTransportUnavailable is returned when the broker connection is down at call time.
	ErrTransportUnavailable = errors.New("mqtt transport not available or not connected")
	// ErrPublishTimeout is returned when the broker does not acknowledge a publish in time.
	ErrPublishTimeout = errors.New("timed out waiting for broker acknowledgement")
)

// PublishError reports a publish the broker rejected or did not acknowledge.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Subscription is a topic filter the transport keeps subscribed across reconnects.
type Subscription struct {
	Topic   string
	QOS     byte
	Handler mqttLib.MessageHandler
}

// Transport owns the single broker connection of the process. Publishes and
// the status subscription all multiplex over it.
type Transport struct {
	client         mqtt.MQTTClient
	connectTimeout time.Duration
	publishTimeout time.Duration
	clock          clockwork.Clock
	logger         zerolog.Logger

	mu   sync.Mutex
	subs map[string]Subscription
}

// NewTransport wraps an MQTT client. publishTimeout bounds every publish acknowledgement.
func NewTransport(client mqtt.MQTTClient, connectTimeout, publishTimeout time.Duration, clock clockwork.Clock, logger zerolog.Logger) *Transport {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Transport{
		client:         client,
		connectTimeout: connectTimeout,
		publishTimeout: publishTimeout,
		clock:          clock,
		logger:         logger,
		subs:           make(map[string]Subscription),
	}
}

// Connect starts the broker connection and waits up to the connect timeout
// for it to come up. The client keeps retrying in the background either way,
// so a broker that is down at startup is reported but not fatal.
func (t *Transport) Connect(ctx context.Context) error {
	token := t.client.Connect()

	var timeout <-chan time.Time
	if t.connectTimeout > 0 {
		timeout = t.clock.After(t.connectTimeout)
	}

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			t.logger.Error().Err(err).Msg("MQTT connect failed")
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-timeout:
		t.logger.Warn().Dur("timeout", t.connectTimeout).Msg("MQTT broker not reachable yet, continuing to retry in background")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected reports whether the broker connection is up right now.
func (t *Transport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

// Publish hands payload to the broker and returns a Result that resolves on
// the broker's acknowledgement. It never retries.
func (t *Transport) Publish(topic string, qos byte, payload []byte) Result {
	if !t.IsConnected() {
		return CompletedResult(ErrTransportUnavailable)
	}
	token := t.client.Publish(topic, qos, false, payload)
	return &tokenResult{
		token:   token,
		topic:   topic,
		timeout: t.publishTimeout,
		clock:   t.clock,
	}
}

// Subscribe records the subscription so it is re-issued on every connect and
// issues it immediately when connected. A failure leaves the subscription
// recorded for the next reconnect.
func (t *Transport) Subscribe(topic string, qos byte, handler mqttLib.MessageHandler) error {
	sub := Subscription{Topic: topic, QOS: qos, Handler: handler}

	t.mu.Lock()
	t.subs[topic] = sub
	t.mu.Unlock()

	if !t.IsConnected() {
		t.logger.Info().Str("topic", topic).Msg("MQTT not connected yet, subscription deferred until connect")
		return nil
	}
	return t.issue(sub)
}

// Unsubscribe forgets a subscription and removes it from the broker.
func (t *Transport) Unsubscribe(topic string) error {
	t.mu.Lock()
	delete(t.subs, topic)
	t.mu.Unlock()

	if !t.IsConnected() {
		return nil
	}
	token := t.client.Unsubscribe(topic)
	if !t.waitToken(token) {
		return fmt.Errorf("unsubscribe from %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		t.logger.Error().Err(err).Str("topic", topic).Msg("Failed to unsubscribe from MQTT topic")
		return err
	}
	return nil
}

// HandleConnect re-issues every recorded subscription. It is registered as
// the client's on-connect hook so a reconnect restores the subscriptions.
func (t *Transport) HandleConnect() {
	t.mu.Lock()
	subs := make([]Subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	for _, sub := range subs {
		// Failures are logged inside issue; status stays stale until the next connect.
		_ = t.issue(sub)
	}
}

// Close disconnects from the broker, waiting up to quiesce milliseconds for in-flight work.
func (t *Transport) Close(quiesce uint) {
	t.client.Disconnect(quiesce)
	t.logger.Info().Msg("MQTT client disconnected")
}

func (t *Transport) issue(sub Subscription) error {
	token := t.client.Subscribe(sub.Topic, sub.QOS, sub.Handler)
	if !t.waitToken(token) {
		t.logger.Error().Str("topic", sub.Topic).Msg("Timed out subscribing to MQTT topic")
		return fmt.Errorf("subscribe to %s: %w", sub.Topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		t.logger.Error().Err(err).Str("topic", sub.Topic).Msg("Failed to subscribe to MQTT topic")
		return fmt.Errorf("subscribe to %s: %w", sub.Topic, err)
	}
	t.logger.Info().Str("topic", sub.Topic).Msg("Successfully subscribed to MQTT topic")
	return nil
}

// waitToken waits for a control token (subscribe/unsubscribe) up to the publish timeout.
func (t *Transport) waitToken(token mqttLib.Token) bool {
	if t.publishTimeout <= 0 {
		return token.Wait()
	}
	select {
	case <-token.Done():
		return true
	case <-t.clock.After(t.publishTimeout):
		return false
	}
}
