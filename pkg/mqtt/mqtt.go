package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ledfit/ledfit-backend/pkg/file"
	"github.com/rs/zerolog"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options holds the broker connection settings.
type Options struct {
	Broker               string
	ClientID             string
	Username             string
	Password             string
	CACertificate        string // optional path; enables TLS when set
	KeepAlive            time.Duration
	ConnectTimeout       time.Duration
	WriteTimeout         time.Duration
	MaxReconnectInterval time.Duration
}

// MqttService provides methods for MQTT operations.
type MqttService struct {
	client     mqtt.Client
	fileClient file.FileOperations
	logger     zerolog.Logger

	mu           sync.Mutex
	connectHooks []func()
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations, logger zerolog.Logger) *MqttService {
	return &MqttService{
		fileClient: fileClient,
		logger:     logger,
	}
}

// OnConnect registers a hook that runs after every successful connect,
// including automatic reconnects. Hooks must be registered before Initialize.
func (s *MqttService) OnConnect(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectHooks = append(s.connectHooks, hook)
}

// Initialize builds the underlying paho client. It does not connect; call Connect.
func (s *MqttService) Initialize(o Options) error {
	if o.Broker == "" {
		return errors.New("mqtt broker url is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}

	if o.CACertificate != "" {
		tlsConfig, err := s.tlsConfig(o.CACertificate)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	if o.KeepAlive > 0 {
		opts.SetKeepAlive(o.KeepAlive)
	}
	if o.ConnectTimeout > 0 {
		opts.SetConnectTimeout(o.ConnectTimeout)
	}
	if o.WriteTimeout > 0 {
		opts.SetWriteTimeout(o.WriteTimeout)
	}
	if o.MaxReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(o.MaxReconnectInterval)
	}

	// The client owns reconnection with backoff, both for the first connect
	// and after a lost connection.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetCleanSession(true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.logger.Info().Str("broker", o.Broker).Msg("MQTT client connected to broker")
		s.mu.Lock()
		hooks := append([]func(){}, s.connectHooks...)
		s.mu.Unlock()
		for _, hook := range hooks {
			hook()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("MQTT connection lost")
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		s.logger.Info().Msg("MQTT client reconnecting")
	})

	s.client = mqtt.NewClient(opts)
	return nil
}

func (s *MqttService) tlsConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := s.fileClient.ReadFileRaw(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to append CA certificate")
	}
	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// IsConnectionOpen reports whether the connection is currently up.
// It is false while the client is reconnecting.
func (s *MqttService) IsConnectionOpen() bool {
	return s.client != nil && s.client.IsConnectionOpen()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	if s.client == nil {
		return
	}
	s.client.Disconnect(quiesce)
}
