package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ledfit/ledfit-backend/internal/constants"
	"github.com/ledfit/ledfit-backend/pkg/file"
)

// Directory drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// SeedBoard is a board paired at startup, used for simulated boards in development.
type SeedBoard struct {
	BoardID string `yaml:"board_id"`
	OwnerID string `yaml:"owner_id"`
}

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker               string        `yaml:"broker"`                 // MQTT broker address
		ClientID             string        `yaml:"client_id"`              // Client id prefix; a UUID is appended per process
		Username             string        `yaml:"username"`               // Optional broker username
		Password             string        `yaml:"password"`               // Optional broker password
		CACertificate        string        `yaml:"ca_certificate"`         // Path to the CA certificate, enables TLS
		KeepAlive            time.Duration `yaml:"keep_alive"`             // Keep-alive ping interval
		ConnectTimeout       time.Duration `yaml:"connect_timeout"`        // How long startup waits for the first connect
		PublishTimeout       time.Duration `yaml:"publish_timeout"`        // Bound on every publish acknowledgement
		MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"` // Reconnect backoff ceiling
	} `yaml:"mqtt"`

	Database struct {
		Driver          string        `yaml:"driver"`            // postgres or memory
		URL             string        `yaml:"url"`               // Postgres connection string
		MaxConns        int32         `yaml:"max_conns"`         // Pool size
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // Pool connection lifetime
		SeedBoards      []SeedBoard   `yaml:"seed_boards"`       // Boards paired at startup
	} `yaml:"database"`

	Services struct {
		// When a worker queue is full the MQTT delivery callback blocks, and
		// paho delivers messages in order, so a slow directory stalls status
		// for every board. queue_size and update_timeout bound that stall.
		StatusIngestion struct {
			Workers       int           `yaml:"workers"`        // Number of update workers
			QueueSize     int           `yaml:"queue_size"`     // Pending updates per worker
			UpdateTimeout time.Duration `yaml:"update_timeout"` // Bound on one directory update
		} `yaml:"status_ingestion"`

		Connectivity struct {
			Window time.Duration `yaml:"window"` // Freshness window for lastSeen
		} `yaml:"connectivity"`
	} `yaml:"services"`

	HTTP struct {
		Addr            string        `yaml:"addr"`             // Listen address
		ReadTimeout     time.Duration `yaml:"read_timeout"`     // Server read timeout
		WriteTimeout    time.Duration `yaml:"write_timeout"`    // Server write timeout
		RequestTimeout  time.Duration `yaml:"request_timeout"`  // Per-request handler deadline
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown bound
	} `yaml:"http"`

	Logging struct {
		Level  string `yaml:"level"`  // debug, info, warn or error
		Format string `yaml:"format"` // json or console
	} `yaml:"logging"`
}

// LoadConfig loads the YAML configuration from the specified file, applies
// defaults and environment overrides, and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	config.ApplyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ledfit-backend"
	}
	if c.MQTT.KeepAlive <= 0 {
		c.MQTT.KeepAlive = 30 * time.Second
	}
	if c.MQTT.ConnectTimeout <= 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.MQTT.PublishTimeout <= 0 {
		c.MQTT.PublishTimeout = 5 * time.Second
	}
	if c.MQTT.MaxReconnectInterval <= 0 {
		c.MQTT.MaxReconnectInterval = time.Minute
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}

	if c.Services.StatusIngestion.Workers == 0 {
		c.Services.StatusIngestion.Workers = 8
	}
	if c.Services.StatusIngestion.QueueSize <= 0 {
		c.Services.StatusIngestion.QueueSize = 64
	}
	if c.Services.StatusIngestion.UpdateTimeout <= 0 {
		c.Services.StatusIngestion.UpdateTimeout = 5 * time.Second
	}
	if c.Services.Connectivity.Window == 0 {
		c.Services.Connectivity.Window = constants.ConnectivityWindow
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":3000"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 10 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// ApplyEnv overrides secrets and deployment-specific settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"MQTT_BROKER_URL", &c.MQTT.Broker},
		{"MQTT_USERNAME", &c.MQTT.Username},
		{"MQTT_PASSWORD", &c.MQTT.Password},
		{"DATABASE_URL", &c.Database.URL},
		{"HTTP_ADDR", &c.HTTP.Addr},
		{"LOG_LEVEL", &c.Logging.Level},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.target = v
		}
	}
}

// Validate rejects configurations the backend cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	for i, b := range c.Database.SeedBoards {
		if b.BoardID == "" || b.OwnerID == "" {
			errs = append(errs, fmt.Errorf("database.seed_boards[%d] needs board_id and owner_id", i))
		}
	}
	if c.Services.StatusIngestion.Workers <= 0 {
		errs = append(errs, errors.New("services.status_ingestion.workers must be positive"))
	}
	if c.Services.Connectivity.Window <= 0 {
		errs = append(errs, errors.New("services.connectivity.window must be positive"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
