package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/ledfit/ledfit-backend/internal/api"
	"github.com/ledfit/ledfit-backend/internal/broker"
	"github.com/ledfit/ledfit-backend/internal/connectivity"
	"github.com/ledfit/ledfit-backend/internal/database"
	"github.com/ledfit/ledfit-backend/internal/directory"
	"github.com/ledfit/ledfit-backend/internal/models"
	"github.com/ledfit/ledfit-backend/internal/service_registry"
	"github.com/ledfit/ledfit-backend/internal/services"
	"github.com/ledfit/ledfit-backend/internal/users"
	"github.com/ledfit/ledfit-backend/internal/utils"
	"github.com/ledfit/ledfit-backend/pkg/file"
	"github.com/ledfit/ledfit-backend/pkg/mqtt"
	"github.com/rs/zerolog"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	// Bootstrap logger until the configured one is available
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Err(err).Msg("No .env file loaded, using process environment")
	}

	configPath := os.Getenv("LEDFIT_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	configured, err := utils.NewLogger(config.Logging.Level, config.Logging.Format, os.Stdout)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure logger")
	}
	logger = configured

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	// Stores come up before the broker session so a database failure exits
	// without leaving an MQTT connection behind.
	boards, userStore, dbCheck, closeDB := openStores(ctx, config, logger)
	defer closeDB()

	if err := directory.Seed(ctx, boards, userStore, seedBoards(config), clock.Now(), logger); err != nil {
		closeDB()
		logger.Fatal().Err(err).Msg("Failed to seed boards")
	}

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

	mqttClient := mqtt.NewMqttService(fileClient, logger.With().Str("component", "mqtt").Logger())
	transport := broker.NewTransport(mqttClient, config.MQTT.ConnectTimeout, config.MQTT.PublishTimeout, clock,
		logger.With().Str("component", "transport").Logger())
	mqttClient.OnConnect(transport.HandleConnect)

	err = mqttClient.Initialize(mqtt.Options{
		Broker:               config.MQTT.Broker,
		ClientID:             clientID,
		Username:             config.MQTT.Username,
		Password:             config.MQTT.Password,
		CACertificate:        config.MQTT.CACertificate,
		KeepAlive:            config.MQTT.KeepAlive,
		ConnectTimeout:       config.MQTT.ConnectTimeout,
		WriteTimeout:         config.MQTT.PublishTimeout,
		MaxReconnectInterval: config.MQTT.MaxReconnectInterval,
	})
	if err != nil {
		closeDB()
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT client")
	}

	// A broker that is down at startup is not fatal; the client keeps retrying.
	if err := transport.Connect(ctx); err != nil {
		logger.Error().Err(err).Msg("Initial MQTT connect failed, retrying in background")
	}

	dispatcher := services.NewDispatcher(transport, logger.With().Str("component", "dispatcher").Logger())
	router := api.NewServer(api.Dependencies{
		Users:         userStore,
		Boards:        boards,
		Evaluator:     connectivity.NewEvaluator(clock, config.Services.Connectivity.Window),
		Dispatcher:    dispatcher,
		BrokerCheck:   func(context.Context) bool { return transport.IsConnected() },
		DatabaseCheck: dbCheck,
	}, logger.With().Str("component", "api").Logger(), api.WithRequestTimeout(config.HTTP.RequestTimeout))

	serviceRegistry := service_registry.NewServiceRegistry(logger)
	err = serviceRegistry.RegisterServices(config, service_registry.Dependencies{
		Subscriber: transport,
		Directory:  boards,
		Handler:    router,
		Clock:      clock,
	})
	if err != nil {
		transport.Close(250)
		closeDB()
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		transport.Close(250)
		closeDB()
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	<-ctx.Done()

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Some services did not stop cleanly")
	}
	transport.Close(250)
}

// openStores picks the directory and user store backends from config.
func openStores(ctx context.Context, config *utils.Config, logger zerolog.Logger) (directory.Directory, users.Store, api.HealthCheck, func()) {
	if config.Database.Driver == utils.DriverMemory {
		logger.Warn().Msg("Using in-memory board directory, state is lost on restart")
		alwaysUp := func(context.Context) bool { return true }
		return directory.NewMemoryDirectory(), users.NewMemoryStore(), alwaysUp, func() {}
	}

	pool, err := database.Connect(ctx, database.Config{
		URL:             config.Database.URL,
		MaxConns:        config.Database.MaxConns,
		ConnMaxLifetime: config.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Msg("Connected to Postgres")

	return directory.NewPostgresDirectory(pool), users.NewPostgresStore(pool), pingCheck(pool), pool.Close
}

func pingCheck(pool *pgxpool.Pool) api.HealthCheck {
	return func(ctx context.Context) bool {
		return pool.Ping(ctx) == nil
	}
}

func seedBoards(config *utils.Config) []models.Board {
	boards := make([]models.Board, 0, len(config.Database.SeedBoards))
	for _, s := range config.Database.SeedBoards {
		boards = append(boards, models.Board{BoardID: s.BoardID, OwnerID: s.OwnerID})
	}
	return boards
}
