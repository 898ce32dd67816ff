package service_registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/ledfit/ledfit-backend/internal/api"
	"github.com/ledfit/ledfit-backend/internal/directory"
	"github.com/ledfit/ledfit-backend/internal/registry"
	"github.com/ledfit/ledfit-backend/internal/services"
	"github.com/ledfit/ledfit-backend/internal/utils"
	"github.com/rs/zerolog"
)

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	Logger      zerolog.Logger
}

// Dependencies are the shared components services are built from.
type Dependencies struct {
	Subscriber services.Subscriber
	Directory  directory.Directory
	Handler    http.Handler
	Clock      clockwork.Clock
}

// NewServiceRegistry initializes a new, empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]registry.Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Get returns a registered service.
func (sr *ServiceRegistry) Get(name string) (registry.Service, bool) {
	svc, ok := sr.services[name]
	return svc, ok
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds and registers the backend's services in start order.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	servicesInOrder := []struct {
		name        string
		constructor func() (registry.Service, error)
	}{
		{
			name: "status_ingestion",
			constructor: func() (registry.Service, error) {
				if deps.Subscriber == nil || deps.Directory == nil {
					return nil, errors.New("status ingestion needs a subscriber and a directory")
				}
				pool := utils.NewKeyedWorkerPool(
					config.Services.StatusIngestion.Workers,
					config.Services.StatusIngestion.QueueSize,
				)
				return services.NewStatusIngestionService(
					deps.Subscriber,
					deps.Directory,
					pool,
					config.Services.StatusIngestion.UpdateTimeout,
					deps.Clock,
					sr.Logger.With().Str("service", "status_ingestion").Logger(),
				), nil
			},
		},
		{
			name: "http",
			constructor: func() (registry.Service, error) {
				if deps.Handler == nil {
					return nil, errors.New("http service needs a handler")
				}
				return api.NewHTTPService(
					config.HTTP.Addr,
					deps.Handler,
					config.HTTP.ReadTimeout,
					config.HTTP.WriteTimeout,
					config.HTTP.ShutdownTimeout,
					sr.Logger.With().Str("service", "http").Logger(),
				), nil
			},
		},
	}

	for _, s := range servicesInOrder {
		svc, err := s.constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to initialize %s service", s.name)
			return fmt.Errorf("failed to initialize %s service: %w", s.name, err)
		}
		sr.RegisterService(s.name, svc)
	}
	return nil
}
