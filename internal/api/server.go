// Package api is the HTTP surface the mobile app uses to query board status
// and drive the workout on the board.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ledfit/ledfit-backend/internal/connectivity"
	"github.com/ledfit/ledfit-backend/internal/constants"
	"github.com/ledfit/ledfit-backend/internal/directory"
	"github.com/ledfit/ledfit-backend/internal/users"
	"github.com/rs/zerolog"
)

// Dispatcher publishes messages to a board.
type Dispatcher interface {
	PublishCommand(ctx context.Context, boardID string, command constants.Command, clientTimestamp *int64) error
	PublishTimeSync(ctx context.Context, boardID string, durationMs float64, clientTimestamp int64, stage constants.Stage) error
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) bool

// Dependencies are the collaborators the handlers use.
type Dependencies struct {
	Users         users.Store
	Boards        directory.Directory
	Evaluator     *connectivity.Evaluator
	Dispatcher    Dispatcher
	BrokerCheck   HealthCheck
	DatabaseCheck HealthCheck
}

// ServerOption configures the router.
type ServerOption func(*serverConfig)

type serverConfig struct {
	requestTimeout time.Duration
	middlewares    []func(http.Handler) http.Handler
}

// WithRequestTimeout bounds every request handler.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.requestTimeout = d
	}
}

// WithMiddlewares adds middleware in front of every route.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer builds the router.
func NewServer(deps Dependencies, logger zerolog.Logger, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{requestTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.requestTimeout))
	r.Use(LoggingMiddleware(logger))
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/boards/status", h.boardStatus)
		r.Post("/boards/sync-time", h.syncTime)
		r.Post("/workout/state", h.workoutState)
	})

	return r
}

// LoggingMiddleware logs every request at debug level.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("HTTP request")
		})
	}
}
