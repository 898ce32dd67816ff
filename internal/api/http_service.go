package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPService runs the API server as a registry service.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	listener net.Listener
	done     chan struct{}
}

// NewHTTPService wraps handler in an http.Server listening on addr.
func NewHTTPService(addr string, handler http.Handler, readTimeout, writeTimeout, shutdownTimeout time.Duration, logger zerolog.Logger) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned so the registry can roll back.
func (s *HTTPService) Start() error {
	if s.listener != nil {
		return errors.New("http service is already running")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
	return nil
}

// Stop shuts the server down, waiting up to the shutdown timeout for in-flight requests.
func (s *HTTPService) Stop() error {
	if s.listener == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	<-s.done
	s.listener = nil
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info().Msg("HTTP server shutdown complete")
	return nil
}

// Addr is the bound address once started.
func (s *HTTPService) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}
