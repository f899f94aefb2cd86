package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HTTP server timeouts. The admin endpoints answer from memory or a
// single SQLite query, so these stay short.
const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// StatusSource reports the helper state served by /api/v1/status.
// *helper.Helper implements it.
type StatusSource interface {
	State() helper.State
	SubscriptionStatus() helper.SubscriptionStatus
	LastAcknowledged() (uint64, bool)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps holds the dependencies required by the admin server.
type Deps struct {
	Config   config.MetricsConfig
	Logger   *logging.Logger
	Helper   StatusSource
	Gatherer prometheus.Gatherer

	// ClientID names the MQTT session in response headers, error bodies
	// and request logs.
	ClientID string

	// Journal is optional; the journal endpoints answer 503 without it.
	Journal journal.Repository

	// Checks are run by /healthz, keyed by component name.
	Checks map[string]HealthCheck

	Version string
}

// Server is the admin HTTP server.
type Server struct {
	listen    string
	clientID  string
	logger    *logging.Logger
	helper    StatusSource
	gatherer  prometheus.Gatherer
	journal   journal.Repository
	checks    map[string]HealthCheck
	version   string
	startTime time.Time

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// New creates an admin server. The server does not listen until Run.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Helper == nil {
		return nil, fmt.Errorf("helper is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Config.Listen == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	return &Server{
		listen:    deps.Config.Listen,
		clientID:  deps.ClientID,
		logger:    deps.Logger,
		helper:    deps.Helper,
		gatherer:  deps.Gatherer,
		journal:   deps.Journal,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully. It returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("admin server listen on %s: %w", s.listen, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("admin server listening", "address", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("admin server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down admin server: %w", err)
	}
	return nil
}

// Addr returns the bound listener address, or nil before Run has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
