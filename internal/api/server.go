// Package api provides the HTTP REST API and WebSocket server for the RustFS launcher.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/rustfs-launcher/internal/history"
	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/config"
	"github.com/nerrad567/rustfs-launcher/internal/infrastructure/logging"
	"github.com/nerrad567/rustfs-launcher/internal/process"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Supervisor is the subset of *process.Supervisor the API dispatches to.
type Supervisor interface {
	Launch(ctx context.Context, cfg process.LaunchConfig) (string, error)
	Validate(cfg process.LaunchConfig) (bool, error)
	Diagnose(ctx context.Context) (string, error)
	Terminate()
	AppLogs() []string
	ProcessLogs() []string
	Stats() process.Stats
}

// HealthChecker is implemented by infrastructure clients (database, MQTT, InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Supervisor Supervisor

	// Register is called with the hub once the listener is up.
	// Typically supervisor.Broadcaster().SetSurface.
	Register func(*Hub) bool

	History history.Repository       // optional
	Health  map[string]HealthChecker // optional, keyed by component name
	Version string
}

// Server is the HTTP API server for the RustFS launcher.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	supervisor Supervisor
	register   func(*Hub) bool
	history    history.Repository
	health     map[string]HealthChecker
	version    string
	started    time.Time

	hub    *Hub
	router http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. The router and hub are
// built immediately so Handler() can be exercised without a listener.
//
// Parameters:
//   - deps: Required dependencies (config, logger, supervisor)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("process supervisor is required")
	}
	// History is optional: runs endpoints answer 503 without it

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		supervisor: deps.Supervisor,
		register:   deps.Register,
		history:    deps.History,
		health:     deps.Health,
		version:    deps.Version,
		started:    time.Now(),
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	s.router = s.buildRouter()

	return s, nil
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It binds the listener synchronously so a port conflict is reported to the
// caller, starts the WebSocket hub, registers it as the display surface and
// serves in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub lifetime
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	if s.register != nil && !s.register(s.hub) {
		s.logger.Warn("display surface already registered, hub will not receive log events")
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
