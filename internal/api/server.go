package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthd/hearth-core/internal/audit"
	"github.com/hearthd/hearth-core/internal/bus"
	"github.com/hearthd/hearth-core/internal/device"
	"github.com/hearthd/hearth-core/internal/infrastructure/config"
	"github.com/hearthd/hearth-core/internal/infrastructure/logging"
	"github.com/hearthd/hearth-core/internal/rules"
	"github.com/hearthd/hearth-core/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CommandBus is the slice of the MQTT bus the API depends on: publishing
// device commands and reporting connection status and command history.
// Declared here so tests can substitute a fake without a running broker.
type CommandBus interface {
	Publish(topic string, payload any, qos byte, retain bool, source bus.Source) error
	History() []bus.CommandRecord
	Status() bus.Status
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	App       config.AppConfig
	API       config.APIConfig
	CORS      config.CORSConfig
	WS        config.WebSocketConfig
	JWTSecret string
	Logger    *logging.Logger
	Registry  *device.Registry
	States    *state.Cache
	Rules     *rules.Store
	Bus       CommandBus
	AuditRepo audit.Repository

	// ExternalHub, if set, is used instead of creating a new hub. The
	// caller wires the same hub into the bus as its event sink so state
	// changes and command results reach WebSocket clients.
	ExternalHub *Hub

	Version string
}

// Server is the HTTP API server for Hearth Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	appCfg    config.AppConfig
	apiCfg    config.APIConfig
	corsCfg   config.CORSConfig
	wsCfg     config.WebSocketConfig
	jwtSecret string
	logger    *logging.Logger
	registry  *device.Registry
	states    *state.Cache
	rules     *rules.Store
	bus       CommandBus
	auditRepo audit.Repository
	auditCh   chan *audit.AuditLog
	version   string
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. Only the logger and
// device registry are mandatory; everything else degrades to 503 responses
// on the routes that need it.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	s := &Server{
		appCfg:    deps.App,
		apiCfg:    deps.API,
		corsCfg:   deps.CORS,
		wsCfg:     deps.WS,
		jwtSecret: deps.JWTSecret,
		logger:    deps.Logger,
		registry:  deps.Registry,
		states:    deps.States,
		rules:     deps.Rules,
		bus:       deps.Bus,
		auditRepo: deps.AuditRepo,
		version:   deps.Version,
		hub:       deps.ExternalHub,
	}

	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless one was injected externally, in
// which case the injected hub is run here too), launches the audit drain
// goroutine when an audit repository is configured, and starts the HTTP
// listener in a background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	if s.auditRepo != nil {
		go s.drainAuditLog(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.appCfg.Host, s.appCfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.apiCfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.apiCfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.apiCfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.apiCfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started",
		"address", s.server.Addr,
		"auth_required", s.apiCfg.RequireAuth,
	)

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Stop background goroutines (hub, audit drain)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
