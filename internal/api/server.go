package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/wbmqtt-import/internal/device"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/config"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/logging"
	"github.com/nerrad567/wbmqtt-import/internal/namespace"
	"github.com/nerrad567/wbmqtt-import/internal/wbimport"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Importer is the part of the import module the API drives.
type Importer interface {
	Status() wbimport.Status
	Devices(ctx context.Context) ([]wbimport.DeviceInfo, error)
	Device(ctx context.Context, id string) (wbimport.DeviceInfo, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Forget(ctx context.Context, id string) error
	Tree(ctx context.Context) (wbimport.TreeDump, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Registry   *device.Registry
	Importer   Importer
	Namespaces *namespace.Store
	Version    string
}

// Server is the HTTP API server of the import service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *device.Registry
	importer   Importer
	namespaces *namespace.Store
	version    string

	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc
	unsubscribe func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Importer == nil {
		return nil, fmt.Errorf("importer is required")
	}
	if deps.Namespaces == nil {
		return nil, fmt.Errorf("namespace store is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		registry:   deps.Registry,
		importer:   deps.Importer,
		namespaces: deps.Namespaces,
		version:    deps.Version,
		hub:        NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays registry and namespace changes to it,
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.relayEvents()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// relayEvents forwards registry changes and namespace updates to WebSocket
// subscribers. Both callbacks run on the import module's goroutine, and
// Broadcast never blocks on a client.
func (s *Server) relayEvents() {
	s.unsubscribe = s.registry.Subscribe(func(ch device.Change) {
		s.hub.Broadcast(ChannelDeviceChanged, ch)
	})
	s.namespaces.OnUpdate(func(u namespace.Update) {
		s.hub.Broadcast(ChannelNamespaceUpdated, u)
	})
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
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

// HealthCheck verifies the API server is running.
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
