package application

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/eugenenazirov/bluegreen/internal/api"
	"github.com/eugenenazirov/bluegreen/internal/config"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	cfg      config.Config
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
	listener net.Listener
	errs     chan error
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	handler, err := api.NewHandler(cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to build version handler: %w", err)
	}

	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithRootAlias(cfg.ServeRoot),
	)

	return &App{
		cfg:     cfg,
		handler: handler,
		router:  router,
		logger:  logger,
		server:  NewServer(cfg, router),
		errs:    make(chan error, 1),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the listening socket and serves in the background. A bind
// failure is returned to the caller; nothing is retried.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	a.listener = ln

	a.logger.Info("service started",
		zap.String("pool", a.cfg.Service.Pool),
		zap.String("release", a.cfg.Service.Release),
		zap.String("port", a.cfg.Service.Port),
		zap.String("addr", ln.Addr().String()),
	)

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server error", zap.Error(err))
			a.errs <- err
		}
		close(a.errs)
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (a *App) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.server.Addr
}

// Errors yields a terminal serve error, if any, and is closed once the
// server stops.
func (a *App) Errors() <-chan error {
	return a.errs
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
