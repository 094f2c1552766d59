// Package launcher is the shared entrypoint of the blue and green binaries.
// The two differ only in the Defaults they pass in.
package launcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/bluegreen/internal/application"
	"github.com/eugenenazirov/bluegreen/internal/config"
	"github.com/eugenenazirov/bluegreen/internal/logging"
)

var signalNotify = signal.Notify

// Main parses args, starts the service and blocks until a termination signal
// or a fatal serve error.
func Main(name string, defaults config.Defaults, args []string) {
	overrides, err := parseArgs(name, defaults, args)
	kingpin.FatalIfError(err, "")

	cfg, err := config.Load(defaults, overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.Service.Pool, cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), app.Errors(), cfg.ShutdownGracePeriod, logger)
}

func parseArgs(name string, defaults config.Defaults, args []string) (*config.CLIOverrides, error) {
	app := kingpin.New(name, fmt.Sprintf("Reports the %s pool's release and port at GET /version", defaults.Pool))
	configFile := app.Flag("config", "Path to YAML configuration file").String()
	pool := app.Flag("pool", "Pool name reported by the service").String()
	release := app.Flag("release", "Release identifier reported by the service").String()
	port := app.Flag("port", "HTTP port exposed by the service").String()
	serveRoot := app.Flag("serve-root", "Also serve the version payload at /").Bool()
	rateLimitRPS := app.Flag("rate-limit-rps", "Requests per second allowed per client (set 0 to disable)").Default("-1").Float64()
	rateLimitBurst := app.Flag("rate-limit-burst", "Burst capacity per client (set 0 to disable)").Default("-1").Int()
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error)").String()

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		Pool:       pool,
		Release:    release,
		Port:       port,
		LogLevel:   logLevel,
	}
	if *serveRoot {
		overrides.ServeRoot = serveRoot
	}
	if *rateLimitRPS >= 0 {
		overrides.RateLimitRPS = rateLimitRPS
	}
	if *rateLimitBurst >= 0 {
		overrides.RateLimitBurst = rateLimitBurst
	}
	return overrides, nil
}

func shutdown(server *http.Server, serveErrs <-chan error, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err, ok := <-serveErrs:
		if ok {
			logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
