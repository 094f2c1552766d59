package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/eugenenazirov/bluegreen/internal/accesslog"
	"github.com/eugenenazirov/bluegreen/internal/config"
	"github.com/eugenenazirov/bluegreen/internal/logging"
	"github.com/eugenenazirov/bluegreen/internal/metrics"
	"github.com/eugenenazirov/bluegreen/internal/notify"
	"github.com/eugenenazirov/bluegreen/internal/storage"
	"github.com/eugenenazirov/bluegreen/internal/watcher"
)

func main() {
	kingpinApp := kingpin.New("watcher", "Follows the load balancer access log and alerts on pool failovers and upstream 5xx spikes")
	logPath := kingpinApp.Arg("log-path", "Access log to follow").Required().String()
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	metricsAddr := kingpinApp.Flag("metrics-addr", "Address serving Prometheus metrics at /metrics (disabled when empty)").String()
	pollInterval := kingpinApp.Flag("poll-interval", "Fallback polling interval for new log lines").Default("0s").Duration()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()

	if _, err := kingpinApp.Parse(os.Args[1:]); err != nil {
		kingpinApp.Errorf("%s, try --help", err)
		os.Exit(2)
	}

	cfg, err := config.LoadWatcher(*logPath, &config.WatcherOverrides{
		ConfigFile:   *configFile,
		MetricsAddr:  metricsAddr,
		PollInterval: pollInterval,
		LogLevel:     logLevel,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New("watcher", cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := os.Stat(cfg.LogPath); err != nil {
		logger.Fatal("log file does not exist", zap.String("path", cfg.LogPath), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewWithRegistry(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer, err = serveMetrics(cfg.MetricsAddr, registry, logger)
		if err != nil {
			logger.Fatal("failed to start metrics server", zap.Error(err))
		}
	}

	monitor := watcher.New(cfg, notify.NewSlack(cfg.WebhookURL, logger), storage.NewMemoryStorage(), m, logger)
	tailer, err := accesslog.NewTailer(cfg.LogPath, cfg.PollInterval, logger)
	if err != nil {
		logger.Fatal("failed to initialize tailer", zap.Error(err))
	}

	logger.Info("watcher started",
		zap.String("log_path", cfg.LogPath),
		zap.Float64("error_rate_threshold", cfg.ErrorRateThreshold),
		zap.Int("window_size", cfg.WindowSize),
		zap.Duration("alert_cooldown", cfg.AlertCooldown),
		zap.Bool("maintenance_mode", cfg.MaintenanceMode),
		zap.Bool("webhook_configured", cfg.WebhookURL != ""),
	)

	runErr := tailer.Run(ctx, func(line string) {
		monitor.Process(ctx, line)
	})
	logger.Info("shutting down watcher")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
		cancel()
	}

	if runErr != nil {
		logger.Fatal("watcher stopped", zap.Error(runErr))
	}
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(gatherer))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return server, nil
}
