package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultErrorRateThreshold = 2.0
	defaultWindowSize         = 200
	defaultAlertCooldown      = 300 * time.Second
	defaultPollInterval       = 500 * time.Millisecond
)

// WatcherConfig holds the settings of the access-log watcher.
type WatcherConfig struct {
	LogPath            string
	WebhookURL         string
	ErrorRateThreshold float64
	WindowSize         int
	AlertCooldown      time.Duration
	MaintenanceMode    bool
	PollInterval       time.Duration
	MetricsAddr        string
	LogLevel           string
}

type yamlWatcherConfig struct {
	WebhookURL         string   `yaml:"webhook_url"`
	ErrorRateThreshold *float64 `yaml:"error_rate_threshold"`
	WindowSize         *int     `yaml:"window_size"`
	AlertCooldown      string   `yaml:"alert_cooldown"`
	MaintenanceMode    *bool    `yaml:"maintenance_mode"`
	PollInterval       string   `yaml:"poll_interval"`
	MetricsAddr        string   `yaml:"metrics_addr"`
	LogLevel           string   `yaml:"log_level"`
}

// WatcherOverrides holds command-line flag overrides for the watcher.
type WatcherOverrides struct {
	ConfigFile   string
	MetricsAddr  *string
	PollInterval *time.Duration
	LogLevel     *string
}

// LoadWatcher resolves watcher configuration for the given access log.
func LoadWatcher(logPath string, overrides *WatcherOverrides) (WatcherConfig, error) {
	cfg := WatcherConfig{
		LogPath:            logPath,
		ErrorRateThreshold: defaultErrorRateThreshold,
		WindowSize:         defaultWindowSize,
		AlertCooldown:      defaultAlertCooldown,
		PollInterval:       defaultPollInterval,
		LogLevel:           defaultLogLevel,
	}

	if overrides != nil && overrides.ConfigFile != "" {
		data, err := os.ReadFile(overrides.ConfigFile)
		if err != nil {
			return WatcherConfig{}, fmt.Errorf("load YAML config: read file: %w", err)
		}
		var yamlCfg yamlWatcherConfig
		if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
			return WatcherConfig{}, fmt.Errorf("load YAML config: parse YAML: %w", err)
		}
		applyYAMLWatcherConfig(&cfg, &yamlCfg)
	}

	applyEnvWatcherConfig(&cfg)

	if overrides != nil {
		if overrides.MetricsAddr != nil && *overrides.MetricsAddr != "" {
			cfg.MetricsAddr = *overrides.MetricsAddr
		}
		if overrides.PollInterval != nil && *overrides.PollInterval > 0 {
			cfg.PollInterval = *overrides.PollInterval
		}
		if overrides.LogLevel != nil && *overrides.LogLevel != "" {
			cfg.LogLevel = *overrides.LogLevel
		}
	}

	if err := validateWatcherConfig(cfg); err != nil {
		return WatcherConfig{}, err
	}
	return cfg, nil
}

// MaintenanceMode reports whether alerting is paused. MAINTENANCE_MODE wins
// over fallback when set, so operators can flip it on a running watcher.
func MaintenanceMode(fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv("MAINTENANCE_MODE"))
	if raw == "" {
		return fallback
	}
	return parseFlag(raw)
}

func applyYAMLWatcherConfig(cfg *WatcherConfig, yamlCfg *yamlWatcherConfig) {
	if yamlCfg.WebhookURL != "" {
		cfg.WebhookURL = yamlCfg.WebhookURL
	}
	if yamlCfg.ErrorRateThreshold != nil {
		cfg.ErrorRateThreshold = *yamlCfg.ErrorRateThreshold
	}
	if yamlCfg.WindowSize != nil {
		cfg.WindowSize = *yamlCfg.WindowSize
	}
	applyDuration(&cfg.AlertCooldown, yamlCfg.AlertCooldown)
	if yamlCfg.MaintenanceMode != nil {
		cfg.MaintenanceMode = *yamlCfg.MaintenanceMode
	}
	applyDuration(&cfg.PollInterval, yamlCfg.PollInterval)
	if yamlCfg.MetricsAddr != "" {
		cfg.MetricsAddr = yamlCfg.MetricsAddr
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
}

func applyEnvWatcherConfig(cfg *WatcherConfig) {
	if url := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")); url != "" {
		cfg.WebhookURL = url
	}
	if raw := strings.TrimSpace(os.Getenv("ERROR_RATE_THRESHOLD")); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.ErrorRateThreshold = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("WINDOW_SIZE")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			cfg.WindowSize = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("ALERT_COOLDOWN_SEC")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.AlertCooldown = time.Duration(value) * time.Second
		}
	}
	cfg.MaintenanceMode = MaintenanceMode(cfg.MaintenanceMode)
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
}

func validateWatcherConfig(cfg WatcherConfig) error {
	if cfg.LogPath == "" {
		return fmt.Errorf("log path cannot be empty")
	}
	if cfg.WindowSize <= 0 {
		return fmt.Errorf("WINDOW_SIZE must be > 0, got %d", cfg.WindowSize)
	}
	if cfg.ErrorRateThreshold < 0 {
		return fmt.Errorf("ERROR_RATE_THRESHOLD must be >= 0, got %g", cfg.ErrorRateThreshold)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

func parseFlag(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
