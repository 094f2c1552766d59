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
	defaultPort     = "8080"
	defaultLogLevel = "info"
)

// Defaults carries the identity compiled into a service binary. It is used
// whenever neither flags, environment nor the YAML file provide a value.
type Defaults struct {
	Pool    string
	Release string
}

var (
	// BlueDefaults is the compiled-in identity of the blue pool binary.
	BlueDefaults = Defaults{Pool: "blue", Release: "1.0.0"}
	// GreenDefaults is the compiled-in identity of the green pool binary.
	GreenDefaults = Defaults{Pool: "green", Release: "2.0.0"}
)

// ServiceConfig is the identity a service instance reports about itself.
// It is resolved once at startup and never mutated afterwards.
type ServiceConfig struct {
	Pool    string
	Release string
	Port    string
}

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables > YAML config > Defaults
type Config struct {
	Service              ServiceConfig
	ServeRoot            bool
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	LogLevel             string
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Pool                 string        `yaml:"pool"`
	Release              string        `yaml:"release"`
	Port                 string        `yaml:"port"`
	ServeRoot            *bool         `yaml:"serve_root"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	LogLevel             string        `yaml:"log_level"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides. Nil fields were not set.
type CLIOverrides struct {
	ConfigFile     string
	Pool           *string
	Release        *string
	Port           *string
	ServeRoot      *bool
	RateLimitRPS   *float64
	RateLimitBurst *int
	LogLevel       *string
}

// Load resolves the configuration of a service binary. Without a config
// file it cannot fail: every unset value falls back to defaults.
func Load(defaults Defaults, overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig(defaults)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	applyEnvConfig(&cfg)

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	return cfg, nil
}

// Addr returns the listen address derived from the configured port.
func (c Config) Addr() string {
	if strings.Contains(c.Service.Port, ":") {
		return c.Service.Port
	}
	return ":" + c.Service.Port
}

func defaultConfig(defaults Defaults) Config {
	return Config{
		Service: ServiceConfig{
			Pool:    defaults.Pool,
			Release: defaults.Release,
			Port:    defaultPort,
		},
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		LogLevel:             defaultLogLevel,
	}
}

func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Pool != "" {
		cfg.Service.Pool = yamlCfg.Pool
	}
	if yamlCfg.Release != "" {
		cfg.Service.Release = yamlCfg.Release
	}
	if yamlCfg.Port != "" {
		cfg.Service.Port = yamlCfg.Port
	}
	if yamlCfg.ServeRoot != nil {
		cfg.ServeRoot = *yamlCfg.ServeRoot
	}

	applyDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	applyDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	applyDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	applyDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.RateLimit.RPS != nil && *yamlCfg.RateLimit.RPS >= 0 {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil && *yamlCfg.RateLimit.Burst >= 0 {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
}

// applyEnvConfig applies environment variable configuration. Identity values
// are taken verbatim: no trimming and no shape validation.
func applyEnvConfig(cfg *Config) {
	if pool := os.Getenv("APP_POOL"); pool != "" {
		cfg.Service.Pool = pool
	}
	if release := os.Getenv("RELEASE_ID"); release != "" {
		cfg.Service.Release = release
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Service.Port = port
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}
	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
}

func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Pool != nil && *overrides.Pool != "" {
		cfg.Service.Pool = *overrides.Pool
	}
	if overrides.Release != nil && *overrides.Release != "" {
		cfg.Service.Release = *overrides.Release
	}
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Service.Port = *overrides.Port
	}
	if overrides.ServeRoot != nil {
		cfg.ServeRoot = *overrides.ServeRoot
	}
	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
}

// applyDuration overwrites dst when raw parses; invalid values keep the default.
func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}
