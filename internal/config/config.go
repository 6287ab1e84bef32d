// Package config provides configuration management for the inventory server.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultMaxUploadBytes  = 10 << 20
)

// Environment variable names.
const (
	EnvHost            = "APP_HOST"
	EnvServerPort      = "APP_SERVER_PORT"
	EnvCacheDir        = "APP_CACHE_DIR"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvMaxUploadBytes  = "APP_MAX_UPLOAD_BYTES"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	Host            string
	ServerPort      int
	ShutdownTimeout time.Duration
	MetricsEnabled  bool

	// Storage settings.
	CacheDir       string
	MaxUploadBytes int64

	LogLevel string
}

// Validation errors.
var (
	ErrHostRequired           = errors.New("host is required")
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrCacheDirRequired       = errors.New("cache directory is required")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidMaxUploadBytes  = errors.New("max upload bytes must be positive")
)

// Option overrides configuration after environment variables are applied.
type Option func(*Config)

// WithHost sets the listen host.
func WithHost(host string) Option {
	return func(c *Config) { c.Host = host }
}

// WithPort sets the listen port.
func WithPort(port int) Option {
	return func(c *Config) { c.ServerPort = port }
}

// WithCacheDir sets the photo cache directory.
func WithCacheDir(dir string) Option {
	return func(c *Config) { c.CacheDir = dir }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// Load builds the configuration from defaults, then environment variables,
// then opts, and validates the result.
func Load(opts ...Option) (*Config, error) {
	cfg := &Config{
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		MaxUploadBytes:  DefaultMaxUploadBytes,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv(EnvHost); val != "" {
		c.Host = val
	}

	if val := os.Getenv(EnvServerPort); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvServerPort, err)
		}
		c.ServerPort = port
	}

	if val := os.Getenv(EnvCacheDir); val != "" {
		c.CacheDir = val
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsEnabled, err)
		}
		c.MetricsEnabled = enabled
	}

	if val := os.Getenv(EnvMaxUploadBytes); val != "" {
		size, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMaxUploadBytes, err)
		}
		c.MaxUploadBytes = size
	}

	return nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrHostRequired
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if c.CacheDir == "" {
		return ErrCacheDirRequired
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.MaxUploadBytes <= 0 {
		return ErrInvalidMaxUploadBytes
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.ServerPort))
}
