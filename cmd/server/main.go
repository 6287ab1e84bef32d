// Package main is the entry point for the inventory server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/inventory-service/internal/config"
	"github.com/vyrodovalexey/inventory-service/internal/photo"
	"github.com/vyrodovalexey/inventory-service/internal/server"
	"github.com/vyrodovalexey/inventory-service/internal/store"
)

func main() {
	cmd := newRootCommand(run)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// rootFlags holds the command-line values before they are merged into the config.
type rootFlags struct {
	host     string
	port     int
	cacheDir string
	logLevel string
}

// runFunc starts the service with a validated configuration.
type runFunc func(ctx context.Context, cfg *config.Config) error

func newRootCommand(runner runFunc) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "inventory-server",
		Short:         "Inventory tracking HTTP service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runner(ctx, cfg)
		},
	}

	// -h is taken by --host; cobra then exposes help as --help only.
	cmd.Flags().StringVarP(&flags.host, "host", "h", "", "Server host (env "+config.EnvHost+")")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Server port (env "+config.EnvServerPort+")")
	cmd.Flags().StringVarP(&flags.cacheDir, "cache", "c", "", "Photo cache directory (env "+config.EnvCacheDir+")")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (env "+config.EnvLogLevel+")")

	return cmd
}

// loadConfig merges explicitly set flags over the environment.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	var opts []config.Option
	if cmd.Flags().Changed("host") {
		opts = append(opts, config.WithHost(flags.host))
	}
	if cmd.Flags().Changed("port") {
		opts = append(opts, config.WithPort(flags.port))
	}
	if cmd.Flags().Changed("cache") {
		opts = append(opts, config.WithCacheDir(flags.cacheDir))
	}
	if cmd.Flags().Changed("log-level") {
		opts = append(opts, config.WithLogLevel(flags.logLevel))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config) error {
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.String("host", cfg.Host),
		zap.Int("server_port", cfg.ServerPort),
		zap.String("cache_dir", cfg.CacheDir),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes),
	)

	photos, err := photo.Open(cfg.CacheDir, logger)
	if err != nil {
		return fmt.Errorf("open photo cache: %w", err)
	}
	defer func() {
		if err := photos.Close(); err != nil {
			logger.Warn("failed to close photo cache", zap.Error(err))
		}
	}()

	itemStore := store.NewMemoryStore(store.WithReleaser(photos))
	srv := server.New(cfg, logger, itemStore, photos)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
