// Package cli holds the start-up steps of the unfinial command.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"unfinial/internal/config"
	"unfinial/internal/events"
	applog "unfinial/internal/log"
	"unfinial/internal/session"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger and installs it as the slog
// default.
func SetupLogger(level, format string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Component: applog.ComponentApp,
		JSON:      format == "json",
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig reads the environment and validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSessionStore opens the configured session backend.
func InitSessionStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) (session.Store, error) {
	logger = logger.WithComponent(applog.ComponentSession)
	switch cfg.SessionBackend {
	case config.SessionBackendSQLite:
		store, err := session.NewSQLiteStore(ctx, cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite session store %s: %w", cfg.SQLiteDBPath, err)
		}
		logger.InfoContext(ctx, "Session store ready", "backend", cfg.SessionBackend, "path", cfg.SQLiteDBPath)
		return store, nil
	default:
		logger.InfoContext(ctx, "Session store ready", "backend", config.SessionBackendMemory)
		return session.NewMemoryStore(), nil
	}
}

// InitPublisher connects the activity event publisher. Events are best
// effort, so an unreachable broker downgrades to a no-op publisher.
func InitPublisher(ctx context.Context, logger *applog.Logger, cfg *config.Config) events.Publisher {
	logger = logger.WithComponent(applog.ComponentEvents)
	if cfg.AMQPURL == "" {
		logger.InfoContext(ctx, "Activity events disabled")
		return events.NopPublisher{}
	}
	pub, err := events.NewAMQPPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger.Slog())
	if err != nil {
		logger.WarnContext(ctx, "AMQP unavailable, activity events disabled", applog.FieldError, err)
		return events.NopPublisher{}
	}
	logger.InfoContext(ctx, "Activity events enabled", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
	return pub
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
