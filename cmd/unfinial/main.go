package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"unfinial/internal/api"
	"unfinial/internal/cache"
	"unfinial/internal/cli"
	apphttp "unfinial/internal/http"
	applog "unfinial/internal/log"
	"unfinial/internal/session"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Invalid configuration", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := cli.SignalContext()
	defer stop()

	store, err := cli.InitSessionStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize session store", applog.FieldError, err)
		os.Exit(1)
	}
	defer store.Close()

	publisher := cli.InitPublisher(ctx, logger, cfg)
	defer publisher.Close()

	backend := api.New(cfg.APIBaseURL, api.WithLogger(logger.WithComponent(applog.ComponentBackend).Slog()))

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	// Registered caches are swept on the server's cleanup interval.
	if sq, ok := store.(*session.SQLiteStore); ok {
		caches.Register("sessions", session.Sweeper{
			Store:  sq,
			MaxAge: cfg.SessionTTL,
			Logger: logger.WithComponent(applog.ComponentSession).Slog(),
		})
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		APIBaseURL:         cfg.APIBaseURL,
		CookieSecure:       cfg.CookieSecure,
		SessionTTL:         cfg.SessionTTL,
		SessionCacheSize:   cfg.SessionCacheSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}, apphttp.Deps{
		Backend:   backend,
		Sessions:  store,
		Publisher: publisher,
		Caches:    caches,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err)
		os.Exit(1)
	}

	srv.ReadHeaderTimeout = 5 * time.Second
	srv.ReadTimeout = 10 * time.Second
	// Handlers that wait on the backend lift this deadline per request.
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting unfinial server", "port", cfg.Port, "api_base_url", cfg.APIBaseURL,
			"session_backend", cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
