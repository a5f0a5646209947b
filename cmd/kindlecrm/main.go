package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kindlecrm/internal/backend"
	"kindlecrm/internal/cache"
	"kindlecrm/internal/cli"
	"kindlecrm/internal/config"
	apphttp "kindlecrm/internal/http"
	"kindlecrm/internal/log"
	"kindlecrm/internal/metrics"
	"kindlecrm/internal/services"
	"kindlecrm/internal/session"
)

func main() {
	cfg := cli.MustLoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	components, err := backend.NewFactory(logger).Build(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backends", log.FieldError, err, log.FieldOperation, log.OpStartup)
		os.Exit(1)
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error("Failed to close backends", log.FieldError, err)
		}
	}()

	m := metrics.New()

	// A nil *amqp.Client must not become a non-nil interface.
	var publisher services.SyncPublisher
	if components.Publisher != nil {
		publisher = components.Publisher
	}
	drafts := services.NewDraftService(components.Drafts, publisher, logger)

	dashboard := services.NewDashboardService(services.DashboardOptions{
		Sessions: components.Sessions,
		Composer: components.Composer,
		Drafts:   drafts,
		Metrics:  m,
		Logger:   logger,
		Policy:   services.MatchPolicy(cfg.HistoryMatch),
	})

	checks := make(map[string]func(context.Context) error, len(components.Checks))
	for name, check := range components.Checks {
		checks[name] = check
	}
	var sessionCount func() int
	if mem, ok := components.Sessions.(*session.Memory); ok {
		sessionCount = mem.Len
	}

	srv, err := apphttp.NewServer(cfg.Addr(), apphttp.Options{
		Dashboard:      dashboard,
		Metrics:        m,
		Logger:         logger,
		Checks:         checks,
		SessionCount:   sessionCount,
		SessionTTL:     cfg.SessionTTL,
		SecureCookies:  cfg.SecureCookies,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimitRPM:   cfg.RateLimitRPM,
	})
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	// Expire idle sessions and rate limit buckets.
	caches := cache.NewManager(logger)
	if components.SessionCleaner != nil {
		caches.Register("sessions", components.SessionCleaner)
	}
	caches.Register("rate_limit", srv.RateLimitCleaner())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting kindlecrm server",
			"addr", cfg.Addr(),
			"sessions", cfg.SessionBackend,
			"drafts", cfg.DraftBackend,
			"composer", cfg.ComposerBackend,
			"history_match", cfg.HistoryMatch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err, log.FieldOperation, log.OpShutdown)
	}
	logger.Info("Server stopped gracefully")
}
