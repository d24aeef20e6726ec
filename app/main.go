package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-pulse/app/api"
	"github.com/lysyi3m/rss-pulse/app/audit"
	"github.com/lysyi3m/rss-pulse/app/cfg"
	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/feed"
	"github.com/lysyi3m/rss-pulse/app/logging"
	"github.com/lysyi3m/rss-pulse/app/refresh"
	"github.com/lysyi3m/rss-pulse/app/tasks"
	"github.com/lysyi3m/rss-pulse/app/trigger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}
	if appCfg == nil {
		// Help was shown
		return nil
	}

	logCloser, err := logging.Setup(logging.Options{Debug: appCfg.Debug, File: appCfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("Starting RSS Pulse", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", db.Path(), "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	articleRepo := database.NewArticleRepository(db)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		// Valid configs are still loaded; broken ones are skipped until fixed and reloaded.
		slog.Warn("Some feed configurations failed to load", "error", err)
	}
	slog.Info("Feed configurations loaded", "dir", appCfg.FeedsDir, "count", configCache.GetConfigCount())

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fetcher := feed.NewFetcher(httpClient, feed.NewParser(), appCfg.UserAgent)
	extractor := feed.NewContentExtractor(httpClient, appCfg.UserAgent)

	refreshScheduler := refresh.NewScheduler(feedRepo, refresh.Policy{
		DefaultInterval:        appCfg.GetDefaultRefreshInterval(),
		RetryInterval:          appCfg.GetRetryInterval(),
		MaxConsecutiveFailures: appCfg.MaxConsecutiveFailures,
	})
	orchestrator := refresh.NewOrchestrator(refreshScheduler, feedRepo, articleRepo, fetcher, configCache, extractor, refresh.Limits{
		MaxInFlight:  appCfg.MaxInFlight,
		FetchTimeout: appCfg.GetFetchTimeout(),
	})

	auditLogger, auditReader, closeAudit := setupAudit(appCfg)
	defer closeAudit()

	service := trigger.NewService(refreshScheduler, orchestrator, feedRepo, auditLogger)

	taskScheduler := tasks.NewScheduler(configCache, feedRepo, service, tasks.Settings{
		Interval:    appCfg.GetSchedulerInterval(),
		WorkerCount: appCfg.WorkerCount,
	})
	taskScheduler.Start()
	defer taskScheduler.Stop()

	handler := api.NewHandler(configCache, feedRepo, articleRepo, service, taskScheduler, auditReader, appCfg.CronSecret, appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:        ":" + appCfg.Port,
		Handler:     server,
		ReadTimeout: 30 * time.Second,
		// A cron or admin refresh answers only after the whole batch completes.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if appCfg.CronSecret == "" {
			slog.Warn("CRON_SECRET not set, /api/cron/refresh will answer with a configuration error")
		}
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return nil
}

// setupAudit always logs audit entries through slog and, when Redis is
// configured and reachable, also appends them to a capped Redis list.
func setupAudit(appCfg *cfg.Cfg) (audit.Logger, api.AuditReader, func()) {
	slogLogger := audit.NewSlogLogger(slog.Default())
	if appCfg.RedisAddr == "" {
		return slogLogger, nil, func() {}
	}

	redisLogger, err := audit.NewRedisLogger(appCfg.RedisAddr, appCfg.RedisAuditKey)
	if err != nil {
		slog.Warn("Redis audit sink unavailable, continuing with log-only audit", "redis", appCfg.RedisAddr, "error", err)
		return slogLogger, nil, func() {}
	}

	return audit.Multi{slogLogger, redisLogger}, redisLogger, func() {
		if err := redisLogger.Close(); err != nil {
			slog.Warn("Failed to close Redis audit sink", "error", err)
		}
	}
}
