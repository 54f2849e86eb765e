package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MikeSquared-Agency/frontdesk/internal/alert"
	"github.com/MikeSquared-Agency/frontdesk/internal/anthropic"
	"github.com/MikeSquared-Agency/frontdesk/internal/api"
	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/classifier"
	"github.com/MikeSquared-Agency/frontdesk/internal/config"
	"github.com/MikeSquared-Agency/frontdesk/internal/engine"
	"github.com/MikeSquared-Agency/frontdesk/internal/hermes"
	"github.com/MikeSquared-Agency/frontdesk/internal/router"
	"github.com/MikeSquared-Agency/frontdesk/internal/session"
	"github.com/MikeSquared-Agency/frontdesk/internal/store"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("frontdesk starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (optional when a rules file is configured)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database connected")
	}

	// Catalog source: the rules file wins over Postgres.
	var source catalog.Source
	var files *catalog.FileSource
	switch {
	case cfg.RulesFile != "":
		var err error
		files, err = catalog.NewFileSource(cfg.RulesFile, slog.Default())
		if err != nil {
			slog.Error("failed to load rules file", "path", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
		source = files
		slog.Info("rules file loaded", "path", cfg.RulesFile, "companies", len(files.Companies()))
	case db != nil:
		source = db
	default:
		slog.Error("either FRONTDESK_RULES_FILE or DATABASE_URL is required")
		os.Exit(1)
	}
	cache := catalog.NewCache(source, cfg.CatalogTTL, slog.Default())

	if files != nil {
		watcher := catalog.NewWatcher(files, func() { cache.Invalidate("") })
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("rules file watcher not started, hot reload disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	// Classifier (optional: without it every turn is decided by rules)
	var cls router.Classifier
	if cfg.AnthropicAPIKey != "" {
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.ClassifierModel, cfg.ClassifierTimeout)
		cls = classifier.New(llm, slog.Default())
		slog.Info("classifier ready", "model", cfg.ClassifierModel)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, routing with rules only")
	}

	// NATS/Hermes (optional: calls never depend on events)
	var pub engine.Publisher
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Warn("NATS unavailable, running without events", "error", err)
	} else {
		defer hermesClient.Close()
		pub = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)

		if err := hermesClient.Subscribe(hermes.SubjectCatalogInvalidate, cache.HandleInvalidate); err != nil {
			slog.Error("failed to subscribe to catalog invalidation", "error", err)
			os.Exit(1)
		}

		// Slack on-call alerts (optional)
		if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
			poster := alert.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
			if err := hermesClient.QueueSubscribe(hermes.SubjectCallEmergency, hermes.QueueAlerts, poster.HandleEmergency); err != nil {
				slog.Error("failed to subscribe to emergency events", "error", err)
				os.Exit(1)
			}
			// Reactions fan out; only the replica that posted the alert tracks it.
			if err := hermesClient.Subscribe(hermes.SubjectSlackReaction, poster.HandleReaction); err != nil {
				slog.Error("failed to subscribe to slack reactions", "error", err)
				os.Exit(1)
			}
			slog.Info("slack on-call alerts ready", "channel", cfg.SlackChannel)
		} else {
			slog.Warn("slack not configured, running without on-call alerts")
		}
	}

	// Routing core
	rt := router.New(cls, router.Options{
		Attempts: cfg.ClassifierAttempts,
		Timeout:  cfg.ClassifierTimeout,
		Budget:   cfg.ClassifierBudget,
		Backoff:  cfg.ClassifierBackoff,
	}, slog.Default())
	dispatcher := triage.NewDispatcher(cfg.TransferTarget, slog.Default())
	eng := engine.New(cache, rt, dispatcher, pub, slog.Default())

	var calls session.Store
	if db != nil {
		calls = db
	}
	sessions := session.NewManager(eng, cache, calls, pub, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, sessions)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("frontdesk ready", "port", cfg.Port, "classifier", cls != nil)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down", "active_calls", sessions.Active())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	sessions.Shutdown(shutdownCtx)
	cancel()
	slog.Info("frontdesk stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
