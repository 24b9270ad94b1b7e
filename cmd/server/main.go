package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"validation-viewer/api/rest/handlers"
	"validation-viewer/api/rest/routes"
	"validation-viewer/config"
	"validation-viewer/core/catalog"
	"validation-viewer/core/monitoring"
	"validation-viewer/core/orchestrator"
	"validation-viewer/core/preferences"
	"validation-viewer/core/repository"
	"validation-viewer/core/viewer"
	"validation-viewer/logging"
	"validation-viewer/providers/validation"
	"validation-viewer/storage"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON, Service: "validation-viewer"})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// Initialize preference storage
	var (
		durable preferences.Backend
		events  handlers.EventLog
		sinks   []orchestrator.Observer
	)
	switch cfg.PreferenceBackend {
	case config.PreferencePostgres:
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database connected successfully")

		durable = repository.NewPreferenceRepository(db)
		eventRepo := repository.NewEventRepository(db)
		events = eventRepo

		tracker := monitoring.NewEventTracker(eventRepo, 1024, logger)
		sinks = append(sinks, tracker)
		g.Go(func() error {
			tracker.Start(ctx)
			return nil
		})
	case config.PreferenceBadger:
		bcfg := storage.DefaultBadgerConfig(cfg.BadgerPath)
		bcfg.Logger = logger
		store, err := storage.OpenBadgerStore(bcfg)
		if err != nil {
			return err
		}
		defer store.Close()
		durable = store
		g.Go(func() error {
			store.StartGC(ctx)
			return nil
		})
	default:
		durable = preferences.NewMemoryBackend()
	}

	// Initialize comparison backend
	client, err := validation.NewClient(cfg.BackendURL, cfg.RequestTimeout, logger)
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(client, orchestrator.Options{
		PollInterval:    cfg.PollInterval,
		PollTimeout:     cfg.PollTimeout,
		MaxPollFailures: cfg.MaxPollFailures,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	manager, err := viewer.NewManager(viewer.ManagerConfig{
		Revisions:   client,
		Lookup:      orch,
		Durable:     durable,
		Prefix:      cfg.StoragePrefix,
		DefaultMode: catalog.Mode(cfg.DefaultMode),
		IdleTimeout: cfg.SessionIdleTimeout,
		Observers:   append([]orchestrator.Observer{monitoring.NewJobMonitor(logger)}, sinks...),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer manager.CloseAll()
	g.Go(func() error {
		manager.StartReaper(ctx)
		return nil
	})

	r := mux.NewRouter()
	routes.SetupRoutes(r, manager, events, logger)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting server", "port", cfg.ServerPort, "backend", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
