// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/timottowitz/covidvaccinedetox/internal/api"
	"github.com/timottowitz/covidvaccinedetox/internal/catalog"
	"github.com/timottowitz/covidvaccinedetox/internal/feed"
	"github.com/timottowitz/covidvaccinedetox/internal/ingest"
	"github.com/timottowitz/covidvaccinedetox/internal/knowledge"
	"github.com/timottowitz/covidvaccinedetox/internal/mcpserver"
	"github.com/timottowitz/covidvaccinedetox/internal/sse"
	"github.com/timottowitz/covidvaccinedetox/internal/store"
	"github.com/timottowitz/covidvaccinedetox/internal/thumbnail"
	"github.com/timottowitz/covidvaccinedetox/internal/upload"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("resources_dir", cfg.Library.ResourcesDir),
		slog.String("knowledge_dir", cfg.Library.KnowledgeDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure library directories exist.
	for _, dir := range []string{cfg.Library.ResourcesDir, cfg.Library.ThumbsDir, cfg.Library.KnowledgeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create library dir %s: %w", dir, err)
		}
	}

	// Initialize SQLite content store.
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	if err := store.Seed(ctx, db, time.Now().UTC()); err != nil {
		logger.Warn("store seed failed", slog.String("error", err.Error()))
	}

	// Resource catalog over the metadata sidecar.
	sidecar := catalog.NewSidecar(cfg.Library.MetadataFile, logger)
	if err := sidecar.SeedIfEmpty(catalog.SampleResources()); err != nil {
		logger.Warn("sidecar seed failed", slog.String("error", err.Error()))
	}

	thumbs := thumbnail.NewGenerator(cfg.Library.ThumbsDir, cfg.Library.ResourcesDir, logger)
	cat := catalog.New(sidecar, cfg.Library.ResourcesDir, thumbs, logger)

	// Background ingestion and upload pipeline.
	scheduler := ingest.NewScheduler(cfg.Library.KnowledgeDir, cfg.Library.ResourcesDir, sidecar, logger)
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	tracker := upload.NewTracker()
	processor := upload.NewProcessor(cfg.Library.ResourcesDir, cfg.Library.MaxUploadBytes,
		tracker, sidecar, thumbs, scheduler, broker, logger)

	reconciler := knowledge.NewReconciler(cfg.Library.KnowledgeDir, sidecar, knowledge.ReconcileConfig{
		Threshold:   cfg.Reconcile.Threshold,
		TitleWeight: cfg.Reconcile.TitleWeight,
		DateWeight:  cfg.Reconcile.DateWeight,
	}, logger)

	fetcher := feed.NewFetcher(cfg.Feed.URL, cfg.Feed.SamplePath, db, logger)

	// MCP stdio mode replaces the HTTP server entirely.
	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(cat, reconciler, cfg.Library.KnowledgeDir).ServeStdio()
	}

	// Build API handler and router.
	h := api.NewHandler(db, cat, processor, reconciler, fetcher, cfg.Library.KnowledgeDir)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Idempotency-Key"},
		MaxAge:         300,
	}))

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Static files: uploaded resources, thumbnails, knowledge documents.
	fileServer(r, "/resources", cfg.Library.ResourcesDir)
	fileServer(r, "/thumbs", cfg.Library.ThumbsDir)
	fileServer(r, "/knowledge", cfg.Library.KnowledgeDir)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Supervise ingestion jobs.
	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	// Start knowledge watcher with SSE callback.
	g.Go(func() error {
		return knowledge.Watch(gCtx, cfg.Library.KnowledgeDir, logger, func(kind, name string) {
			broker.PublishKnowledgeEvent(kind, name)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// fileServer mounts a directory listing-free static file server at prefix.
func fileServer(r chi.Router, prefix, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	r.Get(prefix+"/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}
