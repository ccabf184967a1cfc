// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cardweb/internal/api"
	"github.com/starford/cardweb/internal/cardservice"
	"github.com/starford/cardweb/internal/index"
	"github.com/starford/cardweb/internal/mcpserver"
	"github.com/starford/cardweb/internal/metrics"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/sse"
	"github.com/starford/cardweb/internal/storage"
)

// core is the part of the application shared by every run mode.
type core struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	db      *index.DB
	metrics *metrics.Metrics
	svc     *cardservice.Service
}

func (c *core) Close() error {
	return c.db.Close()
}

// bootstrap opens the vault and index, runs the initial sync and
// publishes the first snapshot.
func bootstrap(opts ...Option) (*core, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := newLogger(cfg.App, app.logOut)
	slog.SetDefault(logger)

	logger.Info("app: configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.String("log_format", cfg.App.LogFormat))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if _, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("app: initial sync failed", slog.String("error", err.Error()))
	}

	m := metrics.New()
	similarity, err := cfg.Engine.LoadSimilarity()
	if err != nil {
		db.Close()
		return nil, err
	}
	svc := cardservice.NewService(store, db, snapshot.NewStore(), cardservice.Options{
		MaxNGram:             cfg.Engine.MaxNGram,
		FingerprintSize:      cfg.Engine.FingerprintSize,
		MemoSize:             cfg.Engine.MemoSize,
		UserID:               cfg.Engine.UserID,
		RandomSalt:           cfg.Engine.RandomSalt,
		CardSimilarity:       similarity,
		BackgroundSimilarity: cfg.Engine.BackgroundSimilarity,
		Fallbacks:            cfg.Collections.Fallbacks,
		StartCards:           cfg.Collections.StartCards,
		InverseFilters:       cfg.Collections.InverseFilters,
		Metrics:              m,
		Logger:               logger,
	})
	snap, err := svc.Rebuild()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	logger.Info("app: snapshot ready",
		slog.Uint64("generation", snap.Generation),
		slog.Int("cards", len(snap.Cards)))

	return &core{cfg: cfg, logger: logger, store: store, db: db, metrics: m, svc: svc}, nil
}

// watch keeps the index and snapshot in step with the vault until ctx is done.
func (c *core) watch(ctx context.Context, onEvent func(index.Event)) error {
	return index.Watch(ctx, c.db, c.store, c.cfg.Vault.Path, c.logger, func(ev index.Event) {
		if _, err := c.svc.Rebuild(); err != nil {
			c.logger.Error("app: rebuild after change failed",
				slog.String("path", ev.Path),
				slog.String("error", err.Error()))
			return
		}
		if onEvent != nil {
			onEvent(ev)
		}
	})
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	c, err := bootstrap(opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg, logger := c.cfg, c.logger

	// SSE broker; snapshot events are coalesced within the throttle window.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	c.svc.Snapshots().OnReplace(func(snap *snapshot.Snapshot) {
		broker.PublishSnapshot(sse.SnapshotInfo{Generation: snap.Generation, Cards: len(snap.Cards)})
	})

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", c.metrics.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.watch(gCtx, func(ev index.Event) {
			broker.PublishCardEvent(ev.Kind, ev.ID, ev.Path)
		})
	})
	g.Go(func() error {
		return c.svc.RunSimilarity(gCtx)
	})

	g.Go(func() error {
		logger.Info("app: http server starting", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("app: received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("app: context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("app: http server shutdown error", slog.String("error", err.Error()))
		}

		// Unblock the watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("app: application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("app: server stopped")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio while the watcher keeps the
// snapshot fresh. Logs must not go to stdout in this mode.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, err := bootstrap(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := mcpserver.New(c.svc)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.watch(gCtx, nil)
	})
	g.Go(func() error {
		return c.svc.RunSimilarity(gCtx)
	})
	g.Go(func() error {
		c.logger.Info("app: mcp server starting on stdio")
		if err := srv.ServeStdio(); err != nil {
			return fmt.Errorf("mcp server error: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}

// Query evaluates one collection path and writes the result as JSON to w.
func Query(ctx context.Context, w io.Writer, path, card string, opts ...Option) error {
	c, err := bootstrap(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer c.Close()

	view, err := c.svc.Evaluate(ctx, path, card)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
