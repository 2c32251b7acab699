// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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

	"github.com/starford/prefcenter/internal/api"
	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/inbox"
	"github.com/starford/prefcenter/internal/mcpserver"
	"github.com/starford/prefcenter/internal/session"
	"github.com/starford/prefcenter/internal/sse"
	"github.com/starford/prefcenter/internal/storage"
	"github.com/starford/prefcenter/internal/wire"
)

// components is the wired object graph shared by the HTTP and MCP entry points.
type components struct {
	sessions *session.Manager
	broker   *sse.Broker
	intents  *wire.Handler
	handler  http.Handler
}

func (c *components) close() {
	c.broker.Close()
}

// setup applies opts, builds the logger and opens the store. The returned
// closer releases the store when setup opened it.
func setup(logOut io.Writer, opts ...Option) (*application, func(), error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(app.logger)
	}

	closer := func() {}
	if app.store == nil {
		store, err := openStore(cfg.Store)
		if err != nil {
			return nil, nil, fmt.Errorf("init storage: %w", err)
		}
		app.store = store
		closer = func() {
			if err := store.Close(); err != nil {
				app.logger.Warn("store close failed", slog.String("error", err.Error()))
			}
		}
	}

	return app, closer, nil
}

// openStore opens the store selected by cfg.Kind.
func openStore(cfg StoreConfig) (storage.Provider, error) {
	switch cfg.Kind {
	case StoreKindSQLite:
		return storage.OpenSQLite(cfg.SQLite.Path)
	case StoreKindFS:
		if err := os.MkdirAll(cfg.FS.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		return storage.NewFS(cfg.FS.Path)
	case StoreKindMemory:
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

// newSessions builds the session manager. Every session event goes to each
// sink.
func newSessions(app *application, sinks ...session.EventFunc) *session.Manager {
	cfg := app.config
	return session.NewManager(app.store, session.ManagerConfig{
		BaseKey:        cfg.Form.StoreKey,
		RestoreValues:  cfg.Form.RestoreValues,
		NewIDGenerator: cfg.Form.IDGenerator(),
		Logger:         app.logger,
		OnEvent: func(e session.Event) {
			for _, sink := range sinks {
				sink(e)
			}
		},
	})
}

// newComponents wires sessions, event fan-out and the HTTP router.
func newComponents(app *application) *components {
	cfg := app.config

	broker := sse.NewBroker(cfg.App.HTTP.EventThrottle)

	// The wire handler needs the manager and the manager's event sink needs
	// the wire handler; intents is assigned before any session exists.
	var intents *wire.Handler
	sessions := newSessions(app,
		func(e session.Event) {
			broker.Publish(sse.Event{SessionID: e.SessionID, Type: e.Type, Data: e.Data})
		},
		func(e session.Event) {
			if intents != nil {
				intents.Publish(e)
			}
		},
	)
	intents = wire.NewHandler(sessions, app.logger)

	assets := api.NewAssetHandler(cfg.Assets.Path, sessions)

	apiRouter := api.NewRouter(sessions, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      broker,
		Intents:     intents,
		Assets:      assets,
	})

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := app.store.Get(r.Context(), cfg.Form.StoreKey); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Uploaded logo images (unauthenticated so <img> tags can load them).
	r.Get("/assets/{sid}/{filename}", assets.ServeFile)

	return &components{
		sessions: sessions,
		broker:   broker,
		intents:  intents,
		handler:  r,
	}
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, closeStore, err := setup(os.Stdout, opts...)
	if err != nil {
		return err
	}
	defer closeStore()

	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_kind", cfg.Store.Kind),
		slog.String("store_key", cfg.Form.StoreKey),
		slog.String("id_strategy", cfg.Form.IDStrategy),
		slog.String("assets_path", cfg.Assets.Path),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Assets.Path, 0o755); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	c := newComponents(app)
	defer c.close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: c.handler,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the import inbox.
	if cfg.Inbox.Path != "" {
		target, err := c.sessions.Get(ctx, cfg.Inbox.Session)
		if err != nil {
			return fmt.Errorf("inbox session: %w", err)
		}
		g.Go(func() error {
			return inbox.Watch(gCtx, cfg.Inbox.Path, target, logger, nil)
		})
	}

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
		defer signal.Stop(quit)

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the inbox watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the form tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, closeStore, err := setup(os.Stderr, opts...)
	if err != nil {
		return err
	}
	defer closeStore()

	cfg := app.config
	if err := os.MkdirAll(cfg.Assets.Path, 0o755); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	sessions := newSessions(app)
	app.logger.Info("MCP server starting", slog.String("store_kind", cfg.Store.Kind))

	return mcpserver.New(sessions, cfg.Assets.Path).ServeStdio()
}
