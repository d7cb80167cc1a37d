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

	"github.com/starford/cleaan/internal/api"
	"github.com/starford/cleaan/internal/hotkey"
	"github.com/starford/cleaan/internal/index"
	"github.com/starford/cleaan/internal/mcpserver"
	"github.com/starford/cleaan/internal/noteservice"
	"github.com/starford/cleaan/internal/palette"
	"github.com/starford/cleaan/internal/search"
	"github.com/starford/cleaan/internal/selection"
	"github.com/starford/cleaan/internal/sidebar"
	"github.com/starford/cleaan/internal/sse"
	"github.com/starford/cleaan/internal/storage"
	"github.com/starford/cleaan/internal/toolbar"
	"github.com/starford/cleaan/internal/tui"
)

var errConfigRequired = errors.New("config is required")

// core is the state shared by every entry point: one vault, one index and
// one selection that the palette and sidebar both observe.
type core struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB

	sel     *selection.Controller
	keys    *hotkey.Registry
	search  *search.Service
	palette *palette.Controller
	sidebar *sidebar.Controller
	notes   *noteservice.Service
}

func newLogger(app *application) *slog.Logger {
	out := app.logOutput
	if out == nil {
		out = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openCore opens the vault and the index and runs the initial sync. The
// controllers are created but not mounted.
func openCore(ctx context.Context, app *application) (*core, error) {
	cfg := app.config
	logger := newLogger(app)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("palette_hotkey", cfg.Palette.Hotkey),
		slog.String("log_level", cfg.App.LogLevel.String()))

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

	if err := index.Sync(ctx, db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	sel := selection.New()
	keys := hotkey.NewRegistry()
	searcher := search.NewService(db, cfg.Palette.SearchTimeout)

	return &core{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		db:      db,
		sel:     sel,
		keys:    keys,
		search:  searcher,
		palette: palette.New(searcher, sel, keys, palette.Options{
			Hotkey:    cfg.Palette.Hotkey,
			ExitDelay: cfg.Palette.ExitDelay,
			Logger:    logger,
		}),
		sidebar: sidebar.New(db, sel, logger),
		notes:   noteservice.NewService(store, db, sel),
	}, nil
}

// mount attaches the palette hotkey and loads the sidebar. The returned
// func unmounts both and waits for outstanding work.
func (c *core) mount(ctx context.Context) (unmount func()) {
	c.palette.Mount()
	c.sidebar.Mount(ctx)
	return func() {
		c.palette.Unmount()
		c.sidebar.Unmount()
		c.palette.Wait()
		c.sidebar.Wait()
	}
}

func (c *core) close() {
	c.sel.Close()
	if err := c.db.Close(); err != nil {
		c.logger.Warn("close index", slog.String("error", err.Error()))
	}
}

// watch keeps the index in sync with the vault. Every change reloads the
// sidebar; a deleted note is dropped from the selection.
func (c *core) watch(ctx context.Context, onEvent func(index.Event)) error {
	return index.Watch(ctx, c.db, c.store, c.cfg.Vault.Path, c.logger, func(ev index.Event) {
		if ev.Kind == index.EventDeleted {
			c.sel.Forget(ev.ID)
		}
		c.sidebar.Reload()
		if onEvent != nil {
			onEvent(ev)
		}
	})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server, the event stream and the vault watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := openCore(ctx, app)
	if err != nil {
		return err
	}
	defer c.close()
	cfg, logger := c.cfg, c.logger

	unmount := c.mount(ctx)
	defer unmount()

	broker := sse.NewBroker(cfg.SSE.Throttle)
	defer broker.Close()
	stopBridge := broker.Bridge(c.sel, c.palette, c.sidebar)
	defer stopBridge()

	svc := &api.Service{
		Notes:     c.notes,
		Search:    c.search,
		Selection: c.sel,
		Palette:   c.palette,
		Sidebar:   c.sidebar,
		Keys:      c.keys,
		Marks:     toolbar.NewMarks(),
	}
	apiRouter, err := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthz)
	r.Get("/health/ready", healthz)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := c.watch(gCtx, func(ev index.Event) {
			broker.PublishNoteEvent(ev.Kind, ev.ID, ev.Path)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		waitForShutdown(gCtx, logger)

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

// errShutdown cancels the group once a signal arrived so the watcher stops
// with the server.
var errShutdown = errors.New("shutdown")

func waitForShutdown(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}

// RunMCP serves the note tools over stdio. The process keeps a selection
// of its own.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logOutput == nil {
		app.logOutput = os.Stderr
	}
	c, err := openCore(ctx, app)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.watch(gCtx, nil); err != nil {
			c.logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		c.logger.Info("MCP server starting on stdio")
		return mcpserver.New(c.notes, c.search, c.sel).ServeStdio()
	})
	return g.Wait()
}

// RunTUI hosts the sidebar and the palette in the terminal until the user
// quits.
func RunTUI(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logOutput == nil {
		app.logOutput = io.Discard
	}
	c, err := openCore(ctx, app)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unmount := c.mount(ctx)
	defer unmount()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.watch(gCtx, nil); err != nil {
			c.logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return tui.Run(gCtx, c.palette, c.sidebar, c.keys)
	})
	return g.Wait()
}
