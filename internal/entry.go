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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/annot"
	"github.com/starford/dagaz/internal/api"
	"github.com/starford/dagaz/internal/board"
	"github.com/starford/dagaz/internal/export"
	"github.com/starford/dagaz/internal/mcpserver"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/timescale"
)

// wiring is the assembled core: scale, store and compositor, plus the file
// provider when the file backend is active (nil for sqlite).
type wiring struct {
	scale      *timescale.Scale
	store      *annot.Store
	compositor *export.Compositor
	file       *storage.File
	cleanup    func()
}

func buildWiring(app *application, logger *slog.Logger) (*wiring, error) {
	cfg := app.config

	start, err := cfg.Board.StartMonthTime()
	if err != nil {
		return nil, fmt.Errorf("parse start month: %w", err)
	}
	months := timescale.MonthsRange(start, cfg.Board.MonthCount)
	scale := timescale.New(cfg.Board.MonthWidthPx, cfg.Board.BoardOffsetPx, months)

	var (
		provider storage.Provider
		file     *storage.File
		cleanup  = func() {}
	)
	switch cfg.Annotations.Backend {
	case BackendSQLite:
		db, err := storage.OpenSQLite(cfg.Annotations.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite backend: %w", err)
		}
		provider = db
		cleanup = func() { _ = db.Close() }
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Annotations.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create annotations dir: %w", err)
		}
		file, err = storage.NewFile(cfg.Annotations.Path)
		if err != nil {
			return nil, fmt.Errorf("init file backend: %w", err)
		}
		provider = file
	}

	store := annot.NewStore(provider, scale, logger)

	var layout board.LayoutProvider
	if cfg.Board.LayoutPath != "" {
		fl, err := board.LoadFileLayout(cfg.Board.LayoutPath, scale, cfg.Board.RowHeight)
		if err != nil {
			logger.Warn("board layout unavailable, card layers will be skipped",
				slog.String("path", cfg.Board.LayoutPath),
				slog.String("error", err.Error()))
		} else {
			layout = fl
		}
	}

	rasterizer := app.rasterizer
	if rasterizer == nil {
		rasterizer = export.ChromeRasterizer{}
	}

	compositor := export.New(scale, store, layout, board.StaticScroll{},
		board.FileBackground{Path: cfg.Export.BackgroundPath}, rasterizer)

	return &wiring{
		scale:      scale,
		store:      store,
		compositor: compositor,
		file:       file,
		cleanup:    cleanup,
	}, nil
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("annotations_backend", cfg.Annotations.Backend),
		slog.String("annotations_path", cfg.Annotations.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	w, err := buildWiring(app, logger)
	if err != nil {
		return err
	}
	defer w.cleanup()

	// SSE broker, fed by store change notifications.
	broker := sse.NewBroker(2 * time.Second)
	unsubscribe := w.store.Subscribe(func(ev annot.Event) {
		switch ev.Kind {
		case annot.EventCreated, annot.EventUpdated, annot.EventDeleted,
			annot.EventCleared, annot.EventReloaded:
			id := ""
			if ev.Annotation != nil {
				id = ev.Annotation.ID
			}
			broker.PublishAnnotationEvent(string(ev.Kind), id)
		}
	})
	defer unsubscribe()

	apiRouter := api.NewRouter(w.store, w.compositor, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the annotation file for external edits and reload the store.
	// Only the file backend supports this; writes made through the store
	// itself are suppressed by checksum.
	if w.file != nil {
		g.Go(func() error {
			err := storage.Watch(gCtx, w.file, logger, func() {
				items, err := w.file.Load()
				if err != nil {
					logger.Warn("external reload failed", slog.String("error", err.Error()))
					return
				}
				w.store.Replace(items)
			})
			if err != nil {
				// The server is still useful without the watcher.
				logger.Warn("file watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
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

	err = g.Wait()

	// Make sure any debounced persist reaches disk before exit.
	w.store.Flush()
	broker.Close()

	if err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server with the given options.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	// MCP speaks JSON-RPC on stdout; keep logs on stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))

	w, err := buildWiring(app, logger)
	if err != nil {
		return err
	}
	defer w.cleanup()
	defer w.store.Flush()

	srv := mcpserver.New(w.store, w.compositor)
	logger.Info("Starting MCP server on stdio")
	return srv.ServeStdio()
}

// RunExport performs a one-shot board export to a PNG file ("-" for stdout).
func RunExport(ctx context.Context, outPath string, exportOpts export.Options, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))

	w, err := buildWiring(app, logger)
	if err != nil {
		return err
	}
	defer w.cleanup()

	if exportOpts.Width <= 0 {
		exportOpts.Width = app.config.Export.DefaultWidth
	}

	res, err := w.compositor.Export(ctx, exportOpts)
	if err != nil {
		return err
	}

	if outPath == "-" {
		_, err = os.Stdout.Write(res.Bytes)
		return err
	}
	if outPath == "" {
		outPath = res.SuggestedFilename
	}
	if err := os.WriteFile(outPath, res.Bytes, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	logger.Info("Export written",
		slog.String("path", outPath),
		slog.Int("bytes", len(res.Bytes)))
	return nil
}
