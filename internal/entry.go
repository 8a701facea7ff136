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

	"github.com/starford/brief/internal/api"
	"github.com/starford/brief/internal/content"
	"github.com/starford/brief/internal/docservice"
	"github.com/starford/brief/internal/index"
	"github.com/starford/brief/internal/markdown"
	"github.com/starford/brief/internal/mcpserver"
	"github.com/starford/brief/internal/schema"
	"github.com/starford/brief/internal/sse"
	"github.com/starford/brief/internal/storage"
)

// runtime is the loaded corpus shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	catalog *schema.Catalog
	loader  *content.Loader
	bc      *content.Briefcase
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

// bootstrap loads the model definitions and the corpus. Structured logs go
// to logOut unless WithLogOutput overrides it.
func (a *application) bootstrap(logOut io.Writer) (*runtime, error) {
	cfg := a.config
	if a.logOut != nil {
		logOut = a.logOut
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("corpus_path", cfg.Corpus.Path),
		slog.String("schema_path", cfg.Schema.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Any("markdown_extensions", cfg.Markdown.Extensions),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Corpus.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Corpus.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	catalog, err := schema.LoadCatalog(cfg.Schema.Path)
	if err != nil {
		return nil, fmt.Errorf("load model definitions: %w", err)
	}
	logger.Info("Model definitions loaded", slog.Any("types", catalog.Types()))

	loader := content.NewLoader(store, catalog, content.Options{
		Engine:       markdown.New(cfg.Markdown.Extensions...),
		WrapperClass: cfg.Markdown.WrapperClass,
		Logger:       logger,
	}, content.ModelOptions{})

	bc, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, store: store, catalog: catalog, loader: loader, bc: bc}, nil
}

// openIndex opens the SQLite index and syncs it with the briefcase.
func (rt *runtime) openIndex() (*index.DB, error) {
	db, err := index.Open(rt.cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, rt.bc, rt.logger); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return db, nil
}

// documentRef describes path for change events, using the briefcase when
// the model is still loaded.
func (rt *runtime) documentRef(path string) sse.DocumentRef {
	ref := sse.DocumentRef{Path: path}
	if m, ok := rt.bc.Get(path); ok {
		ref.Type = m.Type()
		ref.GroupName = m.GroupName()
	}
	return ref
}

// Run starts the HTTP server and the corpus watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.bootstrap(os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := rt.cfg, rt.logger

	db, err := rt.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := docservice.NewService(rt.store, db, rt.loader, rt.bc, rt.catalog,
		docservice.WithEvents(func(kind string, item docservice.DocumentListItem) {
			broker.PublishDocumentEvent(kind, sse.DocumentRef{
				Path:      item.Path,
				Type:      item.Type,
				GroupName: item.GroupName,
			})
		}))
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		_, _ = fmt.Fprintf(w, `{"status":"ok","models":%d}`, rt.bc.Len())
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start corpus watcher with SSE callback.
	g.Go(func() error {
		return index.Watch(gCtx, db, rt.loader, rt.bc, rt.store.Root(), logger, func(kind, path string) {
			broker.PublishDocumentEvent(kind, rt.documentRef(path))
		})
	})

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
		// Stop the watcher as well when a signal arrived.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.bootstrap(os.Stderr)
	if err != nil {
		return err
	}
	db, err := rt.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := docservice.NewService(rt.store, db, rt.loader, rt.bc, rt.catalog)
	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc).ServeStdio()
}
