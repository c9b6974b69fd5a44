// Package server initializes and runs the contribution log backend. It
// opens the database and object storage, applies migrations, restores the
// local snapshot and serves the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericthayer/devlog/internal/ai"
	"github.com/ericthayer/devlog/internal/blob"
	"github.com/ericthayer/devlog/internal/cache"
	"github.com/ericthayer/devlog/internal/logging"
	"github.com/ericthayer/devlog/internal/pipeline"
	"github.com/ericthayer/devlog/internal/server/config"
	devhttp "github.com/ericthayer/devlog/internal/server/http"
	"github.com/ericthayer/devlog/internal/server/users"
	"github.com/ericthayer/devlog/internal/store"
	"github.com/ericthayer/devlog/internal/store/repomanager"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	snapshot *cache.Snapshot
	handler  http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	uploader, err := blob.NewS3Store(ctx, blob.S3Config{
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3BaseEndpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	snapshot, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("cache init error: %w", err)
	}

	analyzer, err := ai.NewClient(ctx, ai.Config{
		APIKey:        cfg.GeminiAPIKey,
		DefaultModel:  cfg.DefaultModel,
		EnhancedModel: cfg.EnhancedModel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("inference client init error: %w", err)
	}

	registry := blob.NewRegistry()
	reconciler := store.NewReconciler(db, repos, uploader, registry, logger)
	orchestrator := pipeline.NewOrchestrator(analyzer, analyzer, reconciler, registry, logger)
	userService := users.NewService(db, repos, cfg)

	handlers := devhttp.NewHandlers(userService, orchestrator, reconciler, snapshot, registry, logger)
	router := devhttp.NewRouter(cfg, handlers)

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		snapshot: snapshot,
		handler:  router,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}

	if err := app.snapshot.Close(); err != nil {
		app.logger.Error(shutdownCtx, "cache close error", "error", err)
	}
	return app.db.Close()
}
