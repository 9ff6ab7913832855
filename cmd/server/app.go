package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sourcegraph/conc"

	"github.com/phrazzld/docflow/internal/archive"
	"github.com/phrazzld/docflow/internal/blob"
	"github.com/phrazzld/docflow/internal/config"
	"github.com/phrazzld/docflow/internal/platform/gcs"
	"github.com/phrazzld/docflow/internal/platform/localfs"
	"github.com/phrazzld/docflow/internal/platform/memory"
	"github.com/phrazzld/docflow/internal/platform/postgres"
	"github.com/phrazzld/docflow/internal/platform/redis"
	"github.com/phrazzld/docflow/internal/processing"
	"github.com/phrazzld/docflow/internal/redact"
	"github.com/phrazzld/docflow/internal/service"
	"github.com/phrazzld/docflow/internal/store"
	"github.com/phrazzld/docflow/internal/task"
	"github.com/phrazzld/docflow/internal/tracing"
)

// application holds the wired dependencies of a running server.
type application struct {
	config *config.Config
	logger *slog.Logger

	docs     store.DocumentStore
	blobs    blob.Store
	registry task.Registry
	janitor  *task.Janitor
	runner   *task.Runner

	dispatcher *task.Dispatcher
	documents  *service.DocumentService
	search     *service.SearchService
	archives   *archive.Builder

	// closers run in reverse order on shutdown.
	closers []func(context.Context) error
}

// newApplication builds every component from cfg. Components that need a
// remote connection are verified before returning.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	app.addCloser(shutdownTracing)

	if err := app.setupDocumentStore(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	if err := app.setupBlobStore(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	if err := app.setupRegistry(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}

	client, err := processing.New(processing.Config{
		BaseURL: cfg.Processing.BaseURL,
		Timeout: cfg.Processing.Timeout,
	}, logger)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to create processing client: %w", err)
	}

	app.wire(client)
	return app, nil
}

// wire builds the task pipeline and services on top of the stores.
func (app *application) wire(client *processing.Client) {
	cfg := app.config
	retry := task.RetryPolicy{
		MaxRetries: cfg.Processing.MaxRetries,
		BaseDelay:  cfg.Processing.RetryBaseDelay,
	}

	app.runner = task.NewRunner(task.RunnerConfig{
		WorkerCount: cfg.Task.Workers,
		QueueSize:   cfg.Task.QueueSize,
	}, app.logger)
	app.runner.SetErrorHandler(func(t task.Task, err error) {
		app.logger.Error("task finished with error",
			"task_id", t.ID(),
			"operation", t.Type(),
			"error", redact.Error(err))
	})

	processor := task.NewBatchProcessor(app.registry, app.docs, app.logger)
	app.dispatcher = task.NewDispatcher(app.registry, app.runner, processor, app.logger,
		task.NewNormalizeOperation(app.blobs, app.docs, client, retry, app.logger),
		task.NewEmbedOperation(app.docs, client, retry),
	)

	app.documents = service.NewDocumentService(app.docs, app.blobs, app.logger)
	app.search = service.NewSearchService(client, app.logger)
	app.archives = archive.NewBuilder(app.docs, app.blobs, app.logger)
}

func (app *application) setupDocumentStore(ctx context.Context) error {
	dbCfg := app.config.Database
	if dbCfg.URL == "" {
		app.logger.Warn("database.url not set; documents are kept in memory")
		app.docs = memory.NewDocumentStore()
		return nil
	}

	db, err := postgres.Open(ctx, dbCfg.URL, postgres.PoolConfig{
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", redact.URL(dbCfg.URL), err)
	}
	app.addCloser(func(context.Context) error { return db.Close() })

	app.logger.Info("database connection established", "database", redact.URL(dbCfg.URL))
	app.docs = postgres.NewDocumentStore(db, app.logger)
	return checkSchema(ctx, db)
}

// checkSchema fails fast when migrations have not been applied.
func checkSchema(ctx context.Context, db *sql.DB) error {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT to_regclass('public.documents') IS NOT NULL`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if !exists {
		return errors.New("documents table missing: run `docflow-server migrate up` first")
	}
	return nil
}

func (app *application) setupBlobStore(ctx context.Context) error {
	storageCfg := app.config.Storage
	switch storageCfg.Backend {
	case "gcs":
		s, err := gcs.NewBlobStore(ctx, gcs.Config{
			Bucket:          storageCfg.GCSBucket,
			CredentialsFile: storageCfg.GCSCredentialsFile,
		})
		if err != nil {
			return err
		}
		app.addCloser(func(context.Context) error { return s.Close() })
		app.blobs = s
	default:
		s, err := localfs.NewBlobStore(storageCfg.LocalRoot)
		if err != nil {
			return err
		}
		app.blobs = s
	}

	app.logger.Info("blob storage ready", "backend", storageCfg.Backend)
	return nil
}

func (app *application) setupRegistry(ctx context.Context) error {
	taskCfg := app.config.Task
	if taskCfg.Registry != "redis" {
		reg := task.NewMemoryRegistry(app.logger)
		app.registry = reg
		app.janitor = task.NewJanitor(reg, taskCfg.Retention, taskCfg.SweepInterval, app.logger)
		return nil
	}

	redisCfg := app.config.Redis
	client := goredis.NewClient(&goredis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	app.addCloser(func(context.Context) error { return client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", redisCfg.Addr, err)
	}

	app.registry = redis.NewRegistry(client, redisCfg.KeyPrefix, taskCfg.Retention, app.logger)
	app.logger.Info("task registry ready", "backend", "redis", "addr", redisCfg.Addr)
	return nil
}

func (app *application) addCloser(fn func(context.Context) error) {
	app.closers = append(app.closers, fn)
}

func (app *application) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			app.logger.Warn("error during cleanup", "error", redact.Error(err))
		}
	}
	app.closers = nil
}

// run serves HTTP until ctx is cancelled, then drains the server and the
// workers within the configured shutdown timeout.
func (app *application) run(ctx context.Context) error {
	cfg := app.config.Server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	app.runner.Start()

	bgCtx, stopBackground := context.WithCancel(ctx)
	var background conc.WaitGroup
	if app.janitor != nil {
		background.Go(func() { app.janitor.Run(bgCtx) })
	}

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown failed: %w", err))
	}
	if err := app.runner.Stop(shutdownCtx); err != nil {
		app.logger.Error("task runner shutdown incomplete", "error", err)
		runErr = errors.Join(runErr, err)
	}

	stopBackground()
	background.Wait()
	app.close(shutdownCtx)

	app.logger.Info("server shutdown completed")
	return runErr
}
