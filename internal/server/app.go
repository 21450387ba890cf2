// Package server wires the file store together: mapping repository, blob
// backend, deduplicating stores, the GC sweeper and the HTTP and gRPC
// servers, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/filestore/internal/dbx"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/backing"
	"github.com/dmitrijs2005/filestore/internal/server/config"
	"github.com/dmitrijs2005/filestore/internal/server/dedup"
	"github.com/dmitrijs2005/filestore/internal/server/httpapi"
	"github.com/dmitrijs2005/filestore/internal/server/rangeio"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filestore/internal/server/services"
	"github.com/dmitrijs2005/filestore/internal/server/sweeper"

	gs "github.com/dmitrijs2005/filestore/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	files   *services.FileService
	sweeper *sweeper.Sweeper
	closers []io.Closer
}

// seams for tests
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newBackingStore = backing.New
)

// NewLogger builds the logger selected by c.LogBackend.
func NewLogger(c *config.Config) (logging.Logger, error) {
	switch c.LogBackend {
	case "", "slog":
		return logging.NewJSONSlogLogger(os.Stdout, c.LogLevel), nil
	case "zap":
		return logging.NewProductionZapLogger(c.LogLevel)
	default:
		return nil, fmt.Errorf("unknown log backend %q", c.LogBackend)
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := NewLogger(c)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	var (
		rm     repomanager.RepositoryManager
		handle dbx.DBTX
	)
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database configured, file mappings are kept in memory")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		db, err := openDB(c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		app.closers = append(app.closers, db)

		if err := db.PingContext(ctx); err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("db ping error: %w", err)
		}

		pm := repomanager.NewPostgresRepositoryManager()
		if err := pm.RunMigrations(ctx, db); err != nil {
			app.close(ctx)
			return nil, err
		}
		rm, handle = pm, db
	}
	repo := rm.Mappings(handle)

	blobs, err := newBackingStore(ctx, c, logger)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("backing store init error: %w", err)
	}
	if cl, ok := blobs.(io.Closer); ok {
		app.closers = append(app.closers, cl)
	}

	files, err := services.NewFileService(
		repo,
		dedup.NewPermanentStore(repo, blobs, logger),
		dedup.NewEphemeralStore(repo, blobs, logger),
		rangeio.NewRegionFactory(c.MaxChunkBytes),
		c.SizeCacheEntries,
		logger,
	)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	app.files = files
	app.sweeper = sweeper.New(files, c.GCBatchSize, c.GCInterval, logger)

	logger.Info(ctx, "App initialized", "backend", c.Backend, "log_backend", c.LogBackend)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.files, app.sweeper, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives, ctx is cancelled or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.sweeper.Start(ctx)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.sweeper.Stop()
	app.close(context.Background())

	app.logger.Info(context.Background(), "App stopped")
}

// close releases resources in reverse order of acquisition.
func (app *App) close(ctx context.Context) {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "shutdown error", "error", err)
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}
