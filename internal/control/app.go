package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/harvester/internal/core/config"
	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvesting/comments"
	"github.com/vietddude/harvester/internal/harvesting/dispatch"
	"github.com/vietddude/harvester/internal/harvesting/health"
	"github.com/vietddude/harvester/internal/harvesting/playlist"
	"github.com/vietddude/harvester/internal/harvesting/replies"
	redisclient "github.com/vietddude/harvester/internal/infra/redis"
	"github.com/vietddude/harvester/internal/infra/rpc"
	"github.com/vietddude/harvester/internal/infra/source"
	"github.com/vietddude/harvester/internal/infra/source/youtube"
	"github.com/vietddude/harvester/internal/infra/storage"
	"github.com/vietddude/harvester/internal/infra/storage/file"
	"github.com/vietddude/harvester/internal/infra/storage/memory"
	"github.com/vietddude/harvester/internal/infra/storage/postgres"
	"github.com/vietddude/harvester/internal/infra/storage/sqlite"
)

// ErrListingUnsupported is returned when the configured sink cannot list batches.
var ErrListingUnsupported = errors.New("output driver does not support listing batches")

// ErrLookupUnsupported is returned when the configured sink cannot search threads.
var ErrLookupUnsupported = errors.New("output driver does not support thread lookup")

// Options adjust how an App is assembled.
type Options struct {
	// DryRun stores batches in memory instead of the configured sink.
	DryRun bool
	// Source overrides the YouTube client.
	Source source.Source
	// Sleep overrides every delay (throttle, retry interval, restart delay).
	Sleep rpc.SleepFunc
}

// App is the main application struct wiring source, harvester, sink and ledger.
type App struct {
	cfg          *config.AppConfig
	caller       *rpc.Caller
	expander     *playlist.Expander
	dispatcher   *dispatch.Dispatcher
	sink         storage.Sink
	ledger       storage.FailedRootRepository
	healthMon    *health.Monitor
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
}

// New creates a new App with all dependencies initialized.
func New(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	a := &App{cfg: cfg}

	// 1. Remote source
	src := opts.Source
	if src == nil {
		client, err := youtube.NewClient(ctx, youtube.Config{
			APIKey:     cfg.API.Key,
			TextFormat: cfg.API.TextFormat,
			Timeout:    cfg.API.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init youtube client: %w", err)
		}
		src = client
	}

	// 2. Storage
	if err := a.initStorage(ctx, opts.DryRun); err != nil {
		a.Close()
		return nil, err
	}

	// 3. Fetch engine
	a.caller = rpc.NewCaller(rpc.RetryConfig{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		Interval:          cfg.Retry.Interval,
		Throttle:          cfg.Retry.Throttle,
		RequestsPerSecond: cfg.Retry.RequestsPerSecond,
	})
	if opts.Sleep != nil {
		a.caller.SetSleep(opts.Sleep)
	}

	resolver := replies.NewResolver(src, a.caller, replies.Config{
		PageSize:        cfg.API.ReplyPageSize,
		MaxPages:        cfg.Harvest.MaxPages,
		RefetchAttempts: cfg.Harvest.ReplyRefetchAttempts,
	})
	harvester := comments.NewHarvester(src, a.caller, resolver, comments.Config{
		PageSize:               cfg.API.PageSize,
		MaxPages:               cfg.Harvest.MaxPages,
		ProcessingFailureDelay: cfg.Harvest.ProcessingFailureDelay,
		MaxRestarts:            cfg.Harvest.MaxRestarts,
	})
	if opts.Sleep != nil {
		harvester.SetSleep(opts.Sleep)
	}

	a.expander = playlist.NewExpander(src, a.caller, cfg.API.PlaylistPageSize, cfg.Harvest.MaxPages)
	a.dispatcher = dispatch.NewDispatcher(harvester, a.sink, a.ledger, cfg.Batch.Size)

	// 4. Health
	a.healthMon = health.NewMonitor(a.ledger)
	if a.db != nil {
		a.healthMon.AddCheck("database", a.db.Health)
	}
	if a.redisClient != nil {
		a.healthMon.AddCheck("redis", a.redisClient.Health)
	}
	if cfg.Server.Port > 0 {
		a.healthServer = health.NewServer(a.healthMon, cfg.Server.Port)
	}

	return a, nil
}

func (a *App) initStorage(ctx context.Context, dryRun bool) error {
	driver := a.cfg.Output.Driver
	if dryRun {
		driver = config.DriverMemory
	}

	var store *memory.MemoryStorage
	switch driver {
	case config.DriverFile:
		sink, err := file.NewSink(a.cfg.Output.Dir)
		if err != nil {
			return err
		}
		a.sink = sink
		slog.Info("Using file storage", "dir", a.cfg.Output.Dir)

	case config.DriverSQLite:
		sink, err := sqlite.Open(ctx, a.cfg.Output.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to init sqlite: %w", err)
		}
		a.sink = sink
		a.ledger = sqlite.NewFailedRootRepo(sink)
		slog.Info("Using SQLite storage", "path", a.cfg.Output.SQLitePath)

	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		a.sink = postgres.NewBatchRepo(db)
		a.ledger = postgres.NewFailedRootRepo(db)
		slog.Info("Using PostgreSQL storage")

	case config.DriverMemory:
		store = memory.NewMemoryStorage()
		a.sink = memory.NewBatchRepo(store)
		slog.Info("Using Memory storage")

	default:
		return fmt.Errorf("unknown output driver %q", driver)
	}

	// Redis takes over the ledger when configured.
	if a.cfg.Redis.URL != "" && !dryRun {
		client, err := redisclient.NewClient(ctx, a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = client
		a.ledger = redisclient.NewFailedRootRepo(client, "")
		slog.Info("Using Redis failure ledger")
	}

	if a.ledger == nil {
		if store == nil {
			store = memory.NewMemoryStorage()
		}
		a.ledger = memory.NewFailedRootRepo(store)
	}
	return nil
}

// Run harvests rootIDs. When a health port is configured the HTTP server
// runs beside the dispatch and is stopped once the dispatch finishes.
func (a *App) Run(ctx context.Context, rootIDs []string) (dispatch.Summary, error) {
	var sum dispatch.Summary

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	if a.healthServer == nil {
		sum = a.dispatcher.DispatchAll(ctx, rootIDs)
		return sum, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.healthServer.Start()
	})
	g.Go(func() error {
		sum = a.dispatcher.DispatchAll(gctx, rootIDs)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return a.healthServer.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, ctx.Err()
}

// ExpandPlaylists returns the video ids of the given playlists.
func (a *App) ExpandPlaylists(ctx context.Context, playlistIDs []string) ([]string, error) {
	return a.expander.ExpandAll(ctx, playlistIDs)
}

// FailedRoots lists the failure ledger.
func (a *App) FailedRoots(ctx context.Context) ([]*domain.FailedRoot, error) {
	return a.ledger.List(ctx)
}

// RetryFailed re-runs every root currently in the failure ledger.
func (a *App) RetryFailed(ctx context.Context) (dispatch.Summary, error) {
	failed, err := a.ledger.List(ctx)
	if err != nil {
		return dispatch.Summary{}, err
	}
	ids := make([]string, len(failed))
	for i, f := range failed {
		ids[i] = f.RootID
	}
	return a.Run(ctx, ids)
}

// Batches lists the stored batches of a root.
func (a *App) Batches(ctx context.Context, rootID string) ([]domain.BatchInfo, error) {
	lister, ok := a.sink.(storage.BatchLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	return lister.ListBatches(ctx, rootID)
}

// FindThread returns the index of the batch holding a thread, or -1.
func (a *App) FindThread(ctx context.Context, rootID, threadID string) (int, error) {
	locator, ok := a.sink.(storage.ThreadLocator)
	if !ok {
		return -1, ErrLookupUnsupported
	}
	return locator.FindThread(ctx, rootID, threadID)
}

// Sink returns the configured batch sink.
func (a *App) Sink() storage.Sink {
	return a.sink
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
	} else if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.redisClient != nil {
		errs = append(errs, a.redisClient.Close())
	}
	return errors.Join(errs...)
}
