package main

import (
	"context"
	"errors"
	"fmt"

	"showtime-scraper/internal/browser"
	"showtime-scraper/internal/config"
	"showtime-scraper/internal/database"
	"showtime-scraper/internal/lock"
	"showtime-scraper/internal/metrics"
	"showtime-scraper/internal/queue"
	"showtime-scraper/internal/repository"
	"showtime-scraper/internal/scraper"
	"showtime-scraper/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// application holds the wired dependencies shared by the subcommands.
type application struct {
	cfg        *config.Config
	log        *logrus.Logger
	db         *database.Database
	metrics    *metrics.Metrics
	reconciler services.ReconcilerService
	catalog    services.CatalogService
	sweeps     services.SweepService
	snapshots  *services.SnapshotService
	redis      *redis.Client
}

// newApplication connects the store and, when withSweeps is set, the
// scraping pipeline with its optional snapshot archive and sweep lock.
func newApplication(ctx context.Context, withSweeps bool) (*application, error) {
	cfg := config.Load()
	log := setupLogger()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	cinemaRepo := repository.NewCinemaRepository(db)
	filmRepo := repository.NewFilmRepository(db)
	showingRepo := repository.NewShowingRepository(db)
	runRepo := repository.NewScrapeRunRepository(db)

	a := &application{
		cfg:        cfg,
		log:        log,
		db:         db,
		metrics:    metrics.New(),
		reconciler: services.NewReconcilerService(cinemaRepo, filmRepo, showingRepo, log),
		catalog:    services.NewCatalogService(cinemaRepo, filmRepo, showingRepo, log),
	}

	if cfg.MinIO.Endpoint != "" {
		a.snapshots, err = services.NewSnapshotService(&cfg.MinIO, log)
		if err != nil {
			log.WithError(err).Warn("Snapshot store unavailable, archiving disabled")
		}
	}

	if !withSweeps {
		return a, nil
	}

	matrix, err := config.LoadMatrix(cfg.Scraper.MatrixFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := scraper.Options{WaitTimeout: cfg.Scraper.WaitTimeout, Logger: log}
	if cfg.Scraper.ArchiveSnapshot && a.snapshots != nil {
		opts.Snapshots = a.snapshots
	}
	renderer := browser.NewChromeRenderer(cfg.Browser, log)
	adapters, err := scraper.NewRegistry(cfg.Scraper, renderer, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		a.redis, err = lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, sweeps are not coordinated across processes")
		} else {
			locker = lock.NewRedisLocker(a.redis, cfg.Redis.LockTTL, log)
		}
	}

	for _, chain := range matrix.Chains() {
		if _, err := adapters.Get(chain); err != nil {
			log.WithField("chain", chain).Warn("Matrix lists a chain without an adapter, ignoring it")
		}
	}

	sweepOpts := services.SweepOptionsFromConfig(cfg)
	a.sweeps = services.NewSweepService(adapters, matrix, a.reconciler, runRepo, locker, a.metrics, sweepOpts, log)
	return a, nil
}

// taskHandler executes queued tasks. Unknown chains and sweeps already held
// elsewhere are not worth retrying.
func (a *application) taskHandler() queue.Handler {
	return newTaskHandler(a.sweeps)
}

func newTaskHandler(sweeps services.SweepService) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		switch task.Kind {
		case queue.KindSweep:
			_, err := sweeps.RunSweep(ctx, task.Chain)
			if errors.Is(err, services.ErrUnknownChain) || errors.Is(err, services.ErrSweepInProgress) {
				return queue.Permanent(err)
			}
			return err
		case queue.KindPrune:
			_, err := sweeps.Prune(ctx)
			return err
		default:
			return queue.Permanent(fmt.Errorf("unsupported task kind %q", task.Kind))
		}
	}
}

func (a *application) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Error closing redis client")
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Errorf("Error closing database connection: %v", err)
	}
}
