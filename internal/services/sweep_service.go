package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"showtime-scraper/internal/config"
	"showtime-scraper/internal/lock"
	"showtime-scraper/internal/metrics"
	"showtime-scraper/internal/models"
	"showtime-scraper/internal/repository"
	"showtime-scraper/internal/scraper"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	ErrUnknownChain    = errors.New("unknown chain")
	ErrSweepInProgress = errors.New("sweep already in progress")
)

// maxRunErrors caps how many pair errors are kept in ScrapeRun.ErrorMessage.
const maxRunErrors = 10

type SweepService interface {
	RunSweep(ctx context.Context, chain string) (*models.ScrapeRun, error)
	RunAll(ctx context.Context) ([]*models.ScrapeRun, error)
	Prune(ctx context.Context) (int64, error)
	GetLastRun(ctx context.Context, chain string) (*models.ScrapeRun, error)
	Chains() []string
}

// SweepOptions tunes a sweep. Zero values fall back to defaults.
type SweepOptions struct {
	LookaheadDays  int
	Concurrency    int
	RequestsPerMin int
	Deadline       time.Duration
	Location       *time.Location
	// Now is overridden in tests.
	Now func() time.Time
}

func SweepOptionsFromConfig(cfg *config.Config) SweepOptions {
	return SweepOptions{
		LookaheadDays:  cfg.Scraper.LookaheadDays,
		Concurrency:    cfg.Scraper.Concurrency,
		RequestsPerMin: cfg.Scraper.RequestsPerMin,
		Deadline:       cfg.Scraper.SweepDeadline,
		Location:       cfg.Location(),
	}
}

type sweepService struct {
	adapters   scraper.Registry
	matrix     config.Matrix
	reconciler ReconcilerService
	runRepo    repository.ScrapeRunRepository
	locker     lock.Locker
	metrics    *metrics.Metrics
	opts       SweepOptions
	limiters   map[string]*rate.Limiter
	logger     *logrus.Logger
}

// NewSweepService wires the sweep pipeline. locker may be nil, in which case
// sweeps are not coordinated across processes. m may be nil to skip metrics.
func NewSweepService(adapters scraper.Registry, matrix config.Matrix, reconciler ReconcilerService, runRepo repository.ScrapeRunRepository, locker lock.Locker, m *metrics.Metrics, opts SweepOptions, logger *logrus.Logger) SweepService {
	if opts.LookaheadDays < 1 {
		opts.LookaheadDays = 4
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	limiters := make(map[string]*rate.Limiter, len(adapters))
	for chain := range adapters {
		limit := rate.Inf
		if opts.RequestsPerMin > 0 {
			limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMin))
		}
		limiters[chain] = rate.NewLimiter(limit, 1)
	}

	return &sweepService{
		adapters:   adapters,
		matrix:     matrix,
		reconciler: reconciler,
		runRepo:    runRepo,
		locker:     locker,
		metrics:    m,
		opts:       opts,
		limiters:   limiters,
		logger:     logger,
	}
}

func (s *sweepService) Chains() []string {
	chains := make([]string, 0, len(s.matrix))
	for _, chain := range s.matrix.Chains() {
		if _, ok := s.adapters[chain]; ok {
			chains = append(chains, chain)
		}
	}
	return chains
}

// sweepTally accumulates pair outcomes from concurrent workers.
type sweepTally struct {
	mu       sync.Mutex
	failed   int
	skipped  int
	records  int
	added    int
	existing int
	errs     []string
}

func (t *sweepTally) fail(loc scraper.Location, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
	if len(t.errs) < maxRunErrors {
		t.errs = append(t.errs, fmt.Sprintf("%s %s: %v", loc.City, loc.Date, err))
	}
}

func (t *sweepTally) skip() {
	t.mu.Lock()
	t.skipped++
	t.mu.Unlock()
}

func (t *sweepTally) add(records, added, existing int) {
	t.mu.Lock()
	t.records += records
	t.added += added
	t.existing += existing
	t.mu.Unlock()
}

// RunSweep scrapes every (target, day) pair of chain and reconciles the
// results. Individual pair failures do not fail the sweep; they leave the
// run PartiallyFailed.
func (s *sweepService) RunSweep(ctx context.Context, chain string) (*models.ScrapeRun, error) {
	adapter, ok := s.adapters[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chain)
	}
	targets := s.matrix[chain]
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s has no configured cities", ErrUnknownChain, chain)
	}

	if s.locker != nil {
		release, acquired, err := s.locker.TryAcquire(ctx, "sweep:"+chain)
		switch {
		case err != nil:
			s.logger.WithError(err).WithField("chain", chain).Warn("Sweep lock unavailable, continuing without it")
		case !acquired:
			return nil, fmt.Errorf("%w: %s", ErrSweepInProgress, chain)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.logger.WithError(err).WithField("chain", chain).Warn("Failed to release sweep lock")
				}
			}()
		}
	}

	started := s.opts.Now()
	today := started.In(s.opts.Location)
	pairs := make([]scraper.Location, 0, len(targets)*s.opts.LookaheadDays)
	for day := 0; day < s.opts.LookaheadDays; day++ {
		date := today.AddDate(0, 0, day).Format(models.DateLayout)
		for _, target := range targets {
			pairs = append(pairs, scraper.Location{
				City:      target.City,
				Date:      date,
				DayOffset: day,
				SiteIndex: target.SiteIndex,
			})
		}
	}

	run := &models.ScrapeRun{
		RunID:      uuid.New().String(),
		Chain:      chain,
		ScrapeDate: today.Format(models.DateLayout),
		Status:     models.RunStatusRunning,
		PairsTotal: len(pairs),
		StartedAt:  started.UTC(),
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record sweep start: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"chain":  chain,
		"run_id": run.RunID,
		"pairs":  len(pairs),
	})
	log.Info("Sweep started")

	var deadline time.Time
	if s.opts.Deadline > 0 {
		deadline = started.Add(s.opts.Deadline)
	}

	tally := &sweepTally{}
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, loc := range pairs {
		g.Go(func() error {
			if ctx.Err() != nil || (!deadline.IsZero() && s.opts.Now().After(deadline)) {
				tally.skip()
				s.metrics.ObservePair(chain, metrics.PairSkipped, 0)
				return nil
			}
			s.runPair(ctx, adapter, loc, tally, log)
			return nil
		})
	}
	_ = g.Wait()

	finished := s.opts.Now().UTC()
	run.FinishedAt = &finished
	run.PairsFailed = tally.failed
	run.PairsSkipped = tally.skipped
	run.RecordsScraped = tally.records
	run.ShowingsAdded = tally.added
	run.ShowingsSkipped = tally.existing
	run.Status = models.RunStatusSucceeded
	if tally.failed > 0 || tally.skipped > 0 {
		run.Status = models.RunStatusPartiallyFailed
	}
	if tally.skipped > 0 {
		tally.errs = append(tally.errs, fmt.Sprintf("%d pairs not started before the sweep was stopped", tally.skipped))
	}
	run.ErrorMessage = strings.Join(tally.errs, "; ")

	if err := s.runRepo.Update(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).Error("Failed to record sweep result")
	}
	s.metrics.ObserveSweep(chain, run.Status, finished.Sub(started))

	log.WithFields(logrus.Fields{
		"status":          run.Status,
		"pairs_failed":    run.PairsFailed,
		"pairs_skipped":   run.PairsSkipped,
		"records":         run.RecordsScraped,
		"showings_added":  run.ShowingsAdded,
		"showings_exists": run.ShowingsSkipped,
	}).Info("Sweep finished")
	return run, nil
}

func (s *sweepService) runPair(ctx context.Context, adapter scraper.Adapter, loc scraper.Location, tally *sweepTally, log *logrus.Entry) {
	chain := adapter.Chain()
	log = log.WithFields(logrus.Fields{"city": loc.City, "date": loc.Date, "site_index": loc.SiteIndex})
	begin := time.Now()

	if limiter := s.limiters[chain]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			tally.skip()
			s.metrics.ObservePair(chain, metrics.PairSkipped, 0)
			return
		}
	}

	records, err := adapter.Fetch(ctx, loc)
	if err != nil {
		log.WithError(err).Error("Failed to fetch listing")
		tally.fail(loc, err)
		s.metrics.ObservePair(chain, metrics.PairFailed, time.Since(begin))
		return
	}

	src := scraper.SourceContext{
		Chain:      chain,
		City:       loc.City,
		SiteIndex:  loc.SiteIndex,
		CinemaName: scraper.CinemaName(chain, loc),
		SourceURL:  adapter.URL(loc),
		Date:       loc.Date,
	}

	var added, existing int
	var upsertErr error
	for _, record := range records {
		for _, candidate := range scraper.Normalize(record, src) {
			_, created, err := s.reconciler.Upsert(ctx, candidate)
			if err != nil {
				log.WithError(err).WithField("title", candidate.Title).Error("Failed to upsert showing")
				upsertErr = err
				continue
			}
			s.metrics.ObserveUpsert(chain, created)
			if created {
				added++
			} else {
				existing++
			}
		}
	}
	tally.add(len(records), added, existing)

	if upsertErr != nil {
		tally.fail(loc, upsertErr)
		s.metrics.ObservePair(chain, metrics.PairFailed, time.Since(begin))
		return
	}
	s.metrics.ObservePair(chain, metrics.PairOK, time.Since(begin))
	log.WithFields(logrus.Fields{
		"records": len(records),
		"added":   added,
	}).Debug("Pair reconciled")
}

// RunAll sweeps every configured chain one after another.
func (s *sweepService) RunAll(ctx context.Context) ([]*models.ScrapeRun, error) {
	var runs []*models.ScrapeRun
	var errs []error
	for _, chain := range s.Chains() {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		run, err := s.RunSweep(ctx, chain)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", chain, err))
			continue
		}
		runs = append(runs, run)
	}
	return runs, errors.Join(errs...)
}

func (s *sweepService) Prune(ctx context.Context) (int64, error) {
	today := s.opts.Now().In(s.opts.Location)
	deleted, err := s.reconciler.PruneStale(ctx, today)
	if err != nil {
		return 0, err
	}
	s.metrics.AddPruned(deleted)
	return deleted, nil
}

func (s *sweepService) GetLastRun(ctx context.Context, chain string) (*models.ScrapeRun, error) {
	return s.runRepo.GetLast(ctx, chain)
}
