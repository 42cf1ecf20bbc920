package queue

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"showtime-scraper/internal/metrics"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueStopped  = errors.New("task queue has been stopped")
	ErrQueueFull     = errors.New("task queue is full")
	ErrAlreadyQueued = errors.New("task is already queued or running")
)

// Handler executes one task. Returning an error wrapped with Permanent stops
// further attempts.
type Handler func(ctx context.Context, task Task) error

// RetryConfig controls how failed tasks are retried.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// backoff returns the delay before retry number attempt (0 based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}
	delay := float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	return time.Duration(delay)
}

type PoolOptions struct {
	Workers  int
	Capacity int
	Retry    RetryConfig
	Metrics  *metrics.Metrics
	Logger   *logrus.Logger
}

// Pool runs tasks on a fixed number of workers. A task with the same kind and
// chain as one still queued or running is rejected.
type Pool struct {
	handler Handler
	opts    PoolOptions
	logger  *logrus.Logger
	tasks   chan Task

	mu      sync.Mutex
	active  map[string]struct{}
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(handler Handler, opts PoolOptions) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Capacity < 1 {
		opts.Capacity = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pool{
		handler: handler,
		opts:    opts,
		logger:  logger,
		tasks:   make(chan Task, opts.Capacity),
		active:  make(map[string]struct{}),
	}
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.WithField("workers", p.opts.Workers).Info("Task workers started")
}

// Stop cancels running tasks, waits for the workers and drops whatever is
// still queued.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	if dropped := len(p.tasks); dropped > 0 {
		p.logger.WithField("dropped", dropped).Warn("Task queue stopped with pending tasks")
	}
	p.logger.Info("Task workers stopped")
}

func (p *Pool) Enqueue(task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrQueueStopped
	}
	key := task.key()
	if _, ok := p.active[key]; ok {
		return ErrAlreadyQueued
	}

	select {
	case p.tasks <- task:
		p.active[key] = struct{}{}
		p.logger.WithField("task", task.String()).Debug("Task enqueued")
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports how many tasks wait for a worker.
func (p *Pool) Pending() int {
	return len(p.tasks)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			p.execute(ctx, id, task)
			p.mu.Lock()
			delete(p.active, task.key())
			p.mu.Unlock()
		}
	}
}

func (p *Pool) execute(ctx context.Context, workerID int, task Task) {
	log := p.logger.WithFields(logrus.Fields{
		"task":   task.String(),
		"worker": workerID,
	})

	for attempt := 0; ; attempt++ {
		err := p.runOnce(ctx, task)
		if err == nil {
			log.WithField("attempt", attempt+1).Info("Task completed")
			p.observe(task, "ok")
			return
		}
		if ctx.Err() != nil {
			log.WithError(err).Warn("Task interrupted by shutdown")
			p.observe(task, "cancelled")
			return
		}
		if IsPermanent(err) || attempt >= p.opts.Retry.MaxRetries {
			log.WithError(err).WithField("attempts", attempt+1).Error("Task failed")
			p.observe(task, "failed")
			return
		}

		delay := p.opts.Retry.backoff(attempt)
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"retryIn": delay.String(),
		}).Warn("Task failed, retrying")
		p.observe(task, "retried")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.observe(task, "cancelled")
			return
		case <-timer.C:
		}
	}
}

// runOnce shields the worker from a panicking handler.
func (p *Pool) runOnce(ctx context.Context, task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = Permanent(errors.New("task handler panicked"))
			p.logger.WithFields(logrus.Fields{
				"task":  task.String(),
				"panic": rec,
			}).Error("Task handler panicked")
		}
	}()
	return p.handler(ctx, task)
}

func (p *Pool) observe(task Task, outcome string) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.ObserveTask(string(task.Kind), outcome)
	}
}
