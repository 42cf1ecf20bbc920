package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler enqueues a sweep per chain and a prune on independent cadences.
type Scheduler struct {
	enqueue       func(Task) error
	chains        []string
	sweepInterval time.Duration
	pruneInterval time.Duration
	logger        *logrus.Logger
}

func NewScheduler(enqueue func(Task) error, chains []string, sweepInterval, pruneInterval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		enqueue:       enqueue,
		chains:        chains,
		sweepInterval: sweepInterval,
		pruneInterval: pruneInterval,
		logger:        logger,
	}
}

// Run blocks until ctx is done. A prune is enqueued immediately so stale rows
// left by downtime are cleared on start; sweeps wait for their first tick.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if s.pruneInterval > 0 {
		s.submit(PruneTask())
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.every(ctx, s.pruneInterval, PruneTask)
		}()
	}

	if s.sweepInterval > 0 {
		for _, chain := range s.chains {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.every(ctx, s.sweepInterval, func() Task { return SweepTask(chain) })
			}()
		}
	}

	s.logger.WithFields(logrus.Fields{
		"chains":        s.chains,
		"sweepInterval": s.sweepInterval.String(),
		"pruneInterval": s.pruneInterval.String(),
	}).Info("Scheduler started")

	wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, next func() Task) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.submit(next())
		}
	}
}

func (s *Scheduler) submit(task Task) {
	err := s.enqueue(task)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyQueued):
		s.logger.WithField("task", task.String()).Info("Previous run still pending, skipping tick")
	default:
		s.logger.WithError(err).WithField("task", task.String()).Warn("Failed to schedule task")
	}
}
