package main

import (
	"context"
	"errors"
	"testing"

	"showtime-scraper/internal/models"
	"showtime-scraper/internal/queue"
	"showtime-scraper/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeps struct {
	sweepErr error
	pruned   int
	swept    []string
}

func (f *fakeSweeps) RunSweep(_ context.Context, chain string) (*models.ScrapeRun, error) {
	f.swept = append(f.swept, chain)
	if f.sweepErr != nil {
		return nil, f.sweepErr
	}
	return &models.ScrapeRun{Chain: chain}, nil
}

func (f *fakeSweeps) RunAll(context.Context) ([]*models.ScrapeRun, error) { return nil, nil }

func (f *fakeSweeps) Prune(context.Context) (int64, error) {
	f.pruned++
	return 3, nil
}

func (f *fakeSweeps) GetLastRun(context.Context, string) (*models.ScrapeRun, error) {
	return nil, nil
}

func (f *fakeSweeps) Chains() []string { return []string{"multikino"} }

func TestTaskHandlerDispatch(t *testing.T) {
	sweeps := &fakeSweeps{}
	handle := newTaskHandler(sweeps)

	require.NoError(t, handle(context.Background(), queue.SweepTask("multikino")))
	require.NoError(t, handle(context.Background(), queue.PruneTask()))

	assert.Equal(t, []string{"multikino"}, sweeps.swept)
	assert.Equal(t, 1, sweeps.pruned)
}

func TestTaskHandlerPermanentFailures(t *testing.T) {
	for _, sentinel := range []error{services.ErrUnknownChain, services.ErrSweepInProgress} {
		handle := newTaskHandler(&fakeSweeps{sweepErr: sentinel})

		err := handle(context.Background(), queue.SweepTask("cinema-city"))
		assert.True(t, queue.IsPermanent(err), "%v should not be retried", sentinel)
		assert.ErrorIs(t, err, sentinel)
	}

	handle := newTaskHandler(&fakeSweeps{})
	err := handle(context.Background(), queue.Task{Kind: "reindex"})
	assert.True(t, queue.IsPermanent(err))
}

func TestTaskHandlerTransientFailure(t *testing.T) {
	boom := errors.New("database is locked")
	handle := newTaskHandler(&fakeSweeps{sweepErr: boom})

	err := handle(context.Background(), queue.SweepTask("helios"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, queue.IsPermanent(err))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "scrape", "prune", "load-cinemas"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestScrapeRequiresExactlyOneTarget(t *testing.T) {
	for _, args := range [][]string{
		{"scrape"},
		{"scrape", "--all", "--chain", "helios"},
	} {
		root := newRootCmd()
		root.SetArgs(args)
		root.SilenceErrors = true
		err := root.Execute()
		assert.ErrorContains(t, err, "exactly one of --all or --chain")
	}
}
