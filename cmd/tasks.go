package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"showtime-scraper/internal/config"
	"showtime-scraper/internal/queue"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	var (
		all     bool
		chain   string
		enqueue bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Sweep one chain or all chains now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all == (chain != "") {
				return errors.New("exactly one of --all or --chain is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if enqueue {
				return publishSweeps(ctx, all, chain)
			}

			a, err := newApplication(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if all {
				runs, err := a.sweeps.RunAll(ctx)
				for _, run := range runs {
					a.log.WithFields(logrus.Fields{
						"chain":          run.Chain,
						"status":         run.Status,
						"showings_added": run.ShowingsAdded,
					}).Info("Sweep summary")
				}
				return err
			}
			run, err := a.sweeps.RunSweep(ctx, chain)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"chain":          run.Chain,
				"status":         run.Status,
				"showings_added": run.ShowingsAdded,
			}).Info("Sweep summary")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "sweep every configured chain")
	cmd.Flags().StringVarP(&chain, "chain", "c", "", "sweep a single chain")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "publish the sweep to the task queue instead of running it here")
	return cmd
}

// publishSweeps hands sweeps to a serving process through RabbitMQ.
func publishSweeps(ctx context.Context, all bool, chain string) error {
	cfg := config.Load()
	log := setupLogger()
	if cfg.Queue.AMQPURL == "" {
		return errors.New("--enqueue requires RABBITMQ_URL")
	}

	chains := []string{chain}
	if all {
		matrix, err := config.LoadMatrix(cfg.Scraper.MatrixFile)
		if err != nil {
			return err
		}
		chains = matrix.Chains()
	}

	publisher := queue.NewPublisher(cfg.Queue, log)
	for _, c := range chains {
		if err := publisher.Publish(ctx, queue.SweepTask(c)); err != nil {
			return err
		}
	}
	return nil
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete showings dated before today",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			a, err := newApplication(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.reconciler.PruneStale(ctx, time.Now().In(a.cfg.Location()))
			return err
		},
	}
}

func newLoadCinemasCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "load-cinemas",
		Short: "Import cinema names and addresses from a seed file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			a, err := newApplication(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if file == "" {
				file = a.cfg.Scraper.CinemaSeedFile
			}
			seeds, err := config.LoadCinemaSeeds(file)
			if err != nil {
				return err
			}
			_, err = a.catalog.ImportCinemas(ctx, seeds)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (defaults to SCRAPER_CINEMA_FILE)")
	return cmd
}
