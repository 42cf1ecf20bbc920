package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"showtime-scraper/internal/database"
	"showtime-scraper/internal/handlers"
	"showtime-scraper/internal/queue"
	"showtime-scraper/internal/routes"
	"showtime-scraper/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, the scheduler and the task workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApplication(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log
	cfg := a.cfg

	pool := queue.NewPool(a.taskHandler(), queue.PoolOptions{
		Workers: cfg.Scheduler.Workers,
		Retry: queue.RetryConfig{
			MaxRetries:   cfg.Scheduler.MaxRetries,
			InitialDelay: cfg.Scheduler.RetryDelay,
			MaxDelay:     cfg.Scheduler.MaxRetryDelay,
			Multiplier:   2,
		},
		Metrics: a.metrics,
		Logger:  log,
	})
	pool.Start(ctx)
	defer pool.Stop()

	if cfg.Scheduler.Enabled {
		scheduler := queue.NewScheduler(pool.Enqueue, a.sweeps.Chains(),
			cfg.Scheduler.SweepInterval, cfg.Scheduler.PruneInterval, log)
		go scheduler.Run(ctx)
	}

	if cfg.Queue.AMQPURL != "" {
		consumer := queue.NewConsumer(cfg.Queue, pool.Enqueue, log)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.WithError(err).Error("Task consumer stopped")
			}
		}()
	}

	var presigner handlers.SnapshotPresigner
	if a.snapshots != nil {
		presigner = a.snapshots
	}

	app := fiber.New(fiber.Config{
		AppName:               "Showtime Scraper",
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(log),
	})

	setupMiddleware(app)

	app.Get("/health", healthCheckHandler(a.db, pool))
	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	routes.Setup(app,
		handlers.NewCatalogHandler(a.catalog, log),
		handlers.NewSweepHandler(a.sweeps, pool, log),
		handlers.NewSnapshotHandler(presigner, log),
	)

	go gracefulShutdown(ctx, app, log)

	log.Infof("Showtime scraper API starting on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		return err
	}
	return nil
}

func setupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Request-ID",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: false,
		MaxAge:           86400,
	}))
}

func healthCheckHandler(db *database.Database, pool *queue.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbStatus := "healthy"
		if err := db.HealthCheck(); err != nil {
			dbStatus = "unhealthy"
		}

		return c.JSON(fiber.Map{
			"status":        "ok",
			"service":       "showtime-scraper",
			"database":      dbStatus,
			"pending_tasks": pool.Pending(),
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func customErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": code,
		}).Error("Request error")

		return utils.ErrorResponse(c, code, err.Error())
	}
}

func gracefulShutdown(ctx context.Context, app *fiber.App, log *logrus.Logger) {
	<-ctx.Done()

	log.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Errorf("Error during shutdown: %v", err)
	}

	log.Info("Server shutdown complete")
}
