package routes

import (
	"showtime-scraper/internal/handlers"

	"github.com/gofiber/fiber/v2"
	fiberSwagger "github.com/swaggo/fiber-swagger"
)

func Setup(app *fiber.App, catalogHandler *handlers.CatalogHandler, sweepHandler *handlers.SweepHandler, snapshotHandler *handlers.SnapshotHandler) {
	// Swagger documentation
	app.Get("/swagger/*", fiberSwagger.WrapHandler)

	// API versioning
	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Read-only listing queries
	v1.Get("/showings", catalogHandler.GetShowings)
	v1.Get("/cinemas", catalogHandler.GetCinemas)
	v1.Get("/films", catalogHandler.GetFilms)

	// Background task triggers and sweep bookkeeping
	sweeps := v1.Group("/sweeps")
	{
		sweeps.Get("/last", sweepHandler.GetLastSweep)
		sweeps.Post("/:chain", sweepHandler.TriggerSweep)
	}
	v1.Post("/prune", sweepHandler.TriggerPrune)

	snapshots := v1.Group("/snapshots")
	{
		snapshots.Get("/presign", snapshotHandler.GetPresignedURL)
	}
}
