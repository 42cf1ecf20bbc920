package handlers

import (
	"errors"
	"slices"

	"showtime-scraper/internal/queue"
	"showtime-scraper/internal/services"
	"showtime-scraper/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// TaskQueue accepts background tasks.
type TaskQueue interface {
	Enqueue(task queue.Task) error
}

type SweepHandler struct {
	sweeps services.SweepService
	tasks  TaskQueue
	logger *logrus.Logger
}

func NewSweepHandler(sweeps services.SweepService, tasks TaskQueue, logger *logrus.Logger) *SweepHandler {
	return &SweepHandler{
		sweeps: sweeps,
		tasks:  tasks,
		logger: logger,
	}
}

// TriggerSweep godoc
// @Summary Queue a sweep
// @Description Queue a full sweep of one chain across its configured cities
// @Tags sweeps
// @Produce json
// @Param chain path string true "Cinema chain"
// @Success 202 {object} utils.StandardResponse
// @Failure 404 {object} utils.StandardResponse
// @Failure 409 {object} utils.StandardResponse
// @Failure 503 {object} utils.StandardResponse
// @Router /sweeps/{chain} [post]
func (h *SweepHandler) TriggerSweep(c *fiber.Ctx) error {
	chain := c.Params("chain")
	if !slices.Contains(h.sweeps.Chains(), chain) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown chain: "+chain)
	}
	return h.enqueue(c, queue.SweepTask(chain))
}

// TriggerPrune godoc
// @Summary Queue a prune
// @Description Queue deletion of showings dated before today
// @Tags sweeps
// @Produce json
// @Success 202 {object} utils.StandardResponse
// @Failure 409 {object} utils.StandardResponse
// @Failure 503 {object} utils.StandardResponse
// @Router /prune [post]
func (h *SweepHandler) TriggerPrune(c *fiber.Ctx) error {
	return h.enqueue(c, queue.PruneTask())
}

func (h *SweepHandler) enqueue(c *fiber.Ctx, task queue.Task) error {
	err := h.tasks.Enqueue(task)
	switch {
	case err == nil:
		return utils.SuccessResponse(c, fiber.StatusAccepted, "Task queued", TaskAccepted{
			Kind:  string(task.Kind),
			Chain: task.Chain,
		})
	case errors.Is(err, queue.ErrAlreadyQueued):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Task is already queued or running")
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueStopped):
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		h.logger.WithError(err).WithField("task", task.String()).Error("Failed to queue task")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to queue task")
	}
}

// GetLastSweep godoc
// @Summary Last sweep
// @Description Get the most recent sweep, optionally for one chain
// @Tags sweeps
// @Produce json
// @Param chain query string false "Cinema chain"
// @Success 200 {object} utils.StandardResponse
// @Failure 404 {object} utils.StandardResponse
// @Failure 500 {object} utils.StandardResponse
// @Router /sweeps/last [get]
func (h *SweepHandler) GetLastSweep(c *fiber.Ctx) error {
	run, err := h.sweeps.GetLastRun(c.UserContext(), c.Query("chain"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get last sweep")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve last sweep")
	}
	if run == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "No sweep has run yet")
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Last sweep retrieved successfully", run)
}
