package handlers

import (
	"errors"
	"strconv"

	"showtime-scraper/internal/models"
	"showtime-scraper/internal/services"
	"showtime-scraper/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type CatalogHandler struct {
	service services.CatalogService
	logger  *logrus.Logger
}

func NewCatalogHandler(service services.CatalogService, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		logger:  logger,
	}
}

// GetShowings godoc
// @Summary List showings
// @Description List stored showings filtered by city, chain and date, ordered by date and time
// @Tags showings
// @Produce json
// @Param city query string false "City slug"
// @Param chain query string false "Cinema chain"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} utils.StandardResponse
// @Failure 400 {object} utils.StandardResponse
// @Failure 500 {object} utils.StandardResponse
// @Router /showings [get]
func (h *CatalogHandler) GetShowings(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	page, limit = services.NormalizePage(page, limit)

	filter := models.ShowingFilter{
		City:  c.Query("city"),
		Chain: c.Query("chain"),
		Date:  c.Query("date"),
		Page:  page,
		Limit: limit,
	}

	showings, total, err := h.service.GetShowings(c.UserContext(), filter)
	if err != nil {
		if errors.Is(err, services.ErrInvalidFilter) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.WithError(err).Error("Failed to get showings")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve showings")
	}

	meta := utils.CreatePaginationMeta(page, limit, total)
	return utils.SuccessWithMetaResponse(c, fiber.StatusOK, "Showings retrieved successfully", toShowingResponses(showings), meta)
}

// GetCinemas godoc
// @Summary List cinemas
// @Tags cinemas
// @Produce json
// @Param city query string false "City slug"
// @Success 200 {object} utils.StandardResponse
// @Failure 500 {object} utils.StandardResponse
// @Router /cinemas [get]
func (h *CatalogHandler) GetCinemas(c *fiber.Ctx) error {
	cinemas, err := h.service.GetCinemas(c.UserContext(), c.Query("city"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get cinemas")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve cinemas")
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Cinemas retrieved successfully", cinemas)
}

// GetFilms godoc
// @Summary List films
// @Tags films
// @Produce json
// @Param search query string false "Title fragment"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} utils.StandardResponse
// @Failure 500 {object} utils.StandardResponse
// @Router /films [get]
func (h *CatalogHandler) GetFilms(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	page, limit = services.NormalizePage(page, limit)

	films, total, err := h.service.GetFilms(c.UserContext(), page, limit, c.Query("search"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get films")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve films")
	}

	meta := utils.CreatePaginationMeta(page, limit, total)
	return utils.SuccessWithMetaResponse(c, fiber.StatusOK, "Films retrieved successfully", films, meta)
}
