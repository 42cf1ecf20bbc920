package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"showtime-scraper/internal/services"
	"showtime-scraper/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const snapshotURLExpiry = 15 * time.Minute

// SnapshotPresigner issues download links for archived pages.
type SnapshotPresigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type SnapshotHandler struct {
	snapshots SnapshotPresigner
	logger    *logrus.Logger
}

// NewSnapshotHandler accepts a nil presigner when archiving is disabled.
func NewSnapshotHandler(snapshots SnapshotPresigner, logger *logrus.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		snapshots: snapshots,
		logger:    logger,
	}
}

// GetPresignedURL godoc
// @Summary Get presigned URL for an archived page
// @Description Generate a time limited download URL for a rendered listing snapshot
// @Tags snapshots
// @Produce json
// @Param key query string true "Object key, e.g. multikino/krakow/2024-05-01.html"
// @Success 200 {object} utils.StandardResponse
// @Failure 400 {object} utils.StandardResponse
// @Failure 404 {object} utils.StandardResponse
// @Failure 503 {object} utils.StandardResponse
// @Router /snapshots/presign [get]
func (h *SnapshotHandler) GetPresignedURL(c *fiber.Ctx) error {
	if h.snapshots == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Snapshot archive is not configured")
	}

	key := strings.TrimPrefix(c.Query("key"), "/")
	if key == "" || strings.Contains(key, "..") || !strings.HasSuffix(key, ".html") {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "key must name an archived .html page")
	}

	url, err := h.snapshots.PresignGet(c.UserContext(), key, snapshotURLExpiry)
	if err != nil {
		if errors.Is(err, services.ErrSnapshotNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Snapshot not found")
		}
		h.logger.WithError(err).WithField("key", key).Error("Failed to generate presigned URL")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate presigned URL")
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Presigned URL generated successfully", fiber.Map{
		"presigned_url": url,
		"expires_in":    int(snapshotURLExpiry.Seconds()),
	})
}
