package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Roberto640Alvarado/sae-LTI/internal/dto"
	"github.com/Roberto640Alvarado/sae-LTI/internal/middleware"
	"github.com/Roberto640Alvarado/sae-LTI/internal/service"
	"github.com/Roberto640Alvarado/sae-LTI/internal/utils"
)

// GradeSyncHandler exposes gradebook reconciliation.
type GradeSyncHandler struct {
	service service.GradeSyncService
	logger  zerolog.Logger
}

// NewGradeSyncHandler constructs a grade sync handler.
func NewGradeSyncHandler(service service.GradeSyncService, logger zerolog.Logger) *GradeSyncHandler {
	return &GradeSyncHandler{
		service: service,
		logger:  logger.With().Str("component", "grade_sync_handler").Logger(),
	}
}

// Register wires grade routes. The sync body carries its own session token; run
// history is guarded by auth. Extra handlers run before the sync trigger.
func (h *GradeSyncHandler) Register(router fiber.Router, auth fiber.Handler, syncMiddleware ...fiber.Handler) {
	router.Post("/sync", append(syncMiddleware, h.sync)...)
	router.Get("/runs", auth, h.runs)
}

func (h *GradeSyncHandler) sync(c *fiber.Ctx) error {
	var payload dto.GradeSyncRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Sync(c.UserContext(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidGradeSyncRequest):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		case errors.Is(err, service.ErrLaunchUnauthorized):
			requestLogger(h.logger, c).Warn().Err(err).Str("assignment_id", payload.AssignmentID).Msg("grade sync rejected")
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid or expired session")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("assignment_id", payload.AssignmentID).Msg("grade sync failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to sync grades")
		}
	}

	return utils.SendSuccess(c, "grades synchronized", response)
}

func (h *GradeSyncHandler) runs(c *fiber.Ctx) error {
	launch, ok := middleware.LaunchFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "invalid or expired session")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	runs, err := h.service.ListRuns(c.UserContext(), launch.Token.PlatformContext.Resource.ID, launch.Token.Issuer, limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list grade sync runs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list grade sync runs")
	}

	return utils.SendSuccess(c, "grade sync runs retrieved", runs)
}
