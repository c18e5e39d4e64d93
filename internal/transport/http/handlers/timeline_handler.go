package handlers

import (
	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
)

type TimelineHandler struct {
	service ports.TimerService
	logger  *logger.Logger
}

func NewTimelineHandler(service ports.TimerService, logger *logger.Logger) *TimelineHandler {
	return &TimelineHandler{service: service, logger: logger}
}

func (h *TimelineHandler) GetEvents(c *fiber.Ctx) error {
	taskID := c.Params("id")
	limit := c.QueryInt("limit", 50)
	if limit < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid limit"})
	}
	records, err := h.service.Timeline(c.UserContext(), taskID, limit)
	if err != nil {
		return respondError(c, h.logger, "timeline_list_failed", err)
	}
	return c.JSON(dto.TimelineToResponse(records))
}
