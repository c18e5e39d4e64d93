package handlers

import (
	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/transport/http/dto"
	httpmw "github.com/auditsuite/tasktimer/internal/transport/http/middleware"
	"github.com/gofiber/fiber/v2"
)

type SessionHandler struct {
	service ports.TimerService
	logger  *logger.Logger
}

func NewSessionHandler(service ports.TimerService, logger *logger.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	snap, err := h.service.Session(c.UserContext(), httpmw.UserID(c))
	if err != nil {
		return respondError(c, h.logger, "session_get_failed", err)
	}
	return c.JSON(dto.SessionToResponse(snap))
}

func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	userID := httpmw.UserID(c)
	snap, err := h.service.RefreshSession(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, "session_refresh_failed", err)
	}
	h.logger.Infow("session_refresh_success", "user_id", userID, "running", snap.Session != nil)
	return c.JSON(dto.SessionToResponse(snap))
}

// OpenPiP asks connected floating surfaces to show the running task.
func (h *SessionHandler) OpenPiP(c *fiber.Ctx) error {
	userID := httpmw.UserID(c)
	if _, err := h.service.OpenFloatingSurface(c.UserContext(), userID); err != nil {
		return respondError(c, h.logger, "session_pip_open_failed", err)
	}
	snap, err := h.service.Session(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, "session_get_failed", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.SessionToResponse(snap))
}

func (h *SessionHandler) Pin(c *fiber.Ctx) error {
	var req dto.PinRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("session_pin_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if errors := req.Validate(); len(errors) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errors,
		})
	}
	status := h.service.SetPinned(httpmw.UserID(c), *req.Pinned)
	return c.JSON(dto.SurfaceStatusResponse{PipLoading: status.Loading, PipPinned: status.Pinned})
}
