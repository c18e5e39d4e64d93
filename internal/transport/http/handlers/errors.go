package handlers

import (
	"errors"

	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
)

// Error codes returned alongside the user-facing message.
const (
	CodeConcurrentSession = "concurrent_session"
	CodeValidation        = "validation_failed"
	CodeInvalidTransition = "invalid_transition"
	CodeRejected          = "transition_rejected"
	CodeNotFound          = "not_found"
	CodeNoActiveSession   = "no_active_session"
	CodeInternal          = "internal_error"
)

func statusFor(err error) (int, string) {
	var (
		conflict   *domain.ConcurrentSessionConflictError
		validation *domain.ValidationError
		invalid    *domain.InvalidTransitionError
		rejected   *domain.TransitionRejectedError
		notFound   *domain.TaskNotFoundError
	)
	switch {
	case errors.As(err, &conflict):
		return fiber.StatusConflict, CodeConcurrentSession
	case errors.As(err, &validation):
		return fiber.StatusUnprocessableEntity, CodeValidation
	case errors.As(err, &invalid):
		return fiber.StatusConflict, CodeInvalidTransition
	case errors.As(err, &notFound):
		return fiber.StatusNotFound, CodeNotFound
	case errors.As(err, &rejected):
		return fiber.StatusConflict, CodeRejected
	case errors.Is(err, domain.ErrNoActiveSession):
		return fiber.StatusNotFound, CodeNoActiveSession
	default:
		return fiber.StatusInternalServerError, CodeInternal
	}
}

// respondError maps a service error onto the JSON error body. Only the
// user-facing message is exposed.
func respondError(c *fiber.Ctx, log *logger.Logger, event string, err error) error {
	status, code := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorw(event, "code", code, "error", err)
	} else {
		log.Warnw(event, "code", code, "error", err)
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error: domain.UserMessage(err),
		Code:  code,
	})
}
