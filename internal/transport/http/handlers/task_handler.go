package handlers

import (
	"context"

	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/transport/http/dto"
	httpmw "github.com/auditsuite/tasktimer/internal/transport/http/middleware"
	"github.com/gofiber/fiber/v2"
)

type TaskHandler struct {
	service ports.TimerService
	logger  *logger.Logger
}

func NewTaskHandler(service ports.TimerService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{service: service, logger: logger}
}

func (h *TaskHandler) ListMyTasks(c *fiber.Ctx) error {
	var q dto.ListTasksQuery
	if err := c.QueryParser(&q); err != nil {
		h.logger.Warnw("tasks_list_query_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid query parameters",
		})
	}
	if errors := q.Validate(); len(errors) > 0 {
		h.logger.Warnw("tasks_list_validation_failed", "details", errors)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errors,
		})
	}

	userID := httpmw.UserID(c)
	page, err := h.service.ListMyTasks(c.UserContext(), userID, q.Filter())
	if err != nil {
		return respondError(c, h.logger, "tasks_list_failed", err)
	}

	h.logger.Infow("tasks_list_success", "user_id", userID, "count", len(page.Items), "total", page.Total)
	return c.JSON(dto.TaskPageToResponse(page))
}

type transitionFunc func(ctx context.Context, userID, taskID string) (*domain.Task, error)

func (h *TaskHandler) transition(c *fiber.Ctx, event string, fn transitionFunc) error {
	userID := httpmw.UserID(c)
	taskID := c.Params("id")

	h.logger.Infow("task_transition_request", "event", event, "task_id", taskID, "user_id", userID)
	task, err := fn(c.UserContext(), userID, taskID)
	if err != nil {
		return respondError(c, h.logger, "task_transition_failed", err)
	}

	h.logger.Infow("task_transition_success", "event", event, "task_id", taskID, "status", task.CompletionStatus)
	return c.JSON(dto.TaskToResponse(task))
}

func (h *TaskHandler) withReason(c *fiber.Ctx, event string, fn func(ctx context.Context, userID, taskID, reason string) (*domain.Task, error)) error {
	var req dto.ReasonRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			h.logger.Warnw("task_transition_body_parse_failed", "event", event, "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "invalid request body",
			})
		}
	}
	return h.transition(c, event, func(ctx context.Context, userID, taskID string) (*domain.Task, error) {
		return fn(ctx, userID, taskID, req.Reason)
	})
}

func (h *TaskHandler) Start(c *fiber.Ctx) error {
	return h.transition(c, "start", h.service.Start)
}

func (h *TaskHandler) Resume(c *fiber.Ctx) error {
	return h.transition(c, "resume", h.service.Resume)
}

func (h *TaskHandler) Hold(c *fiber.Ctx) error {
	return h.withReason(c, "hold", h.service.Hold)
}

func (h *TaskHandler) Incomplete(c *fiber.Ctx) error {
	return h.withReason(c, "incomplete", h.service.Incomplete)
}

func (h *TaskHandler) Complete(c *fiber.Ctx) error {
	return h.transition(c, "complete", h.service.Complete)
}

func (h *TaskHandler) ForReview(c *fiber.Ctx) error {
	return h.transition(c, "for_review", h.service.ForReview)
}

func (h *TaskHandler) Finish(c *fiber.Ctx) error {
	return h.transition(c, "finish", h.service.Finish)
}
