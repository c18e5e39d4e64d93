package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/core/workflow"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rejection causes reported inside TransitionRejectedError.
var (
	ErrStaleStatus    = errors.New("task: status changed since it was read")
	ErrNotAssignee    = errors.New("task: not assigned to the acting user")
	ErrIntervalOpen   = errors.New("task: another work interval is open for this user")
	ErrNoOpenInterval = errors.New("task: running task has no open work interval")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type taskRepository struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// TaskRepository is the gorm TaskBackend. Create is used for seeding.
type TaskRepository interface {
	ports.TaskBackend
	Create(ctx context.Context, task *domain.Task) error
}

func NewTaskRepository(db *gorm.DB, log *logger.Logger) TaskRepository {
	return &taskRepository{db: db, log: log, now: time.Now}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CompletionStatus == "" {
		task.CompletionStatus = domain.StatusNotStarted
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		r.log.Errorw("task_repo_create_failed", "title", task.Title, "error", err)
		return err
	}
	r.log.Infow("task_repo_create_ok", "id", task.ID, "assignee_id", task.AssigneeID)
	return nil
}

func (r *taskRepository) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.TaskNotFoundError{TaskID: taskID}
		}
		r.log.Errorw("task_repo_get_failed", "id", taskID, "error", err)
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) ListMyTasks(ctx context.Context, userID string, filter ports.TaskFilter) (*ports.TaskPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	q := r.db.WithContext(ctx).Model(&domain.Task{}).Where("assignee_id = ?", userID)
	if filter.Status != "" {
		q = q.Where("completion_status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		r.log.Errorw("task_repo_count_failed", "user_id", userID, "error", err)
		return nil, err
	}

	var tasks []domain.Task
	err := q.Order("updated_at desc").Order("id").
		Offset((page - 1) * size).
		Limit(size).
		Find(&tasks).Error
	if err != nil {
		r.log.Errorw("task_repo_list_failed", "user_id", userID, "error", err)
		return nil, err
	}
	r.log.Infow("task_repo_list_ok", "user_id", userID, "count", len(tasks), "total", total)
	return &ports.TaskPage{Items: tasks, Total: total, Page: page, PageSize: size}, nil
}

func (r *taskRepository) GetActiveSession(ctx context.Context, userID string) (*domain.ActiveSessionView, error) {
	var iv domain.WorkInterval
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ended_at IS NULL", userID).
		Order("started_at desc").
		First(&iv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorw("task_repo_active_session_failed", "user_id", userID, "error", err)
		return nil, err
	}

	task, err := r.GetTask(ctx, iv.TaskID)
	if err != nil {
		return nil, err
	}

	running := r.now().Sub(iv.StartedAt)
	if running < 0 {
		running = 0
	}
	return &domain.ActiveSessionView{
		TaskID:      task.ID,
		Accumulated: task.ActualDuration() + running.Truncate(time.Second),
		Task:        task,
	}, nil
}

// ApplyTransition validates and applies one transition atomically: the
// status update, the work interval bookkeeping and the timeline record
// either all commit or none do.
func (r *taskRepository) ApplyTransition(ctx context.Context, req ports.TransitionRequest) (*domain.Task, error) {
	now := r.now()
	var out domain.Task

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task domain.Task
		if err := tx.First(&task, "id = ?", req.TaskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &domain.TaskNotFoundError{TaskID: req.TaskID}
			}
			return err
		}
		if task.AssigneeID != req.UserID {
			return ErrNotAssignee
		}
		if req.ExpectedStatus != "" && task.CompletionStatus != req.ExpectedStatus {
			return ErrStaleStatus
		}

		from := task.CompletionStatus
		to, err := workflow.Next(&task, req.Event, req.Reason)
		if err != nil {
			return err
		}

		if req.Event.StartsSession() {
			var open int64
			if err := tx.Model(&domain.WorkInterval{}).
				Where("user_id = ? AND ended_at IS NULL", req.UserID).
				Count(&open).Error; err != nil {
				return err
			}
			if open > 0 {
				return ErrIntervalOpen
			}
			if err := tx.Create(&domain.WorkInterval{
				ID:        uuid.New().String(),
				TaskID:    task.ID,
				UserID:    req.UserID,
				StartedAt: now,
			}).Error; err != nil {
				return err
			}
		}

		if from == domain.StatusStarted && req.Event.EndsSession() {
			secs, err := closeInterval(tx, task.ID, req.UserID, now)
			if err != nil {
				return err
			}
			task.ActualDurationSeconds += secs
		}

		updates := map[string]interface{}{
			"completion_status":       to,
			"actual_duration_seconds": task.ActualDurationSeconds,
			"updated_at":              now,
		}
		switch req.Event {
		case domain.EventHold:
			updates["hold_reason"] = strings.TrimSpace(req.Reason)
		case domain.EventIncomplete:
			updates["incomplete_reason"] = strings.TrimSpace(req.Reason)
		}

		res := tx.Model(&domain.Task{}).
			Where("id = ? AND completion_status = ?", task.ID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}

		if err := tx.Create(&domain.TransitionRecord{
			ID:                 uuid.New().String(),
			CreatedAt:          now,
			TaskID:             task.ID,
			UserID:             req.UserID,
			Event:              req.Event,
			FromStatus:         from,
			ToStatus:           to,
			Reason:             strings.TrimSpace(req.Reason),
			AccumulatedSeconds: task.ActualDurationSeconds,
		}).Error; err != nil {
			return err
		}

		return tx.First(&out, "id = ?", task.ID).Error
	})
	if err != nil {
		r.log.Warnw("task_repo_apply_failed",
			"task_id", req.TaskID, "user_id", req.UserID, "event", req.Event, "error", err)
		return nil, classifyApplyError(req, err)
	}

	r.log.Infow("task_repo_apply_ok",
		"task_id", out.ID, "event", req.Event, "status", out.CompletionStatus,
		"actual_seconds", out.ActualDurationSeconds)
	return &out, nil
}

func closeInterval(tx *gorm.DB, taskID, userID string, now time.Time) (int64, error) {
	var iv domain.WorkInterval
	err := tx.Where("task_id = ? AND user_id = ? AND ended_at IS NULL", taskID, userID).
		First(&iv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNoOpenInterval
		}
		return 0, err
	}
	secs := int64(now.Sub(iv.StartedAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	err = tx.Model(&domain.WorkInterval{}).
		Where("id = ?", iv.ID).
		Updates(map[string]interface{}{"ended_at": now, "seconds": secs}).Error
	return secs, err
}

// classifyApplyError keeps domain errors as they are and reports every other
// refusal as a rejected transition.
func classifyApplyError(req ports.TransitionRequest, err error) error {
	var (
		notFound   *domain.TaskNotFoundError
		invalid    *domain.InvalidTransitionError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &invalid), errors.As(err, &validation):
		return err
	}
	return &domain.TransitionRejectedError{TaskID: req.TaskID, Event: req.Event, Err: err}
}
