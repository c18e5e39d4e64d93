package ports

import (
	"context"
	"time"

	"github.com/auditsuite/tasktimer/internal/domain"
)

type TimerService interface {
	ListMyTasks(ctx context.Context, userID string, filter TaskFilter) (*TaskPage, error)
	Session(ctx context.Context, userID string) (*SessionSnapshot, error)
	RefreshSession(ctx context.Context, userID string) (*SessionSnapshot, error)

	Start(ctx context.Context, userID, taskID string) (*domain.Task, error)
	Resume(ctx context.Context, userID, taskID string) (*domain.Task, error)
	Hold(ctx context.Context, userID, taskID, reason string) (*domain.Task, error)
	Incomplete(ctx context.Context, userID, taskID, reason string) (*domain.Task, error)
	Complete(ctx context.Context, userID, taskID string) (*domain.Task, error)
	ForReview(ctx context.Context, userID, taskID string) (*domain.Task, error)
	Finish(ctx context.Context, userID, taskID string) (*domain.Task, error)

	OpenFloatingSurface(ctx context.Context, userID string) (*domain.ActiveSession, error)
	SetPinned(userID string, pinned bool) SurfaceStatus
	Timeline(ctx context.Context, taskID string, limit int) ([]domain.TransitionRecord, error)
}

// SessionSnapshot is the running timer as a surface should display it.
type SessionSnapshot struct {
	Session *domain.ActiveSession
	Elapsed time.Duration
	Surface SurfaceStatus
}

type SurfaceStatus struct {
	Loading bool
	Pinned  bool
}
