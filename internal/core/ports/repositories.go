package ports

import (
	"context"

	"github.com/auditsuite/tasktimer/internal/domain"
)

// TaskBackend is the authoritative task collaborator. Every transition is
// applied here first; local state only follows a successful call.
type TaskBackend interface {
	ListMyTasks(ctx context.Context, userID string, filter TaskFilter) (*TaskPage, error)
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	// GetActiveSession returns nil, nil when the user has no running timer.
	GetActiveSession(ctx context.Context, userID string) (*domain.ActiveSessionView, error)
	ApplyTransition(ctx context.Context, req TransitionRequest) (*domain.Task, error)
}

type TimelineRepository interface {
	ListByTask(ctx context.Context, taskID string, limit int) ([]domain.TransitionRecord, error)
}

// SessionStore keeps the tracker's snapshot per user. Get returns nil, nil
// when nothing is stored.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*domain.ActiveSession, error)
	Put(ctx context.Context, session *domain.ActiveSession) error
	Delete(ctx context.Context, userID string) error
}

// TransitionPublisher fans accepted transitions out to other consumers.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, record *domain.TransitionRecord) error
	Close() error
}

type TaskFilter struct {
	Status   domain.CompletionStatus
	Search   string
	Page     int
	PageSize int
}

type TaskPage struct {
	Items    []domain.Task
	Total    int64
	Page     int
	PageSize int
}

type TransitionRequest struct {
	TaskID string
	UserID string
	Event  domain.Event
	Reason string
	// ExpectedStatus is the status the caller validated against. The backend
	// rejects the call if the task has moved since.
	ExpectedStatus domain.CompletionStatus
}
