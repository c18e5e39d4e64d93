package domain

import (
	"time"

	"gorm.io/gorm"
)

// ==================== ENUMS ====================

// CompletionStatus is the single source of truth for a task's workflow position.
type CompletionStatus string

const (
	StatusNotStarted CompletionStatus = "Not Started"
	StatusStarted    CompletionStatus = "Started"
	StatusOnHold     CompletionStatus = "On Hold"
	StatusCompleted  CompletionStatus = "Completed"
	StatusIncomplete CompletionStatus = "Incomplete"
	StatusForReview  CompletionStatus = "For Review"
	StatusReassign   CompletionStatus = "Reassign"
)

// IsTerminal reports whether the status ends the current work cycle.
func (s CompletionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusIncomplete || s == StatusForReview
}

// IsEntry reports whether a new work cycle may begin from this status.
func (s CompletionStatus) IsEntry() bool {
	return s == StatusNotStarted || s == StatusReassign
}

func (s CompletionStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusStarted, StatusOnHold, StatusCompleted,
		StatusIncomplete, StatusForReview, StatusReassign:
		return true
	default:
		return false
	}
}

// Event is a user-initiated transition request.
type Event string

const (
	EventStart      Event = "start"
	EventResume     Event = "resume"
	EventHold       Event = "hold"
	EventIncomplete Event = "incomplete"
	EventComplete   Event = "complete"
	EventForReview  Event = "for_review"
)

// StartsSession reports whether an accepted event creates an ActiveSession.
func (e Event) StartsSession() bool {
	return e == EventStart || e == EventResume
}

// EndsSession reports whether an accepted event tears down the ActiveSession
// and closes any floating surface showing the task.
func (e Event) EndsSession() bool {
	return e == EventHold || e == EventIncomplete || e == EventComplete || e == EventForReview
}

// RequiresReason reports whether the event is reason-gated.
func (e Event) RequiresReason() bool {
	return e == EventHold || e == EventIncomplete
}

// Action is what the presentation layer may offer for a task.
type Action string

const (
	ActionStart      Action = "start"
	ActionResume     Action = "resume"
	ActionHold       Action = "hold"
	ActionIncomplete Action = "incomplete"
	ActionComplete   Action = "complete"
	ActionForReview  Action = "for_review"
	ActionStartAgain Action = "start_again"
)

// Event maps an action to the transition it triggers.
func (a Action) Event() Event {
	switch a {
	case ActionStart, ActionStartAgain:
		return EventStart
	case ActionResume:
		return EventResume
	case ActionHold:
		return EventHold
	case ActionIncomplete:
		return EventIncomplete
	case ActionComplete:
		return EventComplete
	case ActionForReview:
		return EventForReview
	default:
		return ""
	}
}

// ==================== ENTITIES ====================

type Task struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title      string     `gorm:"size:255;not null" json:"title"`
	AssigneeID string     `gorm:"size:64;not null;index" json:"assignee_id"`
	Priority   string     `gorm:"size:20;default:'Medium'" json:"priority"`
	DueDate    *time.Time `json:"due_date,omitempty"`

	CompletionStatus     CompletionStatus `gorm:"size:20;not null;default:'Not Started';index" json:"completion_status"`
	TimeTrackingRequired bool             `gorm:"not null;default:false" json:"time_tracking_required"`
	ReviewRequired       bool             `gorm:"not null;default:false" json:"review_required"`
	ReviewerID           *string          `gorm:"size:64" json:"reviewer_id,omitempty"`
	IsPrivate            bool             `gorm:"not null;default:false" json:"is_private"`

	EstimatedDurationSeconds int64 `gorm:"default:0" json:"estimated_duration_seconds"`
	ActualDurationSeconds    int64 `gorm:"default:0" json:"actual_duration_seconds"`

	HoldReason       string `gorm:"type:text" json:"hold_reason,omitempty"`
	IncompleteReason string `gorm:"type:text" json:"incomplete_reason,omitempty"`
}

// WorkInterval is one contiguous span of tracked work. An interval with a nil
// EndedAt is the server-side counterpart of an ActiveSession.
type WorkInterval struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TaskID    string     `gorm:"size:36;not null;index" json:"task_id"`
	UserID    string     `gorm:"size:64;not null;index" json:"user_id"`
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Seconds   int64      `gorm:"default:0" json:"seconds"`
}

// TransitionRecord is one accepted transition in a task's activity timeline.
type TransitionRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	TaskID             string           `gorm:"size:36;not null;index" json:"task_id"`
	UserID             string           `gorm:"size:64;not null;index" json:"user_id"`
	Event              Event            `gorm:"size:20;not null" json:"event"`
	FromStatus         CompletionStatus `gorm:"size:20;not null" json:"from_status"`
	ToStatus           CompletionStatus `gorm:"size:20;not null" json:"to_status"`
	Reason             string           `gorm:"type:text" json:"reason,omitempty"`
	AccumulatedSeconds int64            `gorm:"column:accumulated_seconds;default:0" json:"accumulated_seconds"`
}

func (WorkInterval) TableName() string {
	return "work_intervals"
}

func (TransitionRecord) TableName() string {
	return "transition_records"
}
