package domain

import (
	"errors"
	"fmt"
)

// ErrNoActiveSession is returned when an operation needs a running timer and
// the acting user has none.
var ErrNoActiveSession = errors.New("session: no active session")

// TaskNotFoundError is returned when a task ID does not exist.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// ConcurrentSessionConflictError is returned when Start or Resume is attempted
// while another task already has a running session for the same user.
type ConcurrentSessionConflictError struct {
	UserID        string
	RunningTaskID string
	TaskID        string
	Event         Event
}

func (e *ConcurrentSessionConflictError) Error() string {
	return fmt.Sprintf("cannot %s task %s: task %s is already running for user %s",
		e.Event, e.TaskID, e.RunningTaskID, e.UserID)
}

// UserMessage is the notification shown to the user.
func (e *ConcurrentSessionConflictError) UserMessage() string {
	if e.Event == EventResume {
		return "To resume a task, you must hold the current task."
	}
	return "To start a new task, you must hold the current task."
}

// ValidationError is returned when a transition payload is incomplete.
type ValidationError struct {
	Field string
	Event Event
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s is required", e.Event, e.Field)
}

func (e *ValidationError) UserMessage() string {
	switch e.Event {
	case EventHold:
		return "A reason is required to put the task on hold."
	case EventIncomplete:
		return "A reason is required to mark the task incomplete."
	default:
		return fmt.Sprintf("%s is required.", e.Field)
	}
}

// InvalidTransitionError is returned when the current status does not permit
// the requested event.
type InvalidTransitionError struct {
	TaskID string
	From   CompletionStatus
	Event  Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: %s is not allowed from %q", e.TaskID, e.Event, e.From)
}

func (e *InvalidTransitionError) UserMessage() string {
	return fmt.Sprintf("This action is not available while the task is %s.", e.From)
}

// TransitionRejectedError is returned when the authoritative side refused a
// transition. Local state is never advanced.
type TransitionRejectedError struct {
	TaskID string
	Event  Event
	Err    error
}

func (e *TransitionRejectedError) Error() string {
	return fmt.Sprintf("task %s: %s rejected: %v", e.TaskID, e.Event, e.Err)
}

func (e *TransitionRejectedError) Unwrap() error {
	return e.Err
}

func (e *TransitionRejectedError) UserMessage() string {
	return "The task could not be updated. Refresh and try again."
}

// UserMessage converts any error produced at the action boundary into the
// text shown to the user.
func UserMessage(err error) string {
	var msg interface{ UserMessage() string }
	if errors.As(err, &msg) {
		return msg.UserMessage()
	}
	var notFound *TaskNotFoundError
	if errors.As(err, &notFound) {
		return "Task not found."
	}
	if errors.Is(err, ErrNoActiveSession) {
		return "No task is currently running."
	}
	return "Something went wrong. Please try again."
}
