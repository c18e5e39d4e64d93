// Package notify is the cross-surface channel between the host and any
// floating timer surfaces. Events are delivered synchronously and in order.
package notify

import (
	"time"

	"github.com/auditsuite/tasktimer/internal/domain"
)

const (
	EventClosePiP        = "close-pip"
	EventOpenPiP         = "open-pip"
	EventPiPLoadingState = "pip-loading-state"
	EventPiPClosed       = "pip-closed"
)

// Event is implemented by everything published on the Bus.
type Event interface {
	EventType() string
	Timestamp() time.Time
	// UserID scopes the event to the user whose surfaces should see it.
	UserID() string
}

type baseEvent struct {
	eventType string
	userID    string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }
func (e baseEvent) UserID() string       { return e.userID }

func newBaseEvent(eventType, userID string) baseEvent {
	return baseEvent{eventType: eventType, userID: userID, timestamp: time.Now()}
}

// ClosePiPEvent tells any surface showing TaskID to close.
type ClosePiPEvent struct {
	baseEvent
	TaskID string
}

func NewClosePiPEvent(userID, taskID string) ClosePiPEvent {
	return ClosePiPEvent{baseEvent: newBaseEvent(EventClosePiP, userID), TaskID: taskID}
}

// OpenPiPEvent asks for a floating surface showing the running task.
type OpenPiPEvent struct {
	baseEvent
	Task          *domain.Task
	Accumulated   time.Duration
	LastFetchedAt time.Time
}

func NewOpenPiPEvent(s *domain.ActiveSession) OpenPiPEvent {
	return OpenPiPEvent{
		baseEvent:     newBaseEvent(EventOpenPiP, s.UserID),
		Task:          s.Task,
		Accumulated:   s.Accumulated,
		LastFetchedAt: s.LastFetchedAt,
	}
}

// PiPLoadingStateEvent is reported by a surface while it opens.
type PiPLoadingStateEvent struct {
	baseEvent
	IsLoading bool
}

func NewPiPLoadingStateEvent(userID string, loading bool) PiPLoadingStateEvent {
	return PiPLoadingStateEvent{baseEvent: newBaseEvent(EventPiPLoadingState, userID), IsLoading: loading}
}

// PiPClosedEvent is reported by a surface when it goes away.
type PiPClosedEvent struct {
	baseEvent
}

func NewPiPClosedEvent(userID string) PiPClosedEvent {
	return PiPClosedEvent{baseEvent: newBaseEvent(EventPiPClosed, userID)}
}
