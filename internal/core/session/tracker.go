// Package session owns the per-user running timer: the tracker that stores
// the last authoritative snapshot, the projector that derives live elapsed
// time from it, and the guard that keeps one running task per user.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/domain"
)

// Tracker is the only writer of a session's accumulated time and fetch
// timestamp.
type Tracker struct {
	store ports.SessionStore
	now   func() time.Time
}

type TrackerOption func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(store ports.SessionStore, opts ...TrackerOption) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Current returns the stored snapshot, or nil when the user has none.
func (t *Tracker) Current(ctx context.Context, userID string) (*domain.ActiveSession, error) {
	s, err := t.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", userID, err)
	}
	return s, nil
}

// Refresh replaces the snapshot with an authoritative read. A nil view means
// the backend reports no running timer and the snapshot is cleared.
func (t *Tracker) Refresh(ctx context.Context, userID string, view *domain.ActiveSessionView) (*domain.ActiveSession, error) {
	if view == nil {
		return nil, t.Clear(ctx, userID)
	}
	s := &domain.ActiveSession{
		UserID:        userID,
		TaskID:        view.TaskID,
		Accumulated:   view.Accumulated,
		LastFetchedAt: t.now(),
		RunStatus:     domain.StatusStarted,
		Task:          view.Task,
	}
	if err := t.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("session: put %s: %w", userID, err)
	}
	return s, nil
}

func (t *Tracker) Clear(ctx context.Context, userID string) error {
	if err := t.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("session: delete %s: %w", userID, err)
	}
	return nil
}

// Elapsed projects the stored session at the tracker's current time.
func (t *Tracker) Elapsed(s *domain.ActiveSession) time.Duration {
	if s == nil {
		return 0
	}
	return Project(s, s.RunStatus, t.now())
}
