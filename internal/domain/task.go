package domain

import "time"

// HasReviewer reports whether a reviewer has been assigned.
func (t *Task) HasReviewer() bool {
	return t.ReviewerID != nil && *t.ReviewerID != ""
}

// ActualDuration returns the authoritative worked time.
func (t *Task) ActualDuration() time.Duration {
	return time.Duration(t.ActualDurationSeconds) * time.Second
}

// ActiveSession is the single running timer for one user. It only exists
// while ticking; once held or completed it is torn down and the task's
// CompletionStatus alone reflects state.
type ActiveSession struct {
	UserID        string           `json:"user_id"`
	TaskID        string           `json:"task_id"`
	Accumulated   time.Duration    `json:"accumulated"`
	LastFetchedAt time.Time        `json:"last_fetched_at"`
	RunStatus     CompletionStatus `json:"run_status"`
	Task          *Task            `json:"task,omitempty"`
}

// ActiveSessionView is what the authoritative side reports for a user's
// running timer. Accumulated is the worked total as of the read.
type ActiveSessionView struct {
	TaskID      string
	Accumulated time.Duration
	Task        *Task
}
