package session

import (
	"time"

	"github.com/auditsuite/tasktimer/internal/domain"
)

// Project computes the elapsed time to display. The live delta since the last
// authoritative read is only added while the task is running; otherwise the
// accumulated value is frozen. The session is never written to.
func Project(s *domain.ActiveSession, status domain.CompletionStatus, now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	if status != domain.StatusStarted {
		return s.Accumulated
	}
	delta := now.Sub(s.LastFetchedAt)
	if delta < 0 {
		delta = 0
	}
	return s.Accumulated + delta
}
