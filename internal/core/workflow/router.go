package workflow

import "github.com/auditsuite/tasktimer/internal/domain"

// Route decides where a task lands when it is finished, running or not:
// review when a reviewer must sign off, completion otherwise.
// Any assigned reviewer counts, including the assignee.
func Route(task *domain.Task) domain.CompletionStatus {
	if task.ReviewRequired && task.HasReviewer() && !task.IsPrivate {
		return domain.StatusForReview
	}
	return domain.StatusCompleted
}

// RouteEvent is the event that reaches Route's status.
func RouteEvent(task *domain.Task) domain.Event {
	if Route(task) == domain.StatusForReview {
		return domain.EventForReview
	}
	return domain.EventComplete
}
