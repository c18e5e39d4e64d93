package workflow

import "github.com/auditsuite/tasktimer/internal/domain"

// AvailableActions lists exactly the actions Next accepts from the task's
// current state. Terminal states offer nothing.
func AvailableActions(task *domain.Task) []domain.Action {
	switch task.CompletionStatus {
	case domain.StatusNotStarted:
		if task.TimeTrackingRequired {
			return []domain.Action{domain.ActionStart}
		}
		return []domain.Action{finishAction(task)}
	case domain.StatusReassign:
		if task.TimeTrackingRequired {
			return []domain.Action{domain.ActionStartAgain}
		}
		return []domain.Action{finishAction(task)}
	case domain.StatusStarted:
		return []domain.Action{
			domain.ActionHold,
			domain.ActionIncomplete,
			finishAction(task),
		}
	case domain.StatusOnHold:
		return []domain.Action{domain.ActionResume}
	default:
		return []domain.Action{}
	}
}

func finishAction(task *domain.Task) domain.Action {
	if RouteEvent(task) == domain.EventForReview {
		return domain.ActionForReview
	}
	return domain.ActionComplete
}
