// Package workflow holds the task completion state machine and the rules
// deciding which actions a task currently offers.
package workflow

import (
	"strings"

	"github.com/auditsuite/tasktimer/internal/domain"
)

// Next returns the status a task moves to when event is applied. It does not
// mutate the task. The state check comes before payload validation, so an
// event that is never allowed reports InvalidTransitionError even with an
// empty reason.
func Next(task *domain.Task, event domain.Event, reason string) (domain.CompletionStatus, error) {
	from := task.CompletionStatus
	invalid := &domain.InvalidTransitionError{TaskID: task.ID, From: from, Event: event}

	var to domain.CompletionStatus
	switch from {
	case domain.StatusNotStarted, domain.StatusReassign:
		switch event {
		case domain.EventStart:
			if !task.TimeTrackingRequired {
				return "", invalid
			}
			to = domain.StatusStarted
		case domain.EventComplete, domain.EventForReview:
			if task.TimeTrackingRequired || event != RouteEvent(task) {
				return "", invalid
			}
			to = Route(task)
		default:
			return "", invalid
		}

	case domain.StatusStarted:
		switch event {
		case domain.EventHold:
			to = domain.StatusOnHold
		case domain.EventIncomplete:
			to = domain.StatusIncomplete
		case domain.EventComplete, domain.EventForReview:
			if event != RouteEvent(task) {
				return "", invalid
			}
			to = Route(task)
		default:
			return "", invalid
		}

	case domain.StatusOnHold:
		if event != domain.EventResume {
			return "", invalid
		}
		to = domain.StatusStarted

	default:
		return "", invalid
	}

	if err := ValidateReason(event, reason); err != nil {
		return "", err
	}
	return to, nil
}

// ValidateReason enforces the reason requirement of Hold and Incomplete.
func ValidateReason(event domain.Event, reason string) error {
	if event.RequiresReason() && strings.TrimSpace(reason) == "" {
		return &domain.ValidationError{Field: "reason", Event: event}
	}
	return nil
}
