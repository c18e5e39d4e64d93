package session

import "github.com/auditsuite/tasktimer/internal/domain"

// CanStartOrResume reports whether taskID may begin running given the user's
// current session.
func CanStartOrResume(current *domain.ActiveSession, taskID string) bool {
	return current == nil || current.TaskID == taskID
}

// CheckStartOrResume returns a ConcurrentSessionConflictError when another
// task is already running. Events that do not start a session always pass.
func CheckStartOrResume(current *domain.ActiveSession, userID, taskID string, event domain.Event) error {
	if !event.StartsSession() || CanStartOrResume(current, taskID) {
		return nil
	}
	return &domain.ConcurrentSessionConflictError{
		UserID:        userID,
		RunningTaskID: current.TaskID,
		TaskID:        taskID,
		Event:         event,
	}
}
