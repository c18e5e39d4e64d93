package dto

import (
	"time"

	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/core/workflow"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/pkg/utils/duration"
)

type ListTasksQuery struct {
	Status   string `query:"status"`
	Search   string `query:"search"`
	Page     int    `query:"page"`
	PageSize int    `query:"page_size"`
}

func (q *ListTasksQuery) Validate() []string {
	var errors []string

	if q.Status != "" && !domain.CompletionStatus(q.Status).IsValid() {
		errors = append(errors, "status is not a known completion status")
	}
	if q.Page < 0 {
		errors = append(errors, "page must not be negative")
	}
	if q.PageSize < 0 {
		errors = append(errors, "page_size must not be negative")
	}

	return errors
}

func (q *ListTasksQuery) Filter() ports.TaskFilter {
	return ports.TaskFilter{
		Status:   domain.CompletionStatus(q.Status),
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
}

// ReasonRequest carries the hold or incomplete reason. Emptiness is checked
// by the state machine so that it surfaces as a validation error.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

type PinRequest struct {
	Pinned *bool `json:"pinned"`
}

func (r *PinRequest) Validate() []string {
	if r.Pinned == nil {
		return []string{"pinned is required"}
	}
	return nil
}

type TaskResponse struct {
	ID                   string                  `json:"id"`
	Title                string                  `json:"title"`
	Priority             string                  `json:"priority"`
	DueDate              *time.Time              `json:"due_date,omitempty"`
	CompletionStatus     domain.CompletionStatus `json:"completion_status"`
	TimeTrackingRequired bool                    `json:"time_tracking_required"`
	ReviewRequired       bool                    `json:"review_required"`
	ReviewerID           *string                 `json:"reviewer_id,omitempty"`
	IsPrivate            bool                    `json:"is_private"`
	Estimated            string                  `json:"estimated"`
	Actual               string                  `json:"actual"`
	HoldReason           string                  `json:"hold_reason,omitempty"`
	IncompleteReason     string                  `json:"incomplete_reason,omitempty"`
	AvailableActions     []domain.Action         `json:"available_actions"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

func TaskToResponse(t *domain.Task) *TaskResponse {
	if t == nil {
		return nil
	}
	return &TaskResponse{
		ID:                   t.ID,
		Title:                t.Title,
		Priority:             t.Priority,
		DueDate:              t.DueDate,
		CompletionStatus:     t.CompletionStatus,
		TimeTrackingRequired: t.TimeTrackingRequired,
		ReviewRequired:       t.ReviewRequired,
		ReviewerID:           t.ReviewerID,
		IsPrivate:            t.IsPrivate,
		Estimated:            formatEstimate(t.EstimatedDurationSeconds),
		Actual:               duration.FormatSeconds(t.ActualDurationSeconds),
		HoldReason:           t.HoldReason,
		IncompleteReason:     t.IncompleteReason,
		AvailableActions:     workflow.AvailableActions(t),
		UpdatedAt:            t.UpdatedAt,
	}
}

// An estimate of zero means none was set.
func formatEstimate(seconds int64) string {
	if seconds <= 0 {
		return duration.NotAvailable
	}
	return duration.FormatSeconds(seconds)
}

type TaskListResponse struct {
	Items    []*TaskResponse `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func TaskPageToResponse(p *ports.TaskPage) TaskListResponse {
	items := make([]*TaskResponse, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, TaskToResponse(&p.Items[i]))
	}
	return TaskListResponse{Items: items, Total: p.Total, Page: p.Page, PageSize: p.PageSize}
}

type SessionResponse struct {
	Running        bool          `json:"running"`
	TaskID         string        `json:"task_id,omitempty"`
	Task           *TaskResponse `json:"task,omitempty"`
	Accumulated    string        `json:"accumulated"`
	Elapsed        string        `json:"elapsed"`
	ElapsedSeconds int64         `json:"elapsed_seconds"`
	LastFetchedAt  *time.Time    `json:"last_fetched_at,omitempty"`
	PipLoading     bool          `json:"pip_loading"`
	PipPinned      bool          `json:"pip_pinned"`
}

func SessionToResponse(s *ports.SessionSnapshot) SessionResponse {
	resp := SessionResponse{
		Accumulated:    duration.FormatElapsed(0),
		Elapsed:        duration.FormatElapsed(s.Elapsed),
		ElapsedSeconds: int64(s.Elapsed / time.Second),
		PipLoading:     s.Surface.Loading,
		PipPinned:      s.Surface.Pinned,
	}
	if cur := s.Session; cur != nil {
		fetched := cur.LastFetchedAt
		resp.Running = true
		resp.TaskID = cur.TaskID
		resp.Task = TaskToResponse(cur.Task)
		resp.Accumulated = duration.FormatElapsed(cur.Accumulated)
		resp.LastFetchedAt = &fetched
	}
	return resp
}

type SurfaceStatusResponse struct {
	PipLoading bool `json:"pip_loading"`
	PipPinned  bool `json:"pip_pinned"`
}

type TimelineEntryResponse struct {
	ID          string                  `json:"id"`
	Event       domain.Event            `json:"event"`
	From        domain.CompletionStatus `json:"from"`
	To          domain.CompletionStatus `json:"to"`
	Reason      string                  `json:"reason,omitempty"`
	UserID      string                  `json:"user_id"`
	Accumulated string                  `json:"accumulated"`
	CreatedAt   time.Time               `json:"created_at"`
}

func TimelineToResponse(records []domain.TransitionRecord) []TimelineEntryResponse {
	out := make([]TimelineEntryResponse, 0, len(records))
	for _, r := range records {
		out = append(out, TimelineEntryResponse{
			ID:          r.ID,
			Event:       r.Event,
			From:        r.FromStatus,
			To:          r.ToStatus,
			Reason:      r.Reason,
			UserID:      r.UserID,
			Accumulated: duration.FormatSeconds(r.AccumulatedSeconds),
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}
