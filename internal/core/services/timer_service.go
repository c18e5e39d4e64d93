package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/auditsuite/tasktimer/internal/core/notify"
	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/core/session"
	"github.com/auditsuite/tasktimer/internal/core/workflow"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/infrastructure/metrics"
	"github.com/auditsuite/tasktimer/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type TimerServiceConfig struct {
	Backend     ports.TaskBackend
	Timeline    ports.TimelineRepository
	Tracker     *session.Tracker
	Bus         *notify.Bus
	Surfaces    *notify.SurfaceState
	Publisher   ports.TransitionPublisher
	Logger      *logger.Logger
	EnableLocks bool
	Now         func() time.Time
}

type timerService struct {
	backend   ports.TaskBackend
	timeline  ports.TimelineRepository
	tracker   *session.Tracker
	bus       *notify.Bus
	surfaces  *notify.SurfaceState
	publisher ports.TransitionPublisher
	logger    *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time

	enableLocks bool
	mu          sync.Mutex
	locks       map[string]*sync.Mutex

	// stale holds users whose tracker entry could not be cleared after an
	// accepted terminating transition.
	staleMu sync.Mutex
	stale   map[string]struct{}
}

func NewTimerService(cfg TimerServiceConfig) ports.TimerService {
	s := &timerService{
		backend:     cfg.Backend,
		timeline:    cfg.Timeline,
		tracker:     cfg.Tracker,
		bus:         cfg.Bus,
		surfaces:    cfg.Surfaces,
		publisher:   cfg.Publisher,
		logger:      cfg.Logger,
		tracer:      telemetry.Tracer(),
		now:         cfg.Now,
		enableLocks: cfg.EnableLocks,
		locks:       make(map[string]*sync.Mutex),
		stale:       make(map[string]struct{}),
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.bus == nil {
		s.bus = notify.NewBus(s.logger)
	}
	if s.surfaces == nil {
		s.surfaces = notify.NewSurfaceState(s.bus)
	}
	return s
}

func (s *timerService) lockKeys(keys ...string) func() {
	if !s.enableLocks {
		return func() {}
	}
	if len(keys) == 0 {
		return func() {}
	}
	sort.Strings(keys)
	s.mu.Lock()
	acquired := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := s.locks[k]
		if m == nil {
			m = &sync.Mutex{}
			s.locks[k] = m
		}
		acquired = append(acquired, m)
	}
	s.mu.Unlock()
	for _, m := range acquired {
		m.Lock()
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

func (s *timerService) Start(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return s.transition(ctx, userID, taskID, domain.EventStart, "")
}

func (s *timerService) Resume(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return s.transition(ctx, userID, taskID, domain.EventResume, "")
}

func (s *timerService) Hold(ctx context.Context, userID, taskID, reason string) (*domain.Task, error) {
	return s.transition(ctx, userID, taskID, domain.EventHold, reason)
}

func (s *timerService) Incomplete(ctx context.Context, userID, taskID, reason string) (*domain.Task, error) {
	return s.transition(ctx, userID, taskID, domain.EventIncomplete, reason)
}

func (s *timerService) Complete(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return s.transition(ctx, userID, taskID, domain.EventComplete, "")
}

func (s *timerService) ForReview(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return s.transition(ctx, userID, taskID, domain.EventForReview, "")
}

// Finish completes a task along the routed path: review when a reviewer must
// sign off, completion otherwise.
func (s *timerService) Finish(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, userID, taskID, workflow.RouteEvent(task), "")
}

// transition runs one user action end to end. Local state (tracker, bus)
// only changes after the backend has accepted the transition.
func (s *timerService) transition(ctx context.Context, userID, taskID string, event domain.Event, reason string) (task *domain.Task, err error) {
	ctx, span := s.tracer.Start(ctx, "timer.transition", trace.WithAttributes(
		attribute.String("task.id", taskID),
		attribute.String("user.id", userID),
		attribute.String("task.event", string(event)),
	))
	defer func() {
		metrics.TransitionsTotal.WithLabelValues(string(event), outcomeOf(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := s.lockKeys("user:" + userID)
	defer unlock()

	current, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if event.StartsSession() {
		running, err := s.currentSession(ctx, userID)
		if err != nil {
			return nil, err
		}
		if session.CheckStartOrResume(running, userID, taskID, event) != nil {
			// The tracker can lag the backend; only refuse on the backend's word.
			running, err = s.reconcile(ctx, userID)
			if err != nil {
				return nil, err
			}
			if err := session.CheckStartOrResume(running, userID, taskID, event); err != nil {
				s.logger.Warnw("timer_transition_conflict",
					"user_id", userID, "task_id", taskID, "event", event, "running_task_id", running.TaskID)
				return nil, err
			}
		}
	}

	to, err := workflow.Next(current, event, reason)
	if err != nil {
		s.logger.Warnw("timer_transition_refused",
			"user_id", userID, "task_id", taskID, "event", event, "from", current.CompletionStatus, "error", err)
		return nil, err
	}

	began := time.Now()
	updated, err := s.backend.ApplyTransition(ctx, ports.TransitionRequest{
		TaskID:         taskID,
		UserID:         userID,
		Event:          event,
		Reason:         reason,
		ExpectedStatus: current.CompletionStatus,
	})
	metrics.BackendLatencySeconds.WithLabelValues("apply_transition").Observe(time.Since(began).Seconds())
	if err != nil {
		s.logger.Warnw("timer_transition_rejected",
			"user_id", userID, "task_id", taskID, "event", event, "error", err)
		return nil, asRejected(taskID, event, err)
	}

	s.logger.Infow("timer_transition_ok",
		"user_id", userID, "task_id", taskID, "event", event,
		"from", current.CompletionStatus, "to", updated.CompletionStatus, "expected", to)

	switch {
	case event.StartsSession():
		s.beginSession(ctx, userID, updated)
	case event.EndsSession():
		s.endSession(ctx, userID, current, updated)
	}

	s.publish(ctx, &domain.TransitionRecord{
		TaskID:             taskID,
		UserID:             userID,
		Event:              event,
		FromStatus:         current.CompletionStatus,
		ToStatus:           updated.CompletionStatus,
		Reason:             reason,
		AccumulatedSeconds: updated.ActualDurationSeconds,
		CreatedAt:          s.now(),
	})
	return updated, nil
}

func (s *timerService) beginSession(ctx context.Context, userID string, task *domain.Task) {
	view, err := s.backend.GetActiveSession(ctx, userID)
	if err != nil || view == nil || view.TaskID != task.ID {
		if err != nil {
			s.logger.Warnw("timer_session_read_failed", "user_id", userID, "error", err)
		}
		view = &domain.ActiveSessionView{TaskID: task.ID, Accumulated: task.ActualDuration(), Task: task}
	}
	metrics.ActiveSessions.Inc()
	if _, err := s.tracker.Refresh(ctx, userID, view); err != nil {
		s.markStale(userID, true)
		s.logger.Errorw("timer_session_refresh_failed", "user_id", userID, "task_id", task.ID, "error", err)
	}
}

func (s *timerService) endSession(ctx context.Context, userID string, before, after *domain.Task) {
	if before.CompletionStatus == domain.StatusStarted {
		if err := s.tracker.Clear(ctx, userID); err != nil {
			s.markStale(userID, true)
			s.logger.Errorw("timer_session_clear_failed", "user_id", userID, "task_id", after.ID, "error", err)
		}
		metrics.ActiveSessions.Dec()
		if worked := after.ActualDurationSeconds - before.ActualDurationSeconds; worked > 0 {
			metrics.TrackedSecondsTotal.Add(float64(worked))
		}
	}
	s.bus.Publish(notify.NewClosePiPEvent(userID, after.ID))
}

func (s *timerService) publish(ctx context.Context, rec *domain.TransitionRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransition(ctx, rec); err != nil {
		metrics.PublishFailuresTotal.Inc()
		s.logger.Warnw("timer_transition_publish_failed", "task_id", rec.TaskID, "event", rec.Event, "error", err)
	}
}

// currentSession returns the tracked session. The tracker is re-read from
// the backend when it holds nothing for the user or when an earlier clear
// failed and its entry cannot be trusted.
func (s *timerService) currentSession(ctx context.Context, userID string) (*domain.ActiveSession, error) {
	if !s.isStale(userID) {
		cur, err := s.tracker.Current(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			return cur, nil
		}
	}
	return s.reconcile(ctx, userID)
}

// reconcile replaces the tracker entry with the backend's view of the
// user's running timer.
func (s *timerService) reconcile(ctx context.Context, userID string) (*domain.ActiveSession, error) {
	view, err := s.backend.GetActiveSession(ctx, userID)
	if err != nil {
		s.logger.Errorw("timer_session_read_failed", "user_id", userID, "error", err)
		return nil, err
	}
	cur, err := s.tracker.Refresh(ctx, userID, view)
	if err != nil {
		return nil, err
	}
	s.markStale(userID, false)
	return cur, nil
}

func (s *timerService) markStale(userID string, stale bool) {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	if stale {
		s.stale[userID] = struct{}{}
	} else {
		delete(s.stale, userID)
	}
}

func (s *timerService) isStale(userID string) bool {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	_, ok := s.stale[userID]
	return ok
}

func (s *timerService) getTask(ctx context.Context, taskID string) (*domain.Task, error) {
	began := time.Now()
	task, err := s.backend.GetTask(ctx, taskID)
	metrics.BackendLatencySeconds.WithLabelValues("get_task").Observe(time.Since(began).Seconds())
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, &domain.TaskNotFoundError{TaskID: taskID}
	}
	return task, nil
}

func (s *timerService) Session(ctx context.Context, userID string) (*ports.SessionSnapshot, error) {
	cur, err := s.currentSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(userID, cur), nil
}

func (s *timerService) RefreshSession(ctx context.Context, userID string) (*ports.SessionSnapshot, error) {
	unlock := s.lockKeys("user:" + userID)
	defer unlock()

	cur, err := s.reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("timer_session_refreshed", "user_id", userID, "running", cur != nil)
	return s.snapshot(userID, cur), nil
}

func (s *timerService) snapshot(userID string, cur *domain.ActiveSession) *ports.SessionSnapshot {
	return &ports.SessionSnapshot{
		Session: cur,
		Elapsed: s.tracker.Elapsed(cur),
		Surface: s.surfaces.Status(userID),
	}
}

// OpenFloatingSurface asks connected surfaces to show the running task.
func (s *timerService) OpenFloatingSurface(ctx context.Context, userID string) (*domain.ActiveSession, error) {
	cur, err := s.currentSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, domain.ErrNoActiveSession
	}
	if cur.Task == nil {
		task, err := s.getTask(ctx, cur.TaskID)
		if err != nil {
			return nil, err
		}
		cur.Task = task
	}
	s.bus.Publish(notify.NewOpenPiPEvent(cur))
	s.logger.Infow("timer_surface_open_requested", "user_id", userID, "task_id", cur.TaskID)
	return cur, nil
}

func (s *timerService) SetPinned(userID string, pinned bool) ports.SurfaceStatus {
	return s.surfaces.SetPinned(userID, pinned)
}

func (s *timerService) ListMyTasks(ctx context.Context, userID string, filter ports.TaskFilter) (*ports.TaskPage, error) {
	began := time.Now()
	page, err := s.backend.ListMyTasks(ctx, userID, filter)
	metrics.BackendLatencySeconds.WithLabelValues("list_my_tasks").Observe(time.Since(began).Seconds())
	return page, err
}

func (s *timerService) Timeline(ctx context.Context, taskID string, limit int) ([]domain.TransitionRecord, error) {
	if _, err := s.getTask(ctx, taskID); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []domain.TransitionRecord{}, nil
	}
	return s.timeline.ListByTask(ctx, taskID, limit)
}

// asRejected reports a backend failure as TransitionRejectedError unless it
// already carries a more specific domain error.
func asRejected(taskID string, event domain.Event, err error) error {
	var (
		rejected   *domain.TransitionRejectedError
		notFound   *domain.TaskNotFoundError
		invalid    *domain.InvalidTransitionError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &rejected), errors.As(err, &notFound),
		errors.As(err, &invalid), errors.As(err, &validation):
		return err
	}
	return &domain.TransitionRejectedError{TaskID: taskID, Event: event, Err: err}
}

func outcomeOf(err error) string {
	var (
		conflict   *domain.ConcurrentSessionConflictError
		invalid    *domain.InvalidTransitionError
		validation *domain.ValidationError
		rejected   *domain.TransitionRejectedError
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &conflict):
		return metrics.OutcomeConflict
	case errors.As(err, &invalid), errors.As(err, &validation):
		return metrics.OutcomeInvalid
	case errors.As(err, &rejected):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
