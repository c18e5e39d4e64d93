package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/auditsuite/tasktimer/internal/core/notify"
	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/core/session"
	"github.com/auditsuite/tasktimer/internal/core/workflow"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/pkg/utils/duration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	tasks     map[string]*domain.Task
	running   map[string]string
	applied   []ports.TransitionRequest
	rejectErr error
	now       func() time.Time
	startedAt map[string]time.Time
}

func newFakeBackend(now func() time.Time, tasks ...domain.Task) *fakeBackend {
	b := &fakeBackend{
		tasks:     make(map[string]*domain.Task),
		running:   make(map[string]string),
		startedAt: make(map[string]time.Time),
		now:       now,
	}
	for i := range tasks {
		t := tasks[i]
		b.tasks[t.ID] = &t
		if t.CompletionStatus == domain.StatusStarted {
			b.running[t.AssigneeID] = t.ID
			b.startedAt[t.ID] = now()
		}
	}
	return b
}

func (b *fakeBackend) ListMyTasks(_ context.Context, userID string, _ ports.TaskFilter) (*ports.TaskPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	page := &ports.TaskPage{Page: 1, PageSize: 20}
	for _, t := range b.tasks {
		if t.AssigneeID == userID {
			page.Items = append(page.Items, *t)
		}
	}
	page.Total = int64(len(page.Items))
	return page, nil
}

func (b *fakeBackend) GetTask(_ context.Context, taskID string) (*domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[taskID]
	if !ok {
		return nil, &domain.TaskNotFoundError{TaskID: taskID}
	}
	cp := *t
	return &cp, nil
}

func (b *fakeBackend) GetActiveSession(_ context.Context, userID string) (*domain.ActiveSessionView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.running[userID]
	if !ok {
		return nil, nil
	}
	t := *b.tasks[id]
	return &domain.ActiveSessionView{
		TaskID:      id,
		Accumulated: t.ActualDuration() + b.now().Sub(b.startedAt[id]),
		Task:        &t,
	}, nil
}

func (b *fakeBackend) ApplyTransition(_ context.Context, req ports.TransitionRequest) (*domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = append(b.applied, req)
	if b.rejectErr != nil {
		return nil, b.rejectErr
	}
	t, ok := b.tasks[req.TaskID]
	if !ok {
		return nil, &domain.TaskNotFoundError{TaskID: req.TaskID}
	}
	to, err := workflow.Next(t, req.Event, req.Reason)
	if err != nil {
		return nil, err
	}
	if t.CompletionStatus == domain.StatusStarted && req.Event.EndsSession() {
		t.ActualDurationSeconds += int64(b.now().Sub(b.startedAt[t.ID]) / time.Second)
		delete(b.running, req.UserID)
	}
	if req.Event.StartsSession() {
		b.running[req.UserID] = t.ID
		b.startedAt[t.ID] = b.now()
	}
	t.CompletionStatus = to
	cp := *t
	return &cp, nil
}

func (b *fakeBackend) applyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.applied)
}

type fakeTimeline struct{ records []domain.TransitionRecord }

func (f *fakeTimeline) ListByTask(_ context.Context, taskID string, _ int) ([]domain.TransitionRecord, error) {
	var out []domain.TransitionRecord
	for _, r := range f.records {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []domain.TransitionRecord
	err     error
}

func (p *recordingPublisher) PublishTransition(_ context.Context, rec *domain.TransitionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, *rec)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type harness struct {
	svc       ports.TimerService
	backend   *fakeBackend
	bus       *notify.Bus
	publisher *recordingPublisher
	clock     *time.Time
}

func newHarness(t *testing.T, tasks ...domain.Task) *harness {
	t.Helper()
	return newHarnessWithStore(t, session.NewMemoryStore(), tasks...)
}

func newHarnessWithStore(t *testing.T, store ports.SessionStore, tasks ...domain.Task) *harness {
	t.Helper()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &now
	nowFn := func() time.Time { return *clock }

	backend := newFakeBackend(nowFn, tasks...)
	bus := notify.NewBus(nil)
	publisher := &recordingPublisher{}
	svc := NewTimerService(TimerServiceConfig{
		Backend:     backend,
		Timeline:    &fakeTimeline{},
		Tracker:     session.NewTracker(store, session.WithClock(nowFn)),
		Bus:         bus,
		Publisher:   publisher,
		EnableLocks: true,
		Now:         nowFn,
	})
	return &harness{svc: svc, backend: backend, bus: bus, publisher: publisher, clock: clock}
}

func (h *harness) advance(d time.Duration) { *h.clock = h.clock.Add(d) }

// flakyDeleteStore fails the next failDeletes calls to Delete.
type flakyDeleteStore struct {
	*session.MemoryStore
	failDeletes int
}

func (f *flakyDeleteStore) Delete(ctx context.Context, userID string) error {
	if f.failDeletes > 0 {
		f.failDeletes--
		return errors.New("store unavailable")
	}
	return f.MemoryStore.Delete(ctx, userID)
}

func trackedTask(id string, status domain.CompletionStatus) domain.Task {
	return domain.Task{ID: id, Title: id, AssigneeID: "u1", TimeTrackingRequired: true, CompletionStatus: status}
}

func TestStartCreatesSession(t *testing.T) {
	h := newHarness(t, trackedTask("T1", domain.StatusNotStarted))
	ctx := context.Background()

	task, err := h.svc.Start(ctx, "u1", "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, task.CompletionStatus)

	h.advance(90 * time.Second)
	snap, err := h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "T1", snap.Session.TaskID)
	assert.Equal(t, "00:01:30", duration.FormatElapsed(snap.Elapsed))

	require.Len(t, h.publisher.records, 1)
	assert.Equal(t, domain.StatusNotStarted, h.publisher.records[0].FromStatus)
	assert.Equal(t, domain.StatusStarted, h.publisher.records[0].ToStatus)
}

func TestStartWhileAnotherTaskRunsIsRejected(t *testing.T) {
	h := newHarness(t,
		trackedTask("T1", domain.StatusStarted),
		trackedTask("T2", domain.StatusNotStarted),
	)
	ctx := context.Background()

	_, err := h.svc.Start(ctx, "u1", "T2")
	var conflict *domain.ConcurrentSessionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "T1", conflict.RunningTaskID)
	assert.Equal(t, "To start a new task, you must hold the current task.", domain.UserMessage(err))

	assert.Zero(t, h.backend.applyCount())
	t1, _ := h.backend.GetTask(ctx, "T1")
	t2, _ := h.backend.GetTask(ctx, "T2")
	assert.Equal(t, domain.StatusStarted, t1.CompletionStatus)
	assert.Equal(t, domain.StatusNotStarted, t2.CompletionStatus)
	assert.Empty(t, h.publisher.records)
}

func TestResumeWhileAnotherTaskRunsIsRejected(t *testing.T) {
	h := newHarness(t,
		trackedTask("T1", domain.StatusStarted),
		trackedTask("T2", domain.StatusOnHold),
	)

	_, err := h.svc.Resume(context.Background(), "u1", "T2")
	var conflict *domain.ConcurrentSessionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "To resume a task, you must hold the current task.", domain.UserMessage(err))
	assert.Zero(t, h.backend.applyCount())
}

func TestHoldClosesSurfaceOnce(t *testing.T) {
	h := newHarness(t, trackedTask("T1", domain.StatusNotStarted))
	ctx := context.Background()

	var mu sync.Mutex
	var closed []string
	h.bus.Subscribe(notify.EventClosePiP, func(e notify.Event) {
		mu.Lock()
		defer mu.Unlock()
		closed = append(closed, e.(notify.ClosePiPEvent).TaskID)
	})

	_, err := h.svc.Start(ctx, "u1", "T1")
	require.NoError(t, err)
	h.advance(10 * time.Minute)

	task, err := h.svc.Hold(ctx, "u1", "T1", "blocked")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnHold, task.CompletionStatus)
	assert.Equal(t, int64(600), task.ActualDurationSeconds)

	snap, err := h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap.Session)
	assert.Zero(t, snap.Elapsed)

	mu.Lock()
	assert.Equal(t, []string{"T1"}, closed)
	mu.Unlock()
}

func TestReasonValidationNeverReachesBackend(t *testing.T) {
	h := newHarness(t, trackedTask("T1", domain.StatusStarted))
	ctx := context.Background()

	_, err := h.svc.Hold(ctx, "u1", "T1", "   ")
	assert.IsType(t, &domain.ValidationError{}, err)
	_, err = h.svc.Incomplete(ctx, "u1", "T1", "")
	assert.IsType(t, &domain.ValidationError{}, err)
	assert.Zero(t, h.backend.applyCount())

	snap, err := h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "T1", snap.Session.TaskID)
}

func TestInvalidTransitionNeverReachesBackend(t *testing.T) {
	h := newHarness(t, trackedTask("T1", domain.StatusOnHold))

	_, err := h.svc.Hold(context.Background(), "u1", "T1", "again")
	assert.IsType(t, &domain.InvalidTransitionError{}, err)
	assert.Zero(t, h.backend.applyCount())
}

func TestRejectedTransitionLeavesLocalStateUnchanged(t *testing.T) {
	h := newHarness(t, trackedTask("T1", domain.StatusStarted))
	ctx := context.Background()

	closes := 0
	h.bus.Subscribe(notify.EventClosePiP, func(notify.Event) { closes++ })

	_, err := h.svc.Session(ctx, "u1")
	require.NoError(t, err)

	h.backend.rejectErr = errors.New("upstream unavailable")
	_, err = h.svc.Complete(ctx, "u1", "T1")
	var rejected *domain.TransitionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Something went wrong. Please try again.", domain.UserMessage(err))

	snap, err := h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "T1", snap.Session.TaskID)
	assert.Zero(t, closes)
	assert.Empty(t, h.publisher.records)
}

func TestFinishRoutesUntrackedTask(t *testing.T) {
	reviewer := "r1"
	h := newHarness(t,
		domain.Task{ID: "T3", AssigneeID: "u1", ReviewRequired: true},
		domain.Task{ID: "T4", AssigneeID: "u1", ReviewRequired: true, ReviewerID: &reviewer},
		domain.Task{ID: "T5", AssigneeID: "u1", ReviewRequired: true, ReviewerID: &reviewer, IsPrivate: true},
	)
	ctx := context.Background()

	got, err := h.svc.Finish(ctx, "u1", "T3")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.CompletionStatus)

	got, err = h.svc.Finish(ctx, "u1", "T4")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusForReview, got.CompletionStatus)

	got, err = h.svc.Finish(ctx, "u1", "T5")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.CompletionStatus)
}

func TestFinishUnknownTask(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Finish(context.Background(), "u1", "nope")
	assert.Equal(t, "Task not found.", domain.UserMessage(err))
}

func TestConcurrentStartsAdmitOneSession(t *testing.T) {
	h := newHarness(t,
		trackedTask("T1", domain.StatusNotStarted),
		trackedTask("T2", domain.StatusNotStarted),
	)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"T1", "T2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = h.svc.Start(ctx, "u1", id)
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.IsType(t, &domain.ConcurrentSessionConflictError{}, err)
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, h.backend.applyCount())
}

func TestRefreshSessionPicksUpBackendState(t *testing.T) {
	h := newHarness(t, trackedTask("T1", domain.StatusNotStarted))
	ctx := context.Background()

	snap, err := h.svc.RefreshSession(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap.Session)

	h.backend.mu.Lock()
	h.backend.tasks["T1"].CompletionStatus = domain.StatusStarted
	h.backend.tasks["T1"].ActualDurationSeconds = 4530
	h.backend.running["u1"] = "T1"
	h.backend.startedAt["T1"] = *h.clock
	h.backend.mu.Unlock()

	snap, err = h.svc.RefreshSession(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "01:15:30", duration.FormatElapsed(snap.Session.Accumulated))

	h.advance(90 * time.Second)
	snap, err = h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "01:17:00", duration.FormatElapsed(snap.Elapsed))
}

func TestOpenFloatingSurface(t *testing.T) {
	h := newHarness(t, trackedTask("T1", domain.StatusNotStarted))
	ctx := context.Background()

	_, err := h.svc.OpenFloatingSurface(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	var opened []notify.OpenPiPEvent
	h.bus.Subscribe(notify.EventOpenPiP, func(e notify.Event) {
		opened = append(opened, e.(notify.OpenPiPEvent))
	})

	_, err = h.svc.Start(ctx, "u1", "T1")
	require.NoError(t, err)
	cur, err := h.svc.OpenFloatingSurface(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "T1", cur.TaskID)
	require.Len(t, opened, 1)
	assert.Equal(t, "u1", opened[0].UserID())
	require.NotNil(t, opened[0].Task)
	assert.Equal(t, "T1", opened[0].Task.ID)
}

func TestSurfaceStatusFollowsBusSignals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	status := h.svc.SetPinned("u1", true)
	assert.True(t, status.Pinned)

	h.bus.Publish(notify.NewPiPLoadingStateEvent("u1", true))
	snap, err := h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, snap.Surface.Loading)
	assert.True(t, snap.Surface.Pinned)

	h.bus.Publish(notify.NewPiPClosedEvent("u1"))
	snap, err = h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, snap.Surface.Pinned)
	assert.False(t, snap.Surface.Loading)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness(t, trackedTask("T1", domain.StatusNotStarted))
	h.publisher.err = errors.New("broker down")

	task, err := h.svc.Start(context.Background(), "u1", "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, task.CompletionStatus)
}

func TestFailedClearDoesNotLeaveSessionRunning(t *testing.T) {
	store := &flakyDeleteStore{MemoryStore: session.NewMemoryStore()}
	h := newHarnessWithStore(t,
		store,
		trackedTask("T1", domain.StatusNotStarted),
		trackedTask("T2", domain.StatusNotStarted),
	)
	ctx := context.Background()

	_, err := h.svc.Start(ctx, "u1", "T1")
	require.NoError(t, err)

	store.failDeletes = 1
	_, err = h.svc.Hold(ctx, "u1", "T1", "lunch")
	require.NoError(t, err)

	snap, err := h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap.Session)

	task, err := h.svc.Start(ctx, "u1", "T2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, task.CompletionStatus)

	snap, err = h.svc.Session(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "T2", snap.Session.TaskID)
}

func TestStartChecksBackendBeforeRefusing(t *testing.T) {
	store := session.NewMemoryStore()
	h := newHarnessWithStore(t,
		store,
		trackedTask("T1", domain.StatusOnHold),
		trackedTask("T2", domain.StatusNotStarted),
	)
	ctx := context.Background()

	// Left behind by another instance that held T1.
	require.NoError(t, store.Put(ctx, &domain.ActiveSession{
		UserID:    "u1",
		TaskID:    "T1",
		RunStatus: domain.StatusStarted,
	}))

	_, err := h.svc.Start(ctx, "u1", "T2")
	require.NoError(t, err)

	cur, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "T2", cur.TaskID)
}
