package notify

import (
	"sync"

	"github.com/auditsuite/tasktimer/internal/core/ports"
)

// SurfaceState follows the status signals floating surfaces send back, so
// the host can disable its open affordance while one is loading and drop
// the pinned flag once it closes.
type SurfaceState struct {
	mu     sync.RWMutex
	status map[string]ports.SurfaceStatus
	subs   []string
	bus    *Bus
}

// NewSurfaceState subscribes to the bus. Call Close to detach.
func NewSurfaceState(bus *Bus) *SurfaceState {
	s := &SurfaceState{status: make(map[string]ports.SurfaceStatus), bus: bus}
	s.subs = append(s.subs,
		bus.Subscribe(EventPiPLoadingState, s.onLoading),
		bus.Subscribe(EventPiPClosed, s.onClosed),
	)
	return s
}

func (s *SurfaceState) onLoading(e Event) {
	ev, ok := e.(PiPLoadingStateEvent)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[ev.UserID()]
	st.Loading = ev.IsLoading
	s.status[ev.UserID()] = st
}

func (s *SurfaceState) onClosed(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.status, e.UserID())
}

func (s *SurfaceState) Status(userID string) ports.SurfaceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[userID]
}

func (s *SurfaceState) SetPinned(userID string, pinned bool) ports.SurfaceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[userID]
	st.Pinned = pinned
	s.status[userID] = st
	return st
}

func (s *SurfaceState) Close() {
	for _, id := range s.subs {
		s.bus.Unsubscribe(id)
	}
	s.subs = nil
}
