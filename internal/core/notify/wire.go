package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/auditsuite/tasktimer/internal/domain"
)

// Frame is the JSON message exchanged with a surface in another process.
type Frame struct {
	Type               string       `json:"type"`
	TaskID             string       `json:"task_id,omitempty"`
	Task               *domain.Task `json:"task,omitempty"`
	AccumulatedSeconds int64        `json:"accumulated_seconds,omitempty"`
	LastFetchedAt      *time.Time   `json:"last_fetched_at,omitempty"`
	IsLoading          *bool        `json:"is_loading,omitempty"`
	SentAt             time.Time    `json:"sent_at"`
}

// EncodeFrame serialises an event for the wire.
func EncodeFrame(e Event) ([]byte, error) {
	f := Frame{Type: e.EventType(), SentAt: e.Timestamp()}
	switch ev := e.(type) {
	case ClosePiPEvent:
		f.TaskID = ev.TaskID
	case OpenPiPEvent:
		f.Task = ev.Task
		if ev.Task != nil {
			f.TaskID = ev.Task.ID
		}
		f.AccumulatedSeconds = int64(ev.Accumulated / time.Second)
		fetched := ev.LastFetchedAt
		f.LastFetchedAt = &fetched
	case PiPLoadingStateEvent:
		loading := ev.IsLoading
		f.IsLoading = &loading
	case PiPClosedEvent:
	default:
		return nil, fmt.Errorf("notify: cannot encode %q", e.EventType())
	}
	return json.Marshal(f)
}

// DecodeSurfaceFrame parses a frame sent by a surface. Only the status
// signals a surface is allowed to raise are accepted.
func DecodeSurfaceFrame(userID string, data []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("notify: decode frame: %w", err)
	}
	switch f.Type {
	case EventPiPLoadingState:
		if f.IsLoading == nil {
			return nil, fmt.Errorf("notify: %s without is_loading", f.Type)
		}
		return NewPiPLoadingStateEvent(userID, *f.IsLoading), nil
	case EventPiPClosed:
		return NewPiPClosedEvent(userID), nil
	default:
		return nil, fmt.Errorf("notify: unexpected frame %q from surface", f.Type)
	}
}
