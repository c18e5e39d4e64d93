package handlers

import (
	"context"
	"sync"

	"github.com/auditsuite/tasktimer/internal/core/notify"
	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/auditsuite/tasktimer/internal/infrastructure/metrics"
	httpmw "github.com/auditsuite/tasktimer/internal/transport/http/middleware"
	"github.com/gofiber/contrib/websocket"
)

const pipOutboxSize = 16

// PiPHandler bridges the notifier bus to floating surfaces in other
// processes. Host events for the user go out as frames; status frames from
// the surface are published back onto the bus. pip-closed only reaches the
// bus once the user's last surface is gone.
type PiPHandler struct {
	service ports.TimerService
	bus     *notify.Bus
	logger  *logger.Logger

	mu    sync.Mutex
	conns map[string]int
}

func NewPiPHandler(service ports.TimerService, bus *notify.Bus, logger *logger.Logger) *PiPHandler {
	return &PiPHandler{service: service, bus: bus, logger: logger, conns: make(map[string]int)}
}

func (h *PiPHandler) connected(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID]++
}

// disconnected returns the number of surfaces the user still has open.
func (h *PiPHandler) disconnected(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID]--
	n := h.conns[userID]
	if n <= 0 {
		delete(h.conns, userID)
	}
	return n
}

func (h *PiPHandler) others(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[userID] - 1
}

func (h *PiPHandler) Handle(c *websocket.Conn) {
	userID, _ := c.Locals(httpmw.LocalUserID).(string)
	if userID == "" {
		h.logger.Warnw("pip_missing_user")
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "missing user"))
		c.Close()
		return
	}

	h.connected(userID)
	metrics.SurfaceConnections.Inc()
	defer func() {
		if h.disconnected(userID) == 0 {
			// Drop the pinned flag even when the surface vanished without saying so.
			h.bus.Publish(notify.NewPiPClosedEvent(userID))
		}
		metrics.SurfaceConnections.Dec()
		h.logger.Infow("pip_disconnected", "user_id", userID)
	}()
	h.logger.Infow("pip_connected", "user_id", userID)

	outbox := make(chan notify.Event, pipOutboxSize)
	subID := h.bus.SubscribeAll(func(e notify.Event) {
		if e.UserID() != userID {
			return
		}
		switch e.EventType() {
		case notify.EventClosePiP, notify.EventOpenPiP:
		default:
			return
		}
		select {
		case outbox <- e:
		default:
			h.logger.Warnw("pip_outbox_full", "user_id", userID, "type", e.EventType())
		}
	})
	defer h.bus.Unsubscribe(subID)

	// A surface that connects while a timer runs starts out showing it.
	if snap, err := h.service.Session(context.Background(), userID); err == nil && snap != nil && snap.Session != nil {
		if !h.write(c, notify.NewOpenPiPEvent(snap.Session)) {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			ev, err := notify.DecodeSurfaceFrame(userID, data)
			if err != nil {
				h.logger.Warnw("pip_frame_rejected", "user_id", userID, "error", err)
				continue
			}
			if ev.EventType() == notify.EventPiPClosed && h.others(userID) > 0 {
				continue
			}
			h.bus.Publish(ev)
		}
	}()

	for {
		select {
		case <-done:
			return
		case e := <-outbox:
			if !h.write(c, e) {
				c.Close()
				<-done
				return
			}
		}
	}
}

func (h *PiPHandler) write(c *websocket.Conn, e notify.Event) bool {
	data, err := notify.EncodeFrame(e)
	if err != nil {
		h.logger.Errorw("pip_frame_encode_failed", "type", e.EventType(), "error", err)
		return true
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warnw("pip_write_failed", "type", e.EventType(), "error", err)
		return false
	}
	return true
}
