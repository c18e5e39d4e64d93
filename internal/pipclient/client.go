// Package pipclient is the terminal floating surface: a websocket client for
// the host's notifier bridge and a bubbletea view of the running timer.
package pipclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/auditsuite/tasktimer/internal/core/notify"
	"github.com/fasthttp/websocket"
)

type Options struct {
	URL        string
	UserID     string
	UserHeader string
	APIKey     string
	Timeout    time.Duration
}

// Client owns one websocket connection to /ws/pip.
type Client struct {
	conn   *websocket.Conn
	userID string
	frames chan notify.Frame

	writeMu sync.Mutex
	errMu   sync.Mutex
	err     error
}

func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("pipclient: user id is required")
	}
	header := opts.UserHeader
	if header == "" {
		header = "X-User-ID"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	h := http.Header{}
	h.Set(header, opts.UserID)
	if opts.APIKey != "" {
		h.Set("X-API-Key", opts.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, opts.URL, h)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("pipclient: dial %s: %s: %w", opts.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("pipclient: dial %s: %w", opts.URL, err)
	}

	c := &Client{conn: conn, userID: opts.UserID, frames: make(chan notify.Frame, 8)}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				c.setErr(err)
			}
			return
		}
		var f notify.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		c.frames <- f
	}
}

// Frames yields host frames until the connection ends.
func (c *Client) Frames() <-chan notify.Frame { return c.frames }

// Err reports why the frame stream ended, or nil after a normal close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.err = err
}

func (c *Client) SendLoading(loading bool) error {
	return c.send(notify.NewPiPLoadingStateEvent(c.userID, loading))
}

func (c *Client) SendClosed() error {
	return c.send(notify.NewPiPClosedEvent(c.userID))
}

func (c *Client) send(e notify.Event) error {
	data, err := notify.EncodeFrame(e)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
