package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	readLimit    = 8 * 1024 * 1024 // audio deltas can be large
	writeTimeout = 10 * time.Second
	closeTimeout = time.Second
)

// Channel is the remote side of a relay session.
type Channel interface {
	// Recv blocks until the next server event arrives.
	Recv() (*Event, error)
	// Send writes one or more client events as a contiguous batch. Batches
	// from concurrent callers never interleave.
	Send(events ...ClientEvent) error
	// Close shuts the channel down; safe to call more than once.
	Close() error
}

// Config holds what is needed to reach the realtime endpoint.
type Config struct {
	Endpoint   string // https://<resource>.openai.azure.com
	APIKey     string
	Deployment string
	APIVersion string
}

// Conn is a Channel over a websocket to the realtime API.
type Conn struct {
	ws *websocket.Conn

	// writeMu serializes sends so a multi-event batch (item create followed
	// by response create) stays contiguous on the wire.
	writeMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// Dial connects to the realtime endpoint and upgrades to a websocket.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/openai/realtime"
	q := u.Query()
	q.Set("api-version", cfg.APIVersion)
	q.Set("deployment", cfg.Deployment)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("api-key", cfg.APIKey)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}
	ws.SetReadLimit(readLimit)

	return &Conn{ws: ws}, nil
}

// Recv blocks until the next server event arrives or the connection ends.
func (c *Conn) Recv() (*Event, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, net.ErrClosed
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return ParseEvent(data)
}

// Send writes the given events in order as one contiguous batch.
func (c *Conn) Send(events ...ClientEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return net.ErrClosed
	}

	for _, ev := range events {
		data, err := sonic.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.ClientEventType(), err)
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("send %s: %w", ev.ClientEventType(), err)
		}
	}
	return nil
}

// Close sends a close frame best-effort and tears the websocket down.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout),
	)
	return c.ws.Close()
}

// IsCleanClose reports whether err is a normal end of the connection rather
// than a protocol or transport failure.
func IsCleanClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
