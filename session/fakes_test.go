package session

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/room4-2/voicerelay/messages"
	"github.com/room4-2/voicerelay/realtime"
)

// fakeClientConn is an in-memory ClientConn.
type fakeClientConn struct {
	mu        sync.Mutex
	inbound   chan []byte
	written   [][]byte
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

func newFakeClientConn() *fakeClientConn {
	return &fakeClientConn{inbound: make(chan []byte, 16)}
}

func (c *fakeClientConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return 1, data, nil
}

func (c *fakeClientConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed conn")
	}
	c.written = append(c.written, data)
	return nil
}

func (c *fakeClientConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeClientConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.inbound) })
	return c.closeErr
}

func (c *fakeClientConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeRemote is an in-memory realtime.Channel recording sent batches.
type fakeRemote struct {
	mu       sync.Mutex
	sent     []realtime.ClientEvent
	batches  [][]realtime.ClientEvent
	closed   bool
	closeErr error
	sendErr  error
	inbound  chan *realtime.Event
	recvOnce sync.Once
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{inbound: make(chan *realtime.Event, 16)}
}

func (r *fakeRemote) Recv() (*realtime.Event, error) {
	ev, ok := <-r.inbound
	if !ok {
		return nil, io.EOF
	}
	return ev, nil
}

func (r *fakeRemote) Send(events ...realtime.ClientEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, events...)
	r.batches = append(r.batches, events)
	return nil
}

func (r *fakeRemote) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.recvOnce.Do(func() { close(r.inbound) })
	return r.closeErr
}

func (r *fakeRemote) sentEvents() []realtime.ClientEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.ClientEvent(nil), r.sent...)
}

func (r *fakeRemote) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func newTestSession() (*Session, *fakeClientConn, *fakeRemote) {
	client := newFakeClientConn()
	remote := newFakeRemote()
	sess := New("test-thread", client, remote, "sage", "whisper-1")
	return sess, client, remote
}

// drainMessages empties the session's write queue without running the pump.
func drainMessages(s *Session) []messages.Message {
	var out []messages.Message
	for {
		select {
		case m := <-s.writeChan:
			out = append(out, m)
		default:
			return out
		}
	}
}

func mustEvent(frame string) *realtime.Event {
	ev, err := realtime.ParseEvent([]byte(frame))
	if err != nil {
		panic(err)
	}
	return ev
}
