package session

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/voicerelay/messages"
	"github.com/room4-2/voicerelay/realtime"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
)

// State tracks where a session is in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateConfigured
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// ClientConn is the client-side channel handle. *websocket.Conn satisfies it;
// tests substitute fakes.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session relays one live conversation between a client connection and the
// remote realtime model. It owns exactly one handle to each side, the
// deferred-action queue, and the response-in-flight flag.
type Session struct {
	ID        string
	CreatedAt time.Time

	voice              string
	transcriptionModel string

	mu           sync.RWMutex
	client       ClientConn
	remote       realtime.Channel
	lastActivity time.Time
	state        State
	closed       bool

	writeChan chan messages.Message
	CloseChan chan struct{}
	startOnce sync.Once

	// responseActive is written only by the remote-read loop (see dispatch);
	// it marks a model response cycle as in progress.
	responseActive bool
	pending        *ActionQueue
}

// New creates a session owning the given channel handles.
func New(id string, client ClientConn, remote realtime.Channel, voice, transcriptionModel string) *Session {
	return &Session{
		ID:                 id,
		CreatedAt:          time.Now(),
		voice:              voice,
		transcriptionModel: transcriptionModel,
		client:             client,
		remote:             remote,
		lastActivity:       time.Now(),
		state:              StateIdle,
		writeChan:          make(chan messages.Message, writeBufferSize),
		CloseChan:          make(chan struct{}),
		pending:            NewActionQueue(),
	}
}

// Start launches the write pump and the remote-read loop. Safe to call more
// than once; only the first call has effect.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.setState(StateActive)
		go s.writePump()
		go s.receiveRemote()
	})
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// IsClosed reports whether Close has run.
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// LastActivity returns the time of the last client or remote traffic.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) clientConn() ClientConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Session) remoteChannel() realtime.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remote
}

// Attach atomically swaps in a new client connection, closing the one it
// replaces. The read loop serving the old connection notices the swap and
// abandons the connection without tearing the session down.
func (s *Session) Attach(conn ClientConn) {
	s.mu.Lock()
	old := s.client
	s.client = conn
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if old != nil && old != conn {
		if err := old.Close(); err != nil {
			log.Printf("[%s] closing replaced client conn: %v", s.ID, err)
		}
	}
}

// queueMessage hands a message to the write pump without blocking.
func (s *Session) queueMessage(msg messages.Message) {
	if s.IsClosed() {
		return
	}
	select {
	case s.writeChan <- msg:
		s.touch()
	default:
		// Queue full; drop rather than stall the loops.
		log.Printf("[%s] client write queue full, dropping %s message", s.ID, msg.Kind)
	}
}

// writePump is the single writer on the client connection.
func (s *Session) writePump() {
	for {
		select {
		case <-s.CloseChan:
			return
		case msg := <-s.writeChan:
			s.writeClient(msg)
			// Drain whatever queued up behind it.
			n := len(s.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg := <-s.writeChan:
					s.writeClient(msg)
				default:
				}
			}
		}
	}
}

func (s *Session) writeClient(msg messages.Message) {
	conn := s.clientConn()
	if conn == nil {
		return
	}
	data, err := msg.Encode()
	if err != nil {
		log.Printf("[%s] encode %s message: %v", s.ID, msg.Kind, err)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil && !s.IsClosed() {
		// The conn may be mid-swap during Attach; the pump keeps running
		// until the session itself closes.
		log.Printf("[%s] client write failed: %v", s.ID, err)
	}
}

// sendRemote forwards events upstream as one contiguous batch. A missing
// remote channel surfaces to the client as a console diagnostic.
func (s *Session) sendRemote(events ...realtime.ClientEvent) {
	remote := s.remoteChannel()
	if remote == nil {
		s.queueMessage(messages.NewConsole("voice session is not connected"))
		return
	}
	if err := remote.Send(events...); err != nil {
		log.Printf("[%s] remote send failed: %v", s.ID, err)
	}
}

// receiveRemote is the remote-read loop. Any receive error, clean or not,
// ends remote relaying for this session; there is no retry at this layer.
func (s *Session) receiveRemote() {
	defer s.dropRemote()

	for {
		if s.IsClosed() {
			return
		}
		remote := s.remoteChannel()
		if remote == nil {
			return
		}

		ev, err := remote.Recv()
		if err != nil {
			if realtime.IsCleanClose(err) {
				log.Printf("[%s] remote disconnected", s.ID)
			} else if !s.IsClosed() {
				log.Printf("[%s] remote receive error: %v", s.ID, err)
			}
			return
		}

		s.touch()
		s.dispatch(ev)
	}
}

// dropRemote releases the remote channel handle after the remote-read loop
// ends, so later sends degrade to client diagnostics instead of panics.
func (s *Session) dropRemote() {
	s.mu.Lock()
	remote := s.remote
	s.remote = nil
	s.mu.Unlock()

	if remote != nil {
		if err := remote.Close(); err != nil {
			log.Printf("[%s] closing remote channel: %v", s.ID, err)
		}
	}
}

// ServeClient is the client-read loop for the currently attached connection.
// It returns ErrReplaced when Attach swapped the connection out underneath
// it, and the read error otherwise. It does not tear the session down;
// teardown is the registry's explicit Close.
func (s *Session) ServeClient() error {
	for {
		conn := s.clientConn()
		if conn == nil || s.IsClosed() {
			return ErrSessionClosed
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.clientConn() != conn {
				return ErrReplaced
			}
			if !s.IsClosed() {
				log.Printf("[%s] client disconnected: %v", s.ID, err)
			}
			return err
		}

		s.touch()

		m, perr := messages.Parse(data)
		if perr != nil {
			s.queueMessage(messages.NewConsole(perr.Error()))
			continue
		}
		s.handleCommand(m)
	}
}

// Close releases both channel handles. Idempotent; close-time errors are
// swallowed and logged. References are cleared unconditionally.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = StateClosing
	client := s.client
	remote := s.remote
	s.client = nil
	s.remote = nil
	s.mu.Unlock()

	close(s.CloseChan)

	if client != nil {
		if err := client.Close(); err != nil {
			log.Printf("[%s] closing client conn: %v", s.ID, err)
		}
	}
	if remote != nil {
		if err := remote.Close(); err != nil {
			log.Printf("[%s] closing remote channel: %v", s.ID, err)
		}
	}

	s.pending.Clear()
	s.setState(StateClosed)
	return nil
}
