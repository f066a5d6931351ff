package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/room4-2/voicerelay/config"
	"github.com/room4-2/voicerelay/messages"
	"github.com/room4-2/voicerelay/prompt"
	"github.com/room4-2/voicerelay/realtime"
	"github.com/room4-2/voicerelay/session"
)

// Server hosts the voice websocket endpoint.
type Server struct {
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	config         *config.Config
	catalog        *prompt.Catalog
}

// NewServer wires the websocket endpoint, health check, and upgrader.
func NewServer(cfg *config.Config, sessionManager *session.Manager, catalog *prompt.Catalog) *Server {
	s := &Server{
		sessionManager: sessionManager,
		config:         cfg,
		catalog:        catalog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    64 * 1024, // 64KB for audio chunks
			WriteBufferSize:   64 * 1024,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/voice", s.handleVoice)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
		// No ReadTimeout/WriteTimeout — they interfere with long-lived
		// websocket connections; the websocket layer sets its own deadlines.
	}

	return s
}

// Start begins listening for connections
func (s *Server) Start() error {
	log.Printf("voice relay listening on port %d", s.config.Port)
	log.Printf("voice endpoint: ws://localhost:%d/api/voice", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and evicts all sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("shutting down server...")
	s.sessionManager.EvictAll()
	return s.httpServer.Shutdown(ctx)
}

// voiceSettings is the payload of the second handshake frame. All fields are
// optional; turn-detection values fall back to the session defaults.
type voiceSettings struct {
	User      string   `json:"user"`
	Threshold *float64 `json:"threshold"`
	Silence   *int     `json:"silence"`
	Prefix    *int     `json:"prefix"`
}

// handleVoice runs one voice session: handshake (context frame, then
// settings frame), remote dial, session configuration, then the client read
// loop until disconnect or reattach.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	contextMsg, err := s.readEnvelope(conn)
	if err != nil {
		log.Printf("voice handshake: no context frame: %v", err)
		conn.Close()
		return
	}

	settingsMsg, err := s.readEnvelope(conn)
	if err != nil {
		log.Printf("voice handshake: no settings frame: %v", err)
		conn.Close()
		return
	}

	var settings voiceSettings
	if settingsMsg.Payload != "" {
		if err := sonic.UnmarshalString(settingsMsg.Payload, &settings); err != nil {
			s.rejectConn(conn, "invalid settings payload: "+err.Error())
			return
		}
	}

	instructions, err := s.catalog.Render(settings.User, contextMsg.Payload)
	if err != nil {
		s.rejectConn(conn, "failed to build session instructions")
		log.Printf("prompt render failed: %v", err)
		return
	}

	threadID := r.URL.Query().Get("thread")
	if threadID == "" {
		threadID = uuid.New().String()
	}

	dial := func(ctx context.Context) (realtime.Channel, error) {
		return realtime.Dial(ctx, realtime.Config{
			Endpoint:   s.config.RealtimeEndpoint,
			APIKey:     s.config.APIKey,
			Deployment: s.config.Deployment,
			APIVersion: s.config.APIVersion,
		})
	}

	sess, created, err := s.sessionManager.CreateOrAttach(r.Context(), threadID, conn, dial)
	if err != nil {
		s.rejectConn(conn, err.Error())
		log.Printf("[%s] session setup failed: %v", threadID, err)
		return
	}

	if created {
		log.Printf("[%s] new voice session", threadID)
		if err := sess.Configure(instructions, session.ConfigOptions{
			Threshold:         settings.Threshold,
			SilenceDurationMs: settings.Silence,
			PrefixPaddingMs:   settings.Prefix,
		}); err != nil {
			log.Printf("[%s] session configure failed: %v", threadID, err)
			_ = s.sessionManager.Evict(context.Background(), threadID)
			return
		}
		sess.Start()
	} else {
		log.Printf("[%s] reattached to existing session", threadID)
	}

	err = sess.ServeClient()
	if errors.Is(err, session.ErrReplaced) {
		// Another connection took over; nothing to clean up here.
		return
	}

	_ = s.sessionManager.Evict(context.Background(), threadID)
	log.Printf("[%s] voice session closed", threadID)
}

// readEnvelope reads and validates one handshake frame.
func (s *Server) readEnvelope(conn *websocket.Conn) (messages.Message, error) {
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return messages.Message{}, err
	}
	return messages.Parse(data)
}

// rejectConn reports a setup failure to the client and closes the socket.
func (s *Server) rejectConn(conn *websocket.Conn, reason string) {
	msg := messages.NewConsole(reason)
	if data, err := msg.Encode(); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	conn.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.sessionManager.ActiveSessionCount())
}
