package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/room4-2/voicerelay/config"
	"github.com/room4-2/voicerelay/realtime"
)

// DialFunc establishes the remote channel for a new session.
type DialFunc func(ctx context.Context) (realtime.Channel, error)

// Manager is the session registry: conversation id -> live relay session.
// Session metadata is mirrored to Redis when available for visibility across
// instances; the live handles stay in-process.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	redis    *redis.Client
	config   *config.Config
}

// NewManager creates a registry with a best-effort Redis connection.
func NewManager(cfg *config.Config) (*Manager, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Redis unavailable, continue memory-only.
		log.Printf("redis unavailable (%v), session metadata stays in memory", err)
		redisClient = nil
	}

	return &Manager{
		sessions: make(map[string]*Session),
		redis:    redisClient,
		config:   cfg,
	}, nil
}

// Lookup returns the live session for a conversation id, if any.
func (sm *Manager) Lookup(threadID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[threadID]
	return sess, ok
}

// CreateOrAttach returns the session for threadID, attaching the new client
// connection to an existing live session or dialing the remote side and
// creating a fresh one. The second result reports whether the session was
// created by this call.
func (sm *Manager) CreateOrAttach(ctx context.Context, threadID string, client ClientConn, dial DialFunc) (*Session, bool, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if existing, ok := sm.sessions[threadID]; ok && !existing.IsClosed() {
		existing.Attach(client)
		return existing, false, nil
	}

	if len(sm.sessions) >= sm.config.MaxSessions {
		return nil, false, ErrMaxSessions
	}

	remote, err := dial(ctx)
	if err != nil {
		return nil, false, err
	}

	sess := New(threadID, client, remote, sm.config.Voice, sm.config.TranscriptionModel)
	sm.storeSession(ctx, threadID, sess)
	return sess, true, nil
}

// storeSession saves a session to memory and mirrors metadata to Redis.
func (sm *Manager) storeSession(ctx context.Context, threadID string, sess *Session) {
	sm.sessions[threadID] = sess

	if sm.redis != nil {
		sm.redis.HSet(ctx, "session:"+threadID, map[string]interface{}{
			"created_at":    sess.CreatedAt.Format(time.RFC3339),
			"last_activity": sess.LastActivity().Format(time.RFC3339),
			"status":        "active",
		})
		sm.redis.SAdd(ctx, "active_sessions", threadID)
		sm.redis.Expire(ctx, "session:"+threadID, sm.config.SessionTimeout)
	}
}

// Evict closes and removes a session. Evicting an unknown id is a no-op.
func (sm *Manager) Evict(ctx context.Context, threadID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sess, ok := sm.sessions[threadID]
	if !ok {
		return nil
	}

	_ = sess.Close()
	delete(sm.sessions, threadID)

	if sm.redis != nil {
		sm.redis.Del(ctx, "session:"+threadID)
		sm.redis.SRem(ctx, "active_sessions", threadID)
	}
	return nil
}

// ActiveSessionCount returns the current session count.
func (sm *Manager) ActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions evicts sessions past the inactivity timeout.
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for id, sess := range sm.sessions {
		if now.Sub(sess.LastActivity()) > sm.config.SessionTimeout {
			log.Printf("[%s] evicting inactive session", id)
			_ = sess.Close()
			delete(sm.sessions, id)

			if sm.redis != nil {
				sm.redis.Del(ctx, "session:"+id)
				sm.redis.SRem(ctx, "active_sessions", id)
			}
		}
	}
}

// StartCleanupRoutine runs periodic inactivity cleanup until ctx ends.
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// EvictAll closes every session and releases the Redis connection.
func (sm *Manager) EvictAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, sess := range sm.sessions {
		_ = sess.Close()
		delete(sm.sessions, id)
	}

	if sm.redis != nil {
		sm.redis.Close()
	}
}
