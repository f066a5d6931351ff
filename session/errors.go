package session

import "errors"

var (
	// ErrReplaced means the client connection was swapped out by Attach
	// while a read loop was still serving it.
	ErrReplaced = errors.New("client connection replaced")

	// ErrSessionClosed means the session has already been torn down.
	ErrSessionClosed = errors.New("session closed")

	// ErrMaxSessions means the registry refused a new session.
	ErrMaxSessions = errors.New("maximum sessions reached")
)
