package session

import (
	"sync"

	"github.com/room4-2/voicerelay/realtime"
)

// ActionQueue holds conversation-item creates that must not reach the remote
// side while a response is in flight. The remote-read loop drains it on
// response.done; draining is atomic with clearing.
type ActionQueue struct {
	mu    sync.Mutex
	items []realtime.ClientEvent
}

// NewActionQueue creates an empty queue.
func NewActionQueue() *ActionQueue {
	return &ActionQueue{}
}

// Enqueue appends an action to the queue.
func (q *ActionQueue) Enqueue(ev realtime.ClientEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, ev)
}

// Drain returns all queued actions in insertion order and clears the queue.
func (q *ActionQueue) Drain() []realtime.ClientEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear empties the queue without returning the actions.
func (q *ActionQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
