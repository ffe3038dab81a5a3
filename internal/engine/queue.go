package engine

import (
	"encoding/json"
	"sync"

	"github.com/roach88/chatsync/internal/model"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypePush is an inbound frame from the transport.
	EventTypePush EventType = iota + 1
	// EventTypeSnapshot is the result of a snapshot fetch.
	EventTypeSnapshot
	// EventTypeLocal is a user action.
	EventTypeLocal
	// EventTypeStatus is a connectivity change.
	EventTypeStatus
)

func (t EventType) String() string {
	switch t {
	case EventTypePush:
		return "push"
	case EventTypeSnapshot:
		return "snapshot"
	case EventTypeLocal:
		return "local"
	case EventTypeStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Status is a transport connectivity report.
type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Event is one unit of work for the Run loop. Exactly one of the payload
// fields is set, according to Type.
type Event struct {
	Type EventType

	// Frame is the raw inbound frame, a single-key JSON object.
	Frame json.RawMessage

	// Snapshot is the fetched snapshot; FetchErr is set instead on failure.
	Snapshot *model.Snapshot
	FetchErr error

	Action *Action
	Status *Status

	// reply receives the outcome of a local action, if non-nil.
	reply chan<- Result
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so transport and fetch goroutines never block on a
// slow Run loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Clear the slot so the backing array does not pin frames and snapshots.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
