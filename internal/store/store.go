// Package store defines the two storage ports the agent depends on —
// session-scoped key-value state and the durable delivery queue — plus
// in-memory implementations. The SQLite-backed queue lives in sqlite.go.
//
// Only the identity provider touches the session store and only the
// delivery engine touches the queue; keeping both behind ports makes the
// ambient state explicit and testable with fakes.
package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Session is session-scoped key-value storage. Implementations live for
// one browsing session (one watched tab) and vanish with it.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Entry is one queued, undelivered envelope.
type Entry struct {
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt int64           `json:"ts"`
}

// Queue is the bounded durable queue of undelivered envelopes. Append
// evicts the oldest entry when the capacity is reached; PopOldest removes
// the oldest entry and persists the shortened queue before returning it,
// so a crash between pop and send never leaves a duplicate behind.
type Queue interface {
	Append(ctx context.Context, e Entry) error
	PopOldest(ctx context.Context) (*Entry, error) // nil when empty
	Len(ctx context.Context) (int, error)
	Entries(ctx context.Context) ([]Entry, error)
}

// MemorySession is an in-memory Session. One instance per watched tab.
type MemorySession struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemorySession returns an empty session store.
func NewMemorySession() *MemorySession {
	return &MemorySession{m: make(map[string]string)}
}

func (s *MemorySession) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemorySession) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// MemoryQueue is an in-memory Queue for tests and opt-out runs.
type MemoryQueue struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewMemoryQueue returns a queue bounded at capacity entries.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{capacity: capacity}
}

func (q *MemoryQueue) Append(ctx context.Context, e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	if over := len(q.entries) - q.capacity; over > 0 {
		q.entries = q.entries[over:]
	}
	return nil
}

func (q *MemoryQueue) PopOldest(ctx context.Context) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, nil
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return &e, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

func (q *MemoryQueue) Entries(ctx context.Context) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out, nil
}
