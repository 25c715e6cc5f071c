package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func entry(i int) Entry {
	return Entry{
		Payload:    []byte(fmt.Sprintf(`{"n":%d}`, i)),
		EnqueuedAt: int64(1000 + i),
	}
}

// queueFactories lets every queue invariant run against both backends.
func queueFactories(t *testing.T) map[string]func(capacity int) Queue {
	t.Helper()
	return map[string]func(capacity int) Queue{
		"memory": func(capacity int) Queue {
			return NewMemoryQueue(capacity)
		},
		"sqlite": func(capacity int) Queue {
			q, err := OpenSQLiteQueue(filepath.Join(t.TempDir(), "queue.db"), capacity)
			if err != nil {
				t.Fatalf("open sqlite queue: %v", err)
			}
			t.Cleanup(func() { q.Close() })
			return q
		},
	}
}

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	for name, newQueue := range queueFactories(t) {
		t.Run(name, func(t *testing.T) {
			q := newQueue(10)
			for i := 0; i < 3; i++ {
				if err := q.Append(ctx, entry(i)); err != nil {
					t.Fatalf("append %d: %v", i, err)
				}
			}
			for i := 0; i < 3; i++ {
				e, err := q.PopOldest(ctx)
				if err != nil {
					t.Fatalf("pop %d: %v", i, err)
				}
				if e == nil {
					t.Fatalf("pop %d: queue empty early", i)
				}
				if want := fmt.Sprintf(`{"n":%d}`, i); string(e.Payload) != want {
					t.Fatalf("pop %d: got %s, want %s", i, e.Payload, want)
				}
			}
			e, err := q.PopOldest(ctx)
			if err != nil {
				t.Fatalf("pop empty: %v", err)
			}
			if e != nil {
				t.Fatalf("pop empty: got %s, want nil", e.Payload)
			}
		})
	}
}

func TestQueue_CapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	for name, newQueue := range queueFactories(t) {
		t.Run(name, func(t *testing.T) {
			q := newQueue(10)
			for i := 0; i < 25; i++ {
				if err := q.Append(ctx, entry(i)); err != nil {
					t.Fatalf("append %d: %v", i, err)
				}
				n, err := q.Len(ctx)
				if err != nil {
					t.Fatalf("len: %v", err)
				}
				if n > 10 {
					t.Fatalf("after append %d: len %d exceeds capacity", i, n)
				}
			}

			entries, err := q.Entries(ctx)
			if err != nil {
				t.Fatalf("entries: %v", err)
			}
			if len(entries) != 10 {
				t.Fatalf("got %d entries, want 10", len(entries))
			}
			// Oldest evicted first: survivors are 15..24.
			if want := `{"n":15}`; string(entries[0].Payload) != want {
				t.Fatalf("oldest survivor: got %s, want %s", entries[0].Payload, want)
			}
			if want := `{"n":24}`; string(entries[9].Payload) != want {
				t.Fatalf("newest: got %s, want %s", entries[9].Payload, want)
			}
		})
	}
}

func TestQueue_PopPersistsRemoval(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	q, err := OpenSQLiteQueue(path, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := q.Append(ctx, entry(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := q.PopOldest(ctx); err != nil {
		t.Fatalf("pop: %v", err)
	}
	q.Close()

	// Reopen: the popped entry must be gone even though its delivery
	// outcome was never recorded.
	q2, err := OpenSQLiteQueue(path, 10)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer q2.Close()
	n, err := q2.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Fatalf("after reopen: len %d, want 1", n)
	}
	e, err := q2.PopOldest(ctx)
	if err != nil || e == nil {
		t.Fatalf("pop after reopen: %v, %v", e, err)
	}
	if want := `{"n":1}`; string(e.Payload) != want {
		t.Fatalf("survivor: got %s, want %s", e.Payload, want)
	}
}

func TestMemorySession(t *testing.T) {
	s := NewMemorySession()
	if _, ok := s.Get("missing"); ok {
		t.Fatal("missing key reported present")
	}
	s.Set("sid", "sess_abc")
	v, ok := s.Get("sid")
	if !ok || v != "sess_abc" {
		t.Fatalf("got %q/%v, want sess_abc/true", v, ok)
	}
}
