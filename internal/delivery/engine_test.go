package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gushwork/leadwatch/internal/store"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:    endpoint,
		AuthHeader:  "x-gushwork-auth",
		AuthToken:   "secret",
		MaxAttempts: 5,
		BackoffUnit: time.Millisecond,
		DrainDelay:  time.Millisecond,
		Timeout:     2 * time.Second,
	}
}

func TestDeliver_SucceedsAfterTransientFailures(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	queue := store.NewMemoryQueue(10)
	e := New(testConfig(srv.URL), queue, nil)

	e.Deliver(context.Background(), []byte(`{"v":1}`))

	if got := requests.Load(); got != 3 {
		t.Fatalf("requests: got %d, want 3", got)
	}
	if n, _ := queue.Len(context.Background()); n != 0 {
		t.Fatalf("queue: got %d entries, want 0", n)
	}
	s := e.Stats()
	if s.Delivered != 1 || s.Queued != 0 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestDeliver_HeadersAndBody(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		if got := r.Header.Get("x-gushwork-auth"); got != "secret" {
			t.Errorf("auth header: got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("content type: got %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(testConfig(srv.URL), store.NewMemoryQueue(10), nil)
	e.Deliver(context.Background(), []byte(`{"version":"enterprise"}`))
	<-done
}

func TestDeliver_TransportExhaustionQueuesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close() // connection refused from here on

	queue := store.NewMemoryQueue(10)
	e := New(testConfig(endpoint), queue, nil)

	e.Deliver(context.Background(), []byte(`{"lead":"a"}`))

	entries, _ := queue.Entries(context.Background())
	if len(entries) != 1 {
		t.Fatalf("queue: got %d entries, want 1", len(entries))
	}
	if string(entries[0].Payload) != `{"lead":"a"}` {
		t.Fatalf("queued payload: %s", entries[0].Payload)
	}
	s := e.Stats()
	if s.Attempts != 5 || s.Queued != 1 || s.Delivered != 0 {
		t.Fatalf("stats: %+v", s)
	}
	if s.Beacons != 1 {
		t.Fatalf("beacons: got %d, want 1", s.Beacons)
	}
	e.Stop() // waits out the beacon goroutine
}

func TestDeliver_QueueStaysBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	queue := store.NewMemoryQueue(10)
	cfg := testConfig(endpoint)
	cfg.MaxAttempts = 1
	e := New(cfg, queue, nil)

	for i := 0; i < 25; i++ {
		e.Deliver(context.Background(), []byte(`{"n":"x"}`))
	}
	e.Stop()

	if n, _ := queue.Len(context.Background()); n != 10 {
		t.Fatalf("queue: got %d entries, want 10", n)
	}
}

func TestDeliver_SuccessDrainsQueue(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	queue := store.NewMemoryQueue(10)
	for _, p := range []string{`{"q":1}`, `{"q":2}`, `{"q":3}`} {
		queue.Append(ctx, store.Entry{Payload: []byte(p), EnqueuedAt: 1})
	}

	e := New(testConfig(srv.URL), queue, nil)
	e.Deliver(ctx, []byte(`{"fresh":true}`))

	// The fresh envelope plus all three queued ones: each success pulls
	// exactly one more entry until the queue is empty.
	if got := requests.Load(); got != 4 {
		t.Fatalf("requests: got %d, want 4", got)
	}
	if n, _ := queue.Len(ctx); n != 0 {
		t.Fatalf("queue: got %d entries, want 0", n)
	}
	if s := e.Stats(); s.Drained != 3 {
		t.Fatalf("drained: got %d, want 3", s.Drained)
	}
}

// trackingQueue records the queue length observed at PopOldest return, so
// the test can prove removal is persisted before the redelivery is sent.
type trackingQueue struct {
	*store.MemoryQueue
	lenAfterPop atomic.Int64
}

func (q *trackingQueue) PopOldest(ctx context.Context) (*store.Entry, error) {
	e, err := q.MemoryQueue.PopOldest(ctx)
	if e != nil {
		n, _ := q.MemoryQueue.Len(ctx)
		q.lenAfterPop.Store(int64(n))
	}
	return e, err
}

func TestDrainOne_RemovesBeforeSend(t *testing.T) {
	ctx := context.Background()
	q := &trackingQueue{MemoryQueue: store.NewMemoryQueue(10)}
	q.Append(ctx, store.Entry{Payload: []byte(`{"q":1}`), EnqueuedAt: 1})

	var seenLen atomic.Int64
	seenLen.Store(-1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenLen.Store(q.lenAfterPop.Load())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(testConfig(srv.URL), q, nil)
	e.DrainOne(ctx)

	if got := seenLen.Load(); got != 0 {
		t.Fatalf("queue length at send time: got %d, want 0", got)
	}
}

func TestDeliver_FinalAttemptStatusAccepted(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	queue := store.NewMemoryQueue(10)
	cfg := testConfig(srv.URL)
	cfg.MaxAttempts = 2
	e := New(cfg, queue, nil)

	e.Deliver(context.Background(), []byte(`{"lead":"b"}`))

	// The collector answered every time; the final non-success response is
	// accepted rather than queued, so the envelope is not duplicated later.
	if got := requests.Load(); got != 2 {
		t.Fatalf("requests: got %d, want 2", got)
	}
	if n, _ := queue.Len(context.Background()); n != 0 {
		t.Fatalf("queue: got %d entries, want 0", n)
	}
}

func TestStart_RecoveryDrain(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	queue := store.NewMemoryQueue(10)
	queue.Append(ctx, store.Entry{Payload: []byte(`{"stranded":true}`), EnqueuedAt: 1})

	e := New(testConfig(srv.URL), queue, nil)
	e.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for requests.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	e.Stop()

	if requests.Load() == 0 {
		t.Fatal("stranded envelope never redelivered")
	}
	if n, _ := queue.Len(ctx); n != 0 {
		t.Fatalf("queue: got %d entries, want 0", n)
	}
}
