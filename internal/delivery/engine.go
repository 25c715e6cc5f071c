// Package delivery owns all network I/O for captured envelopes: bounded
// exponential-backoff retry against the collector, durable queueing on
// exhaustion, opportunistic queue draining, and a fire-and-forget beacon
// as the last-resort redundant send.
//
// Per envelope the lifecycle is PENDING → IN_FLIGHT → {DELIVERED | QUEUED},
// with QUEUED → IN_FLIGHT again on a later drain. Attempts are strictly
// sequential within one envelope; across envelopes there is no ordering.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gushwork/leadwatch/internal/store"
)

// Status is an envelope's delivery state.
type Status int

const (
	StatusPending Status = iota
	StatusInFlight
	StatusDelivered
	StatusQueued
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in_flight"
	case StatusDelivered:
		return "delivered"
	case StatusQueued:
		return "queued"
	}
	return "unknown"
}

// StatusError reports a non-success collector response. Distinguished from
// transport errors because the two exhaust differently: a collector that
// answered saw the envelope, a dead socket did not.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector status %d", e.Code)
}

// Config for an Engine.
type Config struct {
	// Endpoint is the collector URL envelopes are POSTed to.
	Endpoint string
	// AuthHeader is the shared-secret header name. Default: x-gushwork-auth.
	AuthHeader string
	// AuthToken is the shared-secret value.
	AuthToken string
	// MaxAttempts bounds the retry loop. Default: 5.
	MaxAttempts int
	// BackoffUnit scales the exponential delay: unit·2^attempt.
	// Default: 1s, giving 2^attempt seconds.
	BackoffUnit time.Duration
	// DrainDelay is the pause after Start before the recovery drain.
	// Default: 2s.
	DrainDelay time.Duration
	// Timeout bounds each transmission. Default: 10s.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.AuthHeader == "" {
		c.AuthHeader = "x-gushwork-auth"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = time.Second
	}
	if c.DrainDelay <= 0 {
		c.DrainDelay = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Engine transmits envelopes. Create one per agent; it is safe for
// concurrent Dispatch calls.
type Engine struct {
	cfg    Config
	queue  store.Queue
	client *http.Client
	logger *slog.Logger
	stats  Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine over the given durable queue.
func New(cfg Config, queue store.Queue, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	eng := &Engine{
		cfg:    cfg,
		queue:  queue,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	eng.ctx, eng.cancel = context.WithCancel(context.Background())
	return eng
}

// Start arms the engine and schedules the startup recovery drain, which
// picks up envelopes stranded by a previous run.
func (e *Engine) Start(ctx context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(e.cfg.DrainDelay):
		}
		e.DrainOne(e.ctx)
	}()
}

// Stop ends the retry timers and waits for every envelope to settle.
// There is no per-envelope abort: an envelope whose retries are cut short
// by shutdown lands in the durable queue, never on the floor.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Stats returns a snapshot of the delivery counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.snapshot()
}

// Dispatch hands an envelope to the engine and returns immediately.
// The envelope is owned by the engine from here on.
func (e *Engine) Dispatch(payload []byte) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Deliver(e.ctx, payload)
	}()
}

// Deliver runs one envelope's full lifecycle synchronously: attempt,
// back off, retry, and on exhaustion queue durably plus fire the beacon.
// Exported for callers that want the outcome on their own goroutine.
func (e *Engine) Deliver(ctx context.Context, payload []byte) {
	for attempt := 1; ; attempt++ {
		e.stats.attempts.Add(1)
		e.logger.Debug("delivery: attempt",
			"attempt", attempt, "max", e.cfg.MaxAttempts, "bytes", len(payload))

		err := e.post(ctx, payload)
		if err == nil {
			e.stats.delivered.Add(1)
			e.logger.Info("delivery: delivered", "attempt", attempt)
			e.DrainOne(ctx)
			return
		}

		final := attempt >= e.cfg.MaxAttempts

		var statusErr *StatusError
		if final && errors.As(err, &statusErr) {
			// The collector answered. A non-success status on the final
			// attempt is accepted rather than queued: the envelope reached
			// the other side once, re-sending risks a duplicate lead.
			e.stats.delivered.Add(1)
			e.logger.Warn("delivery: final attempt got non-success status, accepting",
				"status", statusErr.Code)
			e.DrainOne(ctx)
			return
		}

		if final || ctx.Err() != nil {
			e.exhaust(ctx, payload, err)
			return
		}

		wait := e.cfg.BackoffUnit * (1 << uint(attempt))
		e.stats.retried.Add(1)
		e.logger.Warn("delivery: attempt failed, backing off",
			"attempt", attempt, "backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			e.exhaust(ctx, payload, ctx.Err())
			return
		case <-time.After(wait):
		}
	}
}

// DrainOne pops the oldest queued envelope, if any, and redelivers it
// fresh. The queue persists the removal before the transmission is issued,
// so a crash mid-drain leaves at most one outcome ambiguous, never a
// duplicate queue entry. One drain per successful delivery bounds burst
// traffic; each redelivery that succeeds pulls the next entry itself.
func (e *Engine) DrainOne(ctx context.Context) {
	entry, err := e.queue.PopOldest(ctx)
	if err != nil {
		e.logger.Error("delivery: drain pop failed", "error", err)
		return
	}
	if entry == nil {
		return
	}
	e.stats.drained.Add(1)
	e.logger.Info("delivery: draining queued envelope", "enqueued_at", entry.EnqueuedAt)
	e.Deliver(ctx, entry.Payload)
}

// exhaust parks the envelope in the durable queue and fires the redundant
// beacon. The beacon does not change the envelope's queued status.
func (e *Engine) exhaust(ctx context.Context, payload []byte, cause error) {
	e.stats.queued.Add(1)
	e.logger.Error("delivery: retries exhausted, queueing", "error", cause)

	// The append must survive caller cancellation: the queue is the only
	// persistent record of an undelivered envelope.
	entry := store.Entry{Payload: payload, EnqueuedAt: time.Now().UnixMilli()}
	if err := e.queue.Append(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Error("delivery: queue append failed", "error", err)
	}

	e.beacon(payload)
}

func (e *Engine) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("delivery: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(e.cfg.AuthHeader, e.cfg.AuthToken)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: post: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{Code: resp.StatusCode}
}
