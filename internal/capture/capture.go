// Package capture turns watcher submissions into Capture Envelopes. It
// enforces per-form re-entrancy suppression, composes the envelope from
// the normalizer and identity provider, and hands it to delivery without
// awaiting the outcome.
package capture

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gushwork/leadwatch/internal/extract"
	"github.com/gushwork/leadwatch/internal/identity"
)

// Version tags the envelope format.
const Version = "enterprise"

// Submission is one captured submit event as reported by the page watcher.
type Submission struct {
	// FormToken identifies the originating form within its page for the
	// life of the tab. Stable across repeated submissions of one form.
	FormToken string
	// Fields are the submitted (name, value) pairs in submission order.
	Fields []extract.Field
	// SourceURL is the page address at capture time.
	SourceURL string
	// Referrer is the document referrer; empty becomes "direct".
	Referrer string
	// UserAgent is the page's user agent string.
	UserAgent string
}

// Meta is the static and per-capture metadata block of an envelope.
type Meta struct {
	ClientID     string `json:"clientId"`
	CustomerName string `json:"customerName"`
	SourceURL    string `json:"sourceUrl"`
	Referrer     string `json:"referrer"`
	UserAgent    string `json:"userAgent"`
	Timestamp    string `json:"timestamp"`
}

// Identity is the envelope's session block.
type Identity struct {
	SessionID   string               `json:"sessionId"`
	Fingerprint identity.Fingerprint `json:"fingerprint"`
}

// Envelope is the complete record of one captured form submission.
// Immutable after creation; owned solely by the delivery engine once
// dispatched.
type Envelope struct {
	Data       *extract.Raw       `json:"data"`
	Normalized extract.Normalized `json:"normalized"`
	Meta       Meta               `json:"meta"`
	Identity   Identity           `json:"identity"`
	Journey    []string           `json:"journey"`
	Version    string             `json:"version"`
}

// Dispatcher receives serialized envelopes. Satisfied by delivery.Engine.
type Dispatcher interface {
	Dispatch(payload []byte)
}

// Config for a Coordinator.
type Config struct {
	ClientID     string
	CustomerName string
	// DebounceWindow is the per-form suppression window. Default: 500ms.
	DebounceWindow time.Duration
	// Rules is the normalization rule table.
	Rules []extract.Rule
	// Now is the clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// Coordinator is the submit handler for one watched tab.
type Coordinator struct {
	cfg      Config
	identity *identity.Provider
	engine   Dispatcher
	logger   *slog.Logger

	// recent is the re-entrancy side-table, keyed by form token rather
	// than stamped onto any DOM state. Entries self-expire on access.
	mu     sync.Mutex
	recent map[string]time.Time
}

// New creates a Coordinator.
func New(cfg Config, provider *identity.Provider, engine Dispatcher, logger *slog.Logger) *Coordinator {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 500 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		identity: provider,
		engine:   engine,
		logger:   logger,
		recent:   make(map[string]time.Time),
	}
}

// HandleSubmit processes one submit event. Duplicate submissions of the
// same form inside the debounce window are dropped silently; a second
// legitimate submission after the window is processed normally. Returns
// the envelope it dispatched, or nil when the event was suppressed.
func (c *Coordinator) HandleSubmit(sub Submission) *Envelope {
	if sub.FormToken == "" {
		return nil
	}
	if !c.admit(sub.FormToken) {
		c.logger.Debug("capture: duplicate submission suppressed", "form", sub.FormToken)
		return nil
	}

	env := c.buildEnvelope(sub)
	payload, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("capture: marshal envelope", "error", err)
		return nil
	}

	c.logger.Info("capture: envelope dispatched",
		"form", sub.FormToken,
		"fields", env.Data.Len(),
		"bot", env.Normalized.IsBot)

	c.engine.Dispatch(payload)
	return env
}

func (c *Coordinator) buildEnvelope(sub Submission) *Envelope {
	fp := c.identity.Fingerprint()
	region := extract.Region{Timezone: fp.Timezone, Language: fp.Language}
	res := extract.Extract(sub.Fields, c.cfg.Rules, region)

	referrer := sub.Referrer
	if referrer == "" {
		referrer = "direct"
	}

	return &Envelope{
		Data:       res.Raw,
		Normalized: res.Normalized,
		Meta: Meta{
			ClientID:     c.cfg.ClientID,
			CustomerName: c.cfg.CustomerName,
			SourceURL:    sub.SourceURL,
			Referrer:     referrer,
			UserAgent:    sub.UserAgent,
			Timestamp:    c.cfg.Now().UTC().Format(time.RFC3339Nano),
		},
		Identity: Identity{
			SessionID:   c.identity.SessionID(),
			Fingerprint: fp,
		},
		Journey: c.identity.TrackJourney(sub.SourceURL),
		Version: Version,
	}
}

// admit consults and updates the re-entrancy table. True means the
// submission proceeds; false means it falls inside the window.
func (c *Coordinator) admit(formToken string) bool {
	now := c.cfg.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.recent[formToken]; ok && now.Sub(last) < c.cfg.DebounceWindow {
		return false
	}
	c.recent[formToken] = now

	// Sweep expired entries so the table tracks live forms, not history.
	if len(c.recent) > 64 {
		for tok, at := range c.recent {
			if now.Sub(at) >= c.cfg.DebounceWindow {
				delete(c.recent, tok)
			}
		}
	}
	return true
}
