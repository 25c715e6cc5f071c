// Package identity supplies the per-session opaque identifier, the page
// fingerprint snapshot, and the bounded recent-navigation trail. All state
// lives in the injected session store and dies with the browsing session.
package identity

import (
	"encoding/json"
	"sync"

	"github.com/gushwork/leadwatch/internal/idgen"
	"github.com/gushwork/leadwatch/internal/store"
)

// Fingerprint is a read-only snapshot of the visitor's environment, taken
// once per page by the watcher. "unknown" marks properties the page could
// not report.
type Fingerprint struct {
	Resolution string `json:"res"`
	Language   string `json:"lang"`
	Timezone   string `json:"tz"`
	Cores      string `json:"cores"`
	Memory     string `json:"mem"`
}

// Config for a Provider. Key names come from the agent configuration so
// several deployments can share a storage substrate without collisions.
type Config struct {
	SessionKey string
	JourneyKey string
	MaxJourney int
	NewID      idgen.Generator
}

// Provider owns the session-scoped identity state for one watched tab.
// It is the only component that touches the session store.
type Provider struct {
	cfg     Config
	session store.Session

	mu sync.Mutex
	fp Fingerprint
}

// New creates a Provider over the given session store.
func New(cfg Config, session store.Session) *Provider {
	if cfg.NewID == nil {
		cfg.NewID = idgen.Session
	}
	if cfg.MaxJourney <= 0 {
		cfg.MaxJourney = 5
	}
	return &Provider{cfg: cfg, session: session}
}

// SessionID returns the stable per-tab identifier, generating and
// persisting it on first call.
func (p *Provider) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.session.Get(p.cfg.SessionKey); ok && id != "" {
		return id
	}
	id := p.cfg.NewID()
	p.session.Set(p.cfg.SessionKey, id)
	return id
}

// SetFingerprint stores the snapshot captured from the page.
func (p *Provider) SetFingerprint(fp Fingerprint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fp = fp
}

// Fingerprint returns the stored snapshot.
func (p *Provider) Fingerprint() Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fp
}

// TrackJourney appends pageURL to the navigation trail, suppressing
// consecutive duplicates and truncating from the front beyond the
// configured maximum. Returns the updated trail.
func (p *Provider) TrackJourney(pageURL string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	journey := p.loadJourney()
	if n := len(journey); n > 0 && journey[n-1] == pageURL {
		return journey
	}
	journey = append(journey, pageURL)
	if over := len(journey) - p.cfg.MaxJourney; over > 0 {
		journey = journey[over:]
	}

	data, err := json.Marshal(journey)
	if err == nil {
		p.session.Set(p.cfg.JourneyKey, string(data))
	}
	return journey
}

// Journey returns the current trail without modifying it.
func (p *Provider) Journey() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadJourney()
}

func (p *Provider) loadJourney() []string {
	raw, ok := p.session.Get(p.cfg.JourneyKey)
	if !ok || raw == "" {
		return nil
	}
	var journey []string
	if err := json.Unmarshal([]byte(raw), &journey); err != nil {
		// Corrupt trail: start over rather than fail a capture.
		return nil
	}
	return journey
}
