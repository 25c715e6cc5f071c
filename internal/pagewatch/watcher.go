// Package pagewatch attaches the capture layer to one watched tab. It
// injects the embedded discovery script (full-tree scan, open-shadow-root
// piercing, mutation watching, decoy injection, capturing submit listener)
// and relays submit events from the page to the capture coordinator over a
// CDP binding.
package pagewatch

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"

	"github.com/gushwork/leadwatch/internal/browser"
	"github.com/gushwork/leadwatch/internal/capture"
	"github.com/gushwork/leadwatch/internal/identity"
)

//go:embed capture.js
var captureJS []byte

const bindingName = "__leadwatch_binding"

// Config for a Watcher.
type Config struct {
	// HoneypotName is the decoy field name injected into every form.
	HoneypotName string
	Logger       *slog.Logger
}

// Watcher wires one tab: injected JS on the page side, coordinator on the
// Go side.
type Watcher struct {
	tab      *browser.Tab
	coord    *capture.Coordinator
	provider *identity.Provider
	cfg      Config
	logger   *slog.Logger

	userAgent string
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a Watcher for the given tab.
func New(cfg Config, tab *browser.Tab, coord *capture.Coordinator, provider *identity.Provider) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{
		tab:      tab,
		coord:    coord,
		provider: provider,
		cfg:      cfg,
		logger:   cfg.Logger,
	}
}

// Start records the navigation, snapshots the fingerprint, injects the
// capture script, and begins relaying submit events.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(w.tab.Page); err != nil {
		w.logger.Warn("pagewatch: addBinding failed (may already exist)", "error", err)
	}
	if err := w.snapshotEnvironment(); err != nil {
		w.logger.Warn("pagewatch: environment snapshot failed", "error", err)
	}
	w.provider.TrackJourney(w.tab.PageURL)

	// The listener must be running before the capture script is injected,
	// and the user agent must be set before the listener starts.
	go w.listenBinding()

	cfgJSON, err := json.Marshal(map[string]string{"honeypot": w.cfg.HoneypotName})
	if err != nil {
		return fmt.Errorf("pagewatch: marshal config: %w", err)
	}
	if _, err := w.tab.Page.Eval(fmt.Sprintf("window.__leadwatch_cfg = %s;", cfgJSON)); err != nil {
		return fmt.Errorf("pagewatch: set config: %w", err)
	}
	if _, err := w.tab.Page.Eval(string(captureJS)); err != nil {
		return fmt.Errorf("pagewatch: inject capture script: %w", err)
	}

	w.logger.Info("pagewatch: watching", "url", w.tab.PageURL, "id", w.tab.PageID)
	return nil
}

// Stop detaches the watcher. The tab is owned by the caller.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

// snapshotEnvironment reads the fingerprint and user agent from the page.
// Pure property reads; nothing is written into the page.
func (w *Watcher) snapshotEnvironment() error {
	res, err := w.tab.Page.Eval(`() => ({
		res: String(screen.width || 0) + 'x' + String(screen.height || 0),
		lang: navigator.language || 'unknown',
		tz: (Intl.DateTimeFormat().resolvedOptions().timeZone) || 'unknown',
		cores: String(navigator.hardwareConcurrency || 'unknown'),
		mem: String(navigator.deviceMemory || 'unknown'),
		ua: navigator.userAgent || ''
	})`)
	if err != nil {
		return fmt.Errorf("pagewatch: read environment: %w", err)
	}

	var snap struct {
		identity.Fingerprint
		UA string `json:"ua"`
	}
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &snap); err != nil {
		return fmt.Errorf("pagewatch: decode environment: %w", err)
	}

	w.provider.SetFingerprint(snap.Fingerprint)
	w.userAgent = snap.UA
	return nil
}

// listenBinding relays messages from the injected script.
func (w *Watcher) listenBinding() {
	w.tab.Page.Context(w.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		w.handlePayload([]byte(e.Payload))
	})()
}

func (w *Watcher) handlePayload(payload []byte) {
	ev, err := parseEvent(payload)
	if err != nil {
		w.logger.Warn("pagewatch: bad page event", "error", err)
		return
	}

	switch ev.Kind {
	case "submit":
		w.coord.HandleSubmit(ev.submission(w.userAgent))
	case "ready":
		w.logger.Info("pagewatch: capture script active",
			"url", w.tab.PageURL, "forms", ev.Forms)
	case "shadow":
		w.logger.Debug("pagewatch: shadow root discovered", "url", w.tab.PageURL)
	default:
		w.logger.Debug("pagewatch: unknown event kind", "kind", ev.Kind)
	}
}
