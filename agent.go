// Package leadwatch captures user-initiated form submissions on live web
// pages and forwards them to a remote collector with resilient delivery.
//
// The agent orchestrates Chrome headless as a disposable component: every
// configured page gets a tab, an injected discovery script that finds all
// submittable forms (static, late-added, or inside open shadow roots),
// and a capture pipeline that normalizes submitted fields, wraps them in
// a versioned envelope, and hands them to the delivery engine. Delivery
// retries with exponential backoff, parks exhausted envelopes in a
// bounded durable queue, and drains the queue opportunistically.
package leadwatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gushwork/leadwatch/internal/admin"
	"github.com/gushwork/leadwatch/internal/browser"
	"github.com/gushwork/leadwatch/internal/capture"
	"github.com/gushwork/leadwatch/internal/config"
	"github.com/gushwork/leadwatch/internal/delivery"
	"github.com/gushwork/leadwatch/internal/extract"
	"github.com/gushwork/leadwatch/internal/identity"
	"github.com/gushwork/leadwatch/internal/idgen"
	"github.com/gushwork/leadwatch/internal/pagewatch"
	"github.com/gushwork/leadwatch/internal/store"
)

// Agent is the top-level orchestrator. Create one per leadwatch instance.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	mgr    *browser.Manager
	engine *delivery.Engine
	queue  store.Queue
	closeQ func() error
	adminS *admin.Server

	mu       sync.Mutex
	watchers map[string]*pagewatch.Watcher
	tabs     map[string]*browser.Tab
	pages    []string
}

// New creates an Agent from configuration.
func New(cfg *Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		cfg:    cfg,
		logger: logger,
		mgr: browser.NewManager(browser.Config{
			RemoteURL: cfg.Browser.Remote,
			Headful:   cfg.Browser.Headful,
			Logger:    logger,
		}),
		watchers: make(map[string]*pagewatch.Watcher),
		tabs:     make(map[string]*browser.Tab),
	}
}

// Start opens the durable queue, arms the delivery engine (including the
// startup recovery drain), launches the browser, and begins watching all
// configured pages.
func (a *Agent) Start(ctx context.Context) error {
	q, err := store.OpenSQLiteQueue(a.cfg.Delivery.QueuePath, a.cfg.Delivery.QueueCapacity)
	if err != nil {
		return fmt.Errorf("leadwatch: open queue: %w", err)
	}
	a.queue = q
	a.closeQ = q.Close

	a.engine = delivery.New(delivery.Config{
		Endpoint:    a.cfg.Collector.URL,
		AuthHeader:  a.cfg.Collector.AuthHeader,
		AuthToken:   a.cfg.Collector.AuthToken,
		MaxAttempts: a.cfg.Delivery.MaxAttempts,
		BackoffUnit: a.cfg.Delivery.BackoffUnit,
		DrainDelay:  a.cfg.Delivery.DrainDelay,
		Timeout:     a.cfg.Delivery.Timeout,
	}, a.queue, a.logger)
	a.engine.Start(ctx)

	if a.cfg.Admin.Addr != "" {
		a.adminS = admin.New(a.cfg.Admin.Addr, a, a.logger)
		a.adminS.Start()
	}

	if err := a.mgr.Start(ctx); err != nil {
		return fmt.Errorf("leadwatch: start browser: %w", err)
	}

	for _, page := range a.cfg.Pages {
		if err := a.WatchPage(ctx, page); err != nil {
			a.logger.Error("leadwatch: failed to watch page",
				"url", page.URL, "error", err)
		}
	}

	return nil
}

// WatchPage opens a tab on the page and attaches the capture pipeline.
// Each page gets its own session store, identity provider, and capture
// coordinator; all share the delivery engine and durable queue.
func (a *Agent) WatchPage(ctx context.Context, page PageConfig) error {
	if page.ID == "" {
		page.ID = idgen.New()
	}

	tab, err := browser.OpenTab(ctx, a.mgr, page.URL, page.ID)
	if err != nil {
		return fmt.Errorf("leadwatch: open tab: %w", err)
	}

	provider := identity.New(identity.Config{
		SessionKey: a.cfg.Capture.SessionKey,
		JourneyKey: a.cfg.Capture.JourneyKey,
		MaxJourney: a.cfg.Capture.MaxJourney,
	}, store.NewMemorySession())

	coord := capture.New(capture.Config{
		ClientID:       a.cfg.Collector.ClientID,
		CustomerName:   a.cfg.Collector.CustomerName,
		DebounceWindow: a.cfg.Capture.DebounceWindow,
		Rules:          extract.DefaultRules(a.cfg.Capture.HoneypotName),
	}, provider, a.engine, a.logger)

	w := pagewatch.New(pagewatch.Config{
		HoneypotName: a.cfg.Capture.HoneypotName,
		Logger:       a.logger,
	}, tab, coord, provider)

	if err := w.Start(ctx); err != nil {
		tab.Close()
		return fmt.Errorf("leadwatch: start watcher: %w", err)
	}

	a.mu.Lock()
	a.watchers[page.ID] = w
	a.tabs[page.ID] = tab
	a.pages = append(a.pages, page.URL)
	a.mu.Unlock()

	a.logger.Info("leadwatch: watching page", "url", page.URL, "id", page.ID)
	return nil
}

// Stop winds the agent down: watchers detach, in-flight deliveries settle
// into the durable queue, the browser and queue close.
func (a *Agent) Stop() {
	a.mu.Lock()
	for id, w := range a.watchers {
		w.Stop()
		a.tabs[id].Close()
	}
	a.watchers = make(map[string]*pagewatch.Watcher)
	a.tabs = make(map[string]*browser.Tab)
	a.mu.Unlock()

	if a.adminS != nil {
		a.adminS.Shutdown(context.Background())
	}

	if a.engine != nil {
		a.engine.Stop()
		a.logger.Info("leadwatch: delivery settled", "stats", a.engine.Stats())
	}

	a.mgr.Close()
	if a.closeQ != nil {
		a.closeQ()
	}
}

// Stats returns the delivery counters.
func (a *Agent) Stats() delivery.StatsSnapshot {
	return a.engine.Stats()
}

// Queue returns the durable queue.
func (a *Agent) Queue() store.Queue {
	return a.queue
}

// Pages returns the URLs currently watched.
func (a *Agent) Pages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.pages))
	copy(out, a.pages)
	return out
}
