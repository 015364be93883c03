// Package previewcache renders embedded web previews from a persistent
// snapshot cache. Each preview node first tries its cached snapshot
// (image + title); only on a miss, a failed snapshot, or user interaction
// does the node activate a live render surface. Once live content has
// loaded and settled, and after meaningful resizes, fresh snapshots are
// captured and persisted for the next cold load.
//
// previewcache caches and schedules, it does not lay out. The host owns
// node geometry and lifecycle events and feeds them in through the hook
// surface; Chrome (or any RenderBridge) owns the actual rendering.
package previewcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/hazyhaar/previewcache/internal/auditlog"
	"github.com/hazyhaar/previewcache/internal/bridge"
	"github.com/hazyhaar/previewcache/internal/capture"
	"github.com/hazyhaar/previewcache/internal/controller"
	"github.com/hazyhaar/previewcache/internal/store"
	"github.com/hazyhaar/previewcache/internal/thumbnail"
)

// Manager is the top-level orchestrator: one per plugin installation. It
// owns the snapshot store, the shared Chrome instance, and one lifecycle
// controller per attached node.
type Manager struct {
	cfg    *Config
	logger *slog.Logger

	store  *store.Store
	audit  *auditlog.Logger
	chrome *bridge.Chrome
	jobs   *cron.Cron

	mu      sync.Mutex
	nodes   map[string]*controller.Controller
	ctx     context.Context
	started bool
}

// NewManager creates a Manager from configuration. Call Start before
// attaching nodes.
func NewManager(cfg *Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()

	return &Manager{
		cfg:    cfg,
		logger: logger,
		chrome: bridge.NewChrome(bridge.ChromeConfig{
			RemoteURL: cfg.Browser.Remote,
			Headless:  cfg.Browser.Headless,
			Logger:    logger,
		}),
		nodes:  make(map[string]*controller.Controller),
	}
}

// Start prepares the cache root, the audit log, and the retention job.
// Chrome is launched lazily on the first node that needs a live surface.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	st, err := store.New(m.cfg.Cache.Root, m.cfg.Cache.ImageFormat, m.logger)
	if err != nil {
		return fmt.Errorf("previewcache: %w", err)
	}
	m.store = st

	if m.cfg.Cache.AuditDB != "" {
		audit, err := auditlog.Open(m.cfg.Cache.AuditDB)
		if err != nil {
			return fmt.Errorf("previewcache: %w", err)
		}
		m.audit = audit
	}

	if m.cfg.Retention.MaxAge > 0 {
		m.jobs = cron.New()
		_, err := m.jobs.AddFunc(m.cfg.Retention.Schedule, m.sweep)
		if err != nil {
			return fmt.Errorf("previewcache: retention schedule: %w", err)
		}
		m.jobs.Start()
	}

	m.ctx = ctx
	m.started = true
	m.logger.Info("previewcache: started",
		"cache_root", st.Root(), "image_format", st.Format())
	return nil
}

// Stop tears down every node, the retention job, the audit log, and Chrome.
func (m *Manager) Stop() {
	m.detachAll()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.jobs != nil {
		m.jobs.Stop()
	}
	if err := m.audit.Close(); err != nil {
		m.logger.Warn("previewcache: close audit log", "error", err)
	}
	if err := m.chrome.Close(); err != nil {
		m.logger.Warn("previewcache: close chrome", "error", err)
	}
	m.started = false
}

// Store exposes the snapshot store for read-side surfaces (HTTP API).
func (m *Manager) Store() *store.Store { return m.store }

// AttachNode starts the cache lifecycle for a node bound to a URL, backed
// by the shared Chrome instance. Called from the host's node-construction
// hook.
func (m *Manager) AttachNode(node NodeHandle, url string) error {
	if err := m.ensureBrowser(); err != nil {
		return err
	}

	page := bridge.NewPage(m.chrome, bridge.PageConfig{
		URL:              url,
		ImageFormat:      m.cfg.Cache.ImageFormat,
		ResourceBlocking: m.cfg.Browser.ResourceBlocking,
		NavigateTimeout:  m.cfg.Browser.NavigateTimeout,
		Logger:           m.logger,
	})
	return m.AttachNodeWithBridge(node, page)
}

// AttachNodeWithBridge is AttachNode for hosts that own the render surface
// themselves.
func (m *Manager) AttachNodeWithBridge(node NodeHandle, rb RenderBridge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return fmt.Errorf("previewcache: manager not started")
	}
	id := node.ID()
	if _, exists := m.nodes[id]; exists {
		return fmt.Errorf("previewcache: node %q already attached", id)
	}

	sched := capture.New(capture.Config{
		NodeID: id,
		Bridge: rb,
		Store:  m.store,
		Window: m.cfg.Capture.DebounceWindow,
		Thumbnail: thumbnail.Options{
			MaxWidth:  m.cfg.Capture.ThumbnailMaxWidth,
			MaxHeight: m.cfg.Capture.ThumbnailMaxHeight,
			Format:    m.cfg.Cache.ImageFormat,
		},
		Audit:  m.audit,
		Logger: m.logger,
	})

	ctrl := controller.New(controller.Config{
		Node:        node,
		Bridge:      rb,
		Store:       m.store,
		Scheduler:   sched,
		SettleDelay: m.cfg.Capture.SettleDelay,
		Logger:      m.logger,
	})
	ctrl.Start(m.ctx)

	m.nodes[id] = ctrl
	m.logger.Debug("previewcache: node attached", "node", id)
	return nil
}

// DetachNode releases a node's timers, observers, and render surface.
// Called from the host's teardown hook. Unknown ids are ignored.
func (m *Manager) DetachNode(id string) {
	m.mu.Lock()
	ctrl, ok := m.nodes[id]
	delete(m.nodes, id)
	m.mu.Unlock()

	if ok {
		ctrl.Close()
		m.logger.Debug("previewcache: node detached", "node", id)
	}
}

// UpdateGeometry forwards a geometry change to the node's capture
// scheduler.
func (m *Manager) UpdateGeometry(id string, g Geometry) {
	if ctrl := m.node(id); ctrl != nil {
		ctrl.UpdateGeometry(g)
	}
}

// NotifyInteraction reports a user click on a node showing a cached
// snapshot; the node switches to live rendering.
func (m *Manager) NotifyInteraction(id string) {
	if ctrl := m.node(id); ctrl != nil {
		ctrl.NotifyInteraction()
	}
}

// NotifySnapshotError reports that a node's cached image failed to load;
// the node falls back to live rendering.
func (m *Manager) NotifySnapshotError(id string) {
	if ctrl := m.node(id); ctrl != nil {
		ctrl.NotifySnapshotError()
	}
}

// NodeState returns a node's lifecycle state, or StateUninitialized for
// unknown ids.
func (m *Manager) NodeState(id string) State {
	if ctrl := m.node(id); ctrl != nil {
		return ctrl.State()
	}
	return StateUninitialized
}

// Sweep runs one retention pass immediately.
func (m *Manager) Sweep() {
	m.sweep()
}

func (m *Manager) node(id string) *controller.Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[id]
}

func (m *Manager) ensureBrowser() error {
	m.mu.Lock()
	ctx := m.ctx
	started := m.started
	m.mu.Unlock()

	if !started {
		return fmt.Errorf("previewcache: manager not started")
	}
	// Idempotent: only the first call launches.
	if err := m.chrome.Start(ctx); err != nil {
		return fmt.Errorf("previewcache: %w", err)
	}
	return nil
}

func (m *Manager) detachAll() {
	m.mu.Lock()
	nodes := m.nodes
	m.nodes = make(map[string]*controller.Controller)
	m.mu.Unlock()

	for id, ctrl := range nodes {
		ctrl.Close()
		m.logger.Debug("previewcache: node detached", "node", id)
	}
}

func (m *Manager) sweep() {
	if m.store == nil || m.cfg.Retention.MaxAge <= 0 {
		return
	}
	removed, err := m.store.Sweep(m.cfg.Retention.MaxAge)
	if err != nil {
		m.logger.Error("previewcache: retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		m.logger.Info("previewcache: retention sweep", "evicted", removed)
	}
	if err := m.audit.Cleanup(context.Background(), m.cfg.Retention.MaxAge); err != nil {
		m.logger.Warn("previewcache: audit cleanup failed", "error", err)
	}
}
