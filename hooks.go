package previewcache

import "sync"

// Host integration. The host exposes an extension point that lets this
// system intercept node construction and lifecycle events; Install binds a
// Manager to it and guarantees a matching uninstall on every exit path.

// Hooks is the handler set installed into the host's extension point.
type Hooks struct {
	// OnInitialize fires when the host constructs a preview node.
	OnInitialize func(node NodeHandle, url string)

	// OnGeometryChange fires on every resolved-or-not geometry update.
	OnGeometryChange func(nodeID string, g Geometry)

	// OnFrameReady fires when the host recreates a node's content frame.
	// Any cached overlay the old frame carried is gone with it.
	OnFrameReady func(nodeID string)

	// OnInteraction fires on a user click inside the node.
	OnInteraction func(nodeID string)

	// OnSnapshotError fires when a displayed cached image fails to load.
	OnSnapshotError func(nodeID string)

	// OnTeardown fires when the host destroys the node.
	OnTeardown func(nodeID string)
}

// Disposer restores the host's original behaviour. Idempotent.
type Disposer func()

// Registrar is the host's extension-point registration mechanism.
type Registrar interface {
	Register(Hooks) (Disposer, error)
}

// Notifier lets the manager ask the host to refresh currently open views
// once interception is installed, so existing nodes pick up the behaviour.
type Notifier interface {
	RefreshOpenViews()
}

// Install registers the manager's handlers with the host and raises the
// refresh notification. The returned Disposer uninstalls the hooks and
// tears down every attached node; it must be invoked on plugin disable.
func (m *Manager) Install(reg Registrar, notify Notifier) (Disposer, error) {
	dispose, err := reg.Register(Hooks{
		OnInitialize: func(node NodeHandle, url string) {
			if err := m.AttachNode(node, url); err != nil {
				m.logger.Error("previewcache: attach node failed",
					"node", node.ID(), "error", err)
			}
		},
		OnGeometryChange: m.UpdateGeometry,
		// A rebuilt frame discards the cached overlay, which reads exactly
		// like a snapshot display failure: fall back to live rendering.
		OnFrameReady:    m.NotifySnapshotError,
		OnInteraction:   m.NotifyInteraction,
		OnSnapshotError: m.NotifySnapshotError,
		OnTeardown:      m.DetachNode,
	})
	if err != nil {
		return nil, err
	}

	if notify != nil {
		notify.RefreshOpenViews()
	}
	m.logger.Info("previewcache: host hooks installed")

	var once sync.Once
	return func() {
		once.Do(func() {
			dispose()
			m.detachAll()
			m.logger.Info("previewcache: host hooks removed")
		})
	}, nil
}
