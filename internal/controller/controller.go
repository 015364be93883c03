// Package controller owns the display state machine of one preview node:
// cached snapshot first, live rendering as the fallback, and capture
// scheduling once live content has loaded.
//
// All transitions, timer firings, and I/O completions for a node run on one
// goroutine. That single loop is the serialisation domain the cache relies
// on: no concurrent state transitions, and never more than one
// capture-and-save in flight per node.
package controller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/previewcache/internal/bridge"
	"github.com/hazyhaar/previewcache/internal/capture"
	"github.com/hazyhaar/previewcache/internal/snapshot"
	"github.com/hazyhaar/previewcache/internal/store"
)

// State of a node's display lifecycle. Exactly one is active at a time.
type State int32

const (
	StateUninitialized State = iota
	StateAwaitingCacheLookup
	StateShowingCachedSnapshot
	StateLiveRendering
	StateSettlingAfterLoad
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingCacheLookup:
		return "awaiting_cache_lookup"
	case StateShowingCachedSnapshot:
		return "showing_cached_snapshot"
	case StateLiveRendering:
		return "live_rendering"
	case StateSettlingAfterLoad:
		return "settling_after_load"
	case StateCapturing:
		return "capturing"
	}
	return "unknown"
}

// NodeHandle is the narrow view of a host node this package needs: identity,
// geometry, and the two display operations. Hosts implement it over their
// own node type.
type NodeHandle interface {
	ID() string
	Geometry() snapshot.Geometry

	// ShowSnapshot renders a cached image in place of live content and
	// displays the given title. A returned error means the snapshot could
	// not be displayed and the node should go live instead.
	ShowSnapshot(image []byte, title string) error

	// ClearSnapshot discards a previously shown cached image.
	ClearSnapshot()
}

// Config for one node's controller.
type Config struct {
	Node      NodeHandle
	Bridge    bridge.RenderBridge
	Store     *store.Store
	Scheduler *capture.Scheduler

	// SettleDelay is the wait after load-finished before the content is
	// trusted enough to capture. Default: 1s.
	SettleDelay time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type eventKind int

const (
	evInteract eventKind = iota
	evSnapshotError
	evGeometry
)

type event struct {
	kind eventKind
	geom snapshot.Geometry
}

// Controller drives one node. Create with New, run with Start, release with
// Close.
type Controller struct {
	cfg    Config
	state  atomic.Int32
	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Controller in the Uninitialized state.
func New(cfg Config) *Controller {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:    cfg,
		events: make(chan event, 256),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start begins the node's lifecycle: cache lookup, then either a cached
// snapshot or live rendering.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.loop()
}

// State returns the current lifecycle state. Safe from any goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// NotifyInteraction reports a user click on the node. A node showing a
// cached snapshot switches to live rendering.
func (c *Controller) NotifyInteraction() {
	c.send(event{kind: evInteract})
}

// NotifySnapshotError reports that the displayed cached image failed to
// load. Treated like an interaction: the node goes live.
func (c *Controller) NotifySnapshotError() {
	c.send(event{kind: evSnapshotError})
}

// UpdateGeometry feeds a geometry change into the capture scheduler.
func (c *Controller) UpdateGeometry(g snapshot.Geometry) {
	c.send(event{kind: evGeometry, geom: g})
}

// Close tears the node down: cancels timers, stops the loop, and releases
// the render surface. Blocks until the loop has exited.
func (c *Controller) Close() {
	c.cancel()
	<-c.done
	if err := c.cfg.Bridge.Close(); err != nil {
		c.cfg.Logger.Debug("controller: close bridge", "node", c.cfg.Node.ID(), "error", err)
	}
}

func (c *Controller) send(ev event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Controller) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.cfg.Logger.Debug("controller: state",
			"node", c.cfg.Node.ID(), "from", prev.String(), "to", s.String())
	}
}

func (c *Controller) loop() {
	defer close(c.done)

	sched := c.cfg.Scheduler
	defer sched.Disarm()

	var settleTimer *time.Timer
	var settleC <-chan time.Time
	defer func() {
		if settleTimer != nil {
			settleTimer.Stop()
		}
	}()

	// Cache lookup decides the opening state: a valid pair keeps the render
	// surface dormant entirely, which is the point of the cache.
	c.setState(StateAwaitingCacheLookup)
	if snap, ok := c.cfg.Store.Read(c.cfg.Node.ID()); ok {
		if err := c.cfg.Node.ShowSnapshot(snap.Image, snap.Title); err == nil {
			c.setState(StateShowingCachedSnapshot)
		} else {
			c.cfg.Logger.Warn("controller: show cached snapshot failed",
				"node", c.cfg.Node.ID(), "error", err)
			c.goLive()
		}
	} else {
		c.goLive()
	}

	loadC := c.cfg.Bridge.LoadFinished()

	for {
		select {
		case <-c.ctx.Done():
			return

		case ev := <-c.events:
			switch ev.kind {
			case evInteract, evSnapshotError:
				if c.State() == StateShowingCachedSnapshot {
					c.cfg.Node.ClearSnapshot()
					c.goLive()
				}
			case evGeometry:
				// Only live surfaces can be recaptured; geometry noise on a
				// dormant node is irrelevant.
				if c.State() >= StateLiveRendering {
					sched.Observe(ev.geom)
				}
			}

		case <-loadC:
			loadC = nil // closed channel, never select on it again
			if c.State() == StateLiveRendering {
				c.setState(StateSettlingAfterLoad)
				settleTimer = time.NewTimer(c.cfg.SettleDelay)
				settleC = settleTimer.C
			}

		case <-settleC:
			settleTimer, settleC = nil, nil
			c.runCapture(capture.ReasonInitial)

		case <-sched.TimerC():
			sched.Disarm()
			c.runCapture(capture.ReasonResize)
		}
	}
}

// goLive activates the render surface and seeds the scheduler with the
// node's current geometry so the next real resize has a baseline.
func (c *Controller) goLive() {
	if err := c.cfg.Bridge.Activate(c.ctx); err != nil {
		c.cfg.Logger.Error("controller: activate failed",
			"node", c.cfg.Node.ID(), "error", err)
	}
	c.cfg.Scheduler.Observe(c.cfg.Node.Geometry())
	c.setState(StateLiveRendering)
}

// runCapture performs one capture-and-save inline on the loop goroutine.
// Requests arriving meanwhile queue behind it instead of racing it.
func (c *Controller) runCapture(reason string) {
	c.setState(StateCapturing)
	c.cfg.Scheduler.CaptureAndSave(c.ctx, reason)
	c.setState(StateLiveRendering)
}
