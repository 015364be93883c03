// Package capture decides when a node needs a fresh snapshot and performs
// the capture-and-save step.
//
// A Scheduler is owned by exactly one controller loop and is not safe for
// concurrent use; the owning loop is what serialises captures per node.
package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/previewcache/internal/auditlog"
	"github.com/hazyhaar/previewcache/internal/bridge"
	"github.com/hazyhaar/previewcache/internal/snapshot"
	"github.com/hazyhaar/previewcache/internal/store"
	"github.com/hazyhaar/previewcache/internal/thumbnail"
)

// Reasons a capture runs.
const (
	ReasonInitial = "initial"
	ReasonResize  = "resize"
)

// Config for a per-node Scheduler.
type Config struct {
	NodeID string
	Bridge bridge.RenderBridge
	Store  *store.Store

	// Window is the quiet period a burst of qualifying geometry changes
	// must observe before one recapture fires. Default: 500ms.
	Window time.Duration

	// Thumbnail bounds the persisted image. Zero values disable scaling.
	Thumbnail thumbnail.Options

	// Audit may be nil.
	Audit  *auditlog.Logger
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scheduler filters geometry changes through a debounce window and runs
// capture-and-save. At most one debounce timer exists at a time: a new
// qualifying change resets the deadline instead of stacking a second one.
type Scheduler struct {
	cfg     Config
	last    snapshot.Geometry
	timer   *time.Timer
	timerCh <-chan time.Time
}

// New creates a Scheduler for one node.
func New(cfg Config) *Scheduler {
	cfg.defaults()
	return &Scheduler{cfg: cfg}
}

// Observe records a geometry update and reports whether it qualified for a
// recapture. A change qualifies only when the previous and the new geometry
// are both fully resolved and differ; qualifying changes (re)arm the
// debounce timer.
func (s *Scheduler) Observe(g snapshot.Geometry) bool {
	if !g.Resolved() {
		return false
	}

	prev := s.last
	s.last = g

	if !prev.Resolved() || prev == g {
		return false
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.NewTimer(s.cfg.Window)
	s.timerCh = s.timer.C
	return true
}

// TimerC returns the channel that fires when the debounce window elapses
// with no further qualifying changes. Nil while no capture is pending.
func (s *Scheduler) TimerC() <-chan time.Time {
	return s.timerCh
}

// Disarm cancels any pending debounce timer. Used on teardown and after the
// timer has fired.
func (s *Scheduler) Disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.timerCh = nil
	}
}

// CaptureAndSave grabs a still frame, downscales it, and persists the pair
// together with the title reported by the bridge at this moment. All
// failures are recoverable: they are logged, audited, and leave the cache
// unchanged; the node keeps rendering live either way.
func (s *Scheduler) CaptureAndSave(ctx context.Context, reason string) {
	log := s.cfg.Logger
	started := time.Now()

	img, err := s.cfg.Bridge.Capture(ctx)
	if err != nil {
		// Surface gone mid-flight reads the same as any capture failure:
		// no cache mutation, no retry until the next qualifying event.
		log.Warn("capture: frame grab failed",
			"node", s.cfg.NodeID, "reason", reason, "error", err)
		s.audit(ctx, reason, false, started, 0)
		return
	}

	if img, err = thumbnail.Fit(img, s.cfg.Thumbnail); err != nil {
		log.Warn("capture: thumbnail downscale failed",
			"node", s.cfg.NodeID, "error", err)
		s.audit(ctx, reason, false, started, 0)
		return
	}

	snap := snapshot.Snapshot{Image: img, Title: s.cfg.Bridge.Title(ctx)}
	if err := s.cfg.Store.Write(s.cfg.NodeID, snap); err != nil {
		log.Warn("capture: persist failed",
			"node", s.cfg.NodeID, "reason", reason, "error", err)
		s.audit(ctx, reason, false, started, len(img))
		return
	}

	log.Debug("capture: snapshot persisted",
		"node", s.cfg.NodeID, "reason", reason, "bytes", len(img))
	s.audit(ctx, reason, true, started, len(img))
}

func (s *Scheduler) audit(ctx context.Context, reason string, ok bool, started time.Time, size int) {
	s.cfg.Audit.RecordCapture(ctx, auditlog.CaptureEvent{
		NodeID:   s.cfg.NodeID,
		Reason:   reason,
		Success:  ok,
		Duration: time.Since(started),
		Bytes:    size,
	})
}
