package previewcache

import (
	"github.com/hazyhaar/previewcache/internal/bridge"
	"github.com/hazyhaar/previewcache/internal/config"
	"github.com/hazyhaar/previewcache/internal/controller"
	"github.com/hazyhaar/previewcache/internal/snapshot"
)

// Config is the top-level previewcache configuration. Re-exported from
// internal.
type Config = config.Config

// CacheConfig controls the on-disk snapshot store.
type CacheConfig = config.CacheConfig

// CaptureConfig controls when snapshots are (re)captured.
type CaptureConfig = config.CaptureConfig

// BrowserConfig controls the Chrome instance backing live renders.
type BrowserConfig = config.BrowserConfig

// RetentionConfig controls the periodic sweep of stale snapshots.
type RetentionConfig = config.RetentionConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// NodeHandle is the host-side view of one preview node.
type NodeHandle = controller.NodeHandle

// RenderBridge is the external rendering capability bound to one node.
type RenderBridge = bridge.RenderBridge

// ErrNoSurface is returned by RenderBridge.Capture when no renderable
// surface is mounted.
var ErrNoSurface = bridge.ErrNoSurface

// Geometry is a node's resolved display size.
type Geometry = snapshot.Geometry

// Snapshot is the cached (image, title) pair for a node.
type Snapshot = snapshot.Snapshot

// State is a node's lifecycle state.
type State = controller.State

// Node lifecycle states.
const (
	StateUninitialized         = controller.StateUninitialized
	StateAwaitingCacheLookup   = controller.StateAwaitingCacheLookup
	StateShowingCachedSnapshot = controller.StateShowingCachedSnapshot
	StateLiveRendering         = controller.StateLiveRendering
	StateSettlingAfterLoad     = controller.StateSettlingAfterLoad
	StateCapturing             = controller.StateCapturing
)
