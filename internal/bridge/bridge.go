// Package bridge defines the render surface contract consumed by the
// lifecycle controller, and provides the Chrome-backed implementation.
//
// A RenderBridge can load a node's URL into a live surface, signal when the
// initial load finished, and produce a still frame of whatever is currently
// rendered. Everything else about the surface belongs to the host.
package bridge

import (
	"context"
	"errors"
)

// ErrNoSurface is returned by Capture when no renderable surface is mounted,
// typically because the node was torn down mid-flight. Callers treat it as a
// recoverable capture failure and leave the cache untouched.
var ErrNoSurface = errors.New("bridge: no render surface mounted")

// RenderBridge is the external rendering capability bound to one node.
type RenderBridge interface {
	// Activate begins live rendering of the bound URL. Idempotent: a second
	// call on an already active bridge is a no-op.
	Activate(ctx context.Context) error

	// LoadFinished returns a channel closed once when the initial load
	// completes. The content may not yet be visually stable at that point.
	LoadFinished() <-chan struct{}

	// Capture returns a still frame of the current content, or ErrNoSurface
	// when nothing is mounted.
	Capture(ctx context.Context) ([]byte, error)

	// Title returns the current page title, best effort. Empty on failure.
	Title(ctx context.Context) string

	// Close releases the surface. Subsequent Capture calls fail with
	// ErrNoSurface.
	Close() error
}
