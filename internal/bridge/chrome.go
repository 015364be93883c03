package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// ChromeConfig configures the shared Chrome instance backing all pages.
type ChromeConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless launches Chrome without a display. Default: true.
	Headless *bool

	Logger *slog.Logger
}

func (c *ChromeConfig) defaults() {
	if c.Headless == nil {
		headless := true
		c.Headless = &headless
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Chrome manages one browser process shared by every page bridge. Pages are
// cheap; the process is not, so it is launched once and reused.
type Chrome struct {
	cfg     ChromeConfig
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewChrome creates a Chrome manager. Call Start to launch or connect.
func NewChrome(cfg ChromeConfig) *Chrome {
	cfg.defaults()
	return &Chrome{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (c *Chrome) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("bridge: chrome manager is closed")
	}
	if c.browser != nil {
		return nil
	}

	log := c.cfg.Logger
	var wsURL string

	if c.cfg.RemoteURL != "" {
		wsURL = c.cfg.RemoteURL
		log.Info("bridge: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().Headless(*c.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("bridge: launch chrome: %w", err)
		}
		wsURL = u
		c.lnch = l
		log.Info("bridge: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("bridge: connect: %w", err)
	}

	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("bridge: ignore cert errors failed", "error", err)
	}

	c.browser = b
	return nil
}

// Browser returns the current browser handle, or nil before Start.
func (c *Chrome) Browser() *rod.Browser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.browser
}

// Close shuts down Chrome.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.browser != nil {
		c.browser.Close()
		c.browser = nil
	}
	if c.lnch != nil {
		c.lnch.Cleanup()
		c.lnch = nil
	}
	return nil
}
