package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// PageConfig configures a page bridge for one node.
type PageConfig struct {
	URL string

	// ImageFormat for captures: png | jpeg. Default: png.
	ImageFormat string

	// ResourceBlocking lists resource types to skip loading
	// (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// NavigateTimeout bounds the initial navigation. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *PageConfig) defaults() {
	if c.ImageFormat == "" {
		c.ImageFormat = "png"
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Page is the Chrome-backed RenderBridge for a single node. It stays dormant
// until Activate: no tab exists, no bytes move, which is the entire point of
// showing a cached snapshot instead.
type Page struct {
	chrome *Chrome
	cfg    PageConfig

	mu     sync.Mutex
	page   *rod.Page
	active bool
	closed bool
	loaded chan struct{}
}

// NewPage creates a dormant page bridge bound to a URL.
func NewPage(chrome *Chrome, cfg PageConfig) *Page {
	cfg.defaults()
	return &Page{
		chrome: chrome,
		cfg:    cfg,
		loaded: make(chan struct{}),
	}
}

// Activate opens a tab and starts loading the URL. Idempotent.
func (p *Page) Activate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("bridge: activate after close")
	}
	if p.active {
		return nil
	}

	b := p.chrome.Browser()
	if b == nil {
		return fmt.Errorf("bridge: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return fmt.Errorf("bridge: create tab: %w", err)
	}

	if len(p.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, p.cfg.ResourceBlocking); err != nil {
			p.cfg.Logger.Warn("bridge: resource blocking failed", "error", err)
		}
	}

	p.page = page
	p.active = true

	go p.load(ctx, page)
	return nil
}

// load navigates and signals LoadFinished. Runs off the caller's goroutine
// so Activate never blocks on the network.
func (p *Page) load(ctx context.Context, page *rod.Page) {
	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(p.cfg.URL); err != nil {
		p.cfg.Logger.Error("bridge: navigate failed", "url", p.cfg.URL, "error", err)
		return
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		p.cfg.Logger.Warn("bridge: wait load timeout", "url", p.cfg.URL, "error", err)
	}
	close(p.loaded)
}

// LoadFinished returns the channel closed when the initial load completes.
func (p *Page) LoadFinished() <-chan struct{} {
	return p.loaded
}

// Capture returns a screenshot of the current viewport, or ErrNoSurface if
// the tab is gone.
func (p *Page) Capture(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	page := p.page
	ok := p.active && !p.closed
	p.mu.Unlock()

	if !ok || page == nil {
		return nil, ErrNoSurface
	}

	format := proto.PageCaptureScreenshotFormatPng
	if p.cfg.ImageFormat == "jpeg" {
		format = proto.PageCaptureScreenshotFormatJpeg
	}

	data, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: format,
	})
	if err != nil {
		// The tab can disappear between the mount check and the CDP call;
		// both read as a missing surface.
		if p.isClosed() {
			return nil, ErrNoSurface
		}
		return nil, fmt.Errorf("bridge: screenshot: %w", err)
	}
	return data, nil
}

// Title returns the current page title, best effort.
func (p *Page) Title(ctx context.Context) string {
	p.mu.Lock()
	page := p.page
	ok := p.active && !p.closed
	p.mu.Unlock()

	if !ok || page == nil {
		return ""
	}

	info, err := page.Context(ctx).Info()
	if err != nil {
		p.cfg.Logger.Debug("bridge: title lookup failed", "url", p.cfg.URL, "error", err)
		return ""
	}
	return info.Title
}

// Close releases the tab. Safe to call more than once.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.page != nil {
		err := p.page.Close()
		p.page = nil
		if err != nil && !strings.Contains(err.Error(), "target closed") {
			return fmt.Errorf("bridge: close tab: %w", err)
		}
	}
	return nil
}

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// applyResourceBlocking intercepts requests and drops the configured
// resource types before they hit the network.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blockSet, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return nil
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	switch strings.ToLower(resType) {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[strings.ToLower(resType)]
}
