// Package config handles previewcache configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level previewcache configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Capture   CaptureConfig   `yaml:"capture"`
	Browser   BrowserConfig   `yaml:"browser"`
	Retention RetentionConfig `yaml:"retention"`
	Listen    string          `yaml:"listen"`
}

// CacheConfig controls the on-disk snapshot store.
type CacheConfig struct {
	// Root is the directory holding snapshot pairs. Default: ".previewcache".
	Root string `yaml:"root"`
	// ImageFormat is the thumbnail encoding: png | jpeg. Default: png.
	ImageFormat string `yaml:"image_format"`
	// AuditDB is the SQLite capture log path. Empty disables the audit log.
	AuditDB string `yaml:"audit_db"`
}

// CaptureConfig controls when snapshots are (re)captured.
type CaptureConfig struct {
	// SettleDelay is the wait after load-finished before trusting content
	// as stable enough to capture. Default: 1s.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// DebounceWindow is the quiet period a resize burst must observe
	// before triggering a recapture. Default: 500ms.
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// ThumbnailMaxWidth/Height bound the persisted image. Captures larger
	// than the box are downscaled. Zero keeps the capture as-is.
	ThumbnailMaxWidth  int `yaml:"thumbnail_max_width"`
	ThumbnailMaxHeight int `yaml:"thumbnail_max_height"`
}

// BrowserConfig controls the Chrome instance backing live renders.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty = launch local.
	Remote string `yaml:"remote"`
	// Headless launches Chrome without a display. Default: true.
	Headless *bool `yaml:"headless"`
	// ResourceBlocking lists resource types to block (fonts, media, ...).
	ResourceBlocking []string `yaml:"resource_blocking"`
	// NavigateTimeout bounds initial navigation. Default: 30s.
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

// RetentionConfig controls the periodic sweep of stale snapshot pairs.
type RetentionConfig struct {
	// MaxAge evicts pairs older than this. Zero disables the sweep.
	MaxAge time.Duration `yaml:"max_age"`
	// Schedule is a cron expression for the sweep. Default: "@hourly".
	Schedule string `yaml:"schedule"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with the reference defaults.
func (c *Config) ApplyDefaults() {
	if c.Cache.Root == "" {
		c.Cache.Root = ".previewcache"
	}
	if c.Cache.ImageFormat == "" {
		c.Cache.ImageFormat = "png"
	}
	if c.Capture.SettleDelay <= 0 {
		c.Capture.SettleDelay = time.Second
	}
	if c.Capture.DebounceWindow <= 0 {
		c.Capture.DebounceWindow = 500 * time.Millisecond
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = "@hourly"
	}
}
