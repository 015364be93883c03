package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "previewcache.yaml")
	data := []byte(`
cache:
  root: /var/cache/previews
capture:
  debounce_window: 250ms
listen: ":8090"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Cache.Root != "/var/cache/previews" {
		t.Errorf("cache root: got %q", cfg.Cache.Root)
	}
	if cfg.Cache.ImageFormat != "png" {
		t.Errorf("image format default: got %q, want png", cfg.Cache.ImageFormat)
	}
	if cfg.Capture.DebounceWindow != 250*time.Millisecond {
		t.Errorf("debounce window: got %v, want 250ms", cfg.Capture.DebounceWindow)
	}
	if cfg.Capture.SettleDelay != time.Second {
		t.Errorf("settle delay default: got %v, want 1s", cfg.Capture.SettleDelay)
	}
	if cfg.Retention.Schedule != "@hourly" {
		t.Errorf("retention schedule default: got %q", cfg.Retention.Schedule)
	}
	if cfg.Listen != ":8090" {
		t.Errorf("listen: got %q", cfg.Listen)
	}
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("cache: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile(bad yaml): got nil error")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFile(missing): got nil error")
	}
}
