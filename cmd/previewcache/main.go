// Command previewcache runs the preview snapshot cache daemon.
//
// Usage:
//
//	previewcache -config previewcache.yaml     # serve the cache over HTTP
//	previewcache -snapshot https://example.com # capture one URL and exit
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/previewcache"
	"github.com/hazyhaar/previewcache/internal/httpapi"
)

func main() {
	configPath := flag.String("config", "", "path to previewcache.yaml config file")
	snapshotURL := flag.String("snapshot", "", "capture a single URL into the cache and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *snapshotURL); err != nil {
		logger.Error("previewcache: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, snapshotURL string) error {
	cfg := &previewcache.Config{}
	if configPath != "" {
		loaded, err := previewcache.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()

	if snapshotURL != "" {
		return runSnapshot(ctx, logger, cfg, snapshotURL)
	}
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: previewcache -config <file> | -snapshot <url>")
		os.Exit(1)
	}
	return runDaemon(ctx, logger, cfg)
}

func runDaemon(ctx context.Context, logger *slog.Logger, cfg *previewcache.Config) error {
	m := previewcache.NewManager(cfg, logger)
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Stop()

	addr := cfg.Listen
	if addr == "" {
		addr = ":8087"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: httpapi.New(m.Store(), logger).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("previewcache: serving", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runSnapshot attaches one headless node for the URL, waits for its
// capture, and prints where the pair landed.
func runSnapshot(ctx context.Context, logger *slog.Logger, cfg *previewcache.Config, url string) error {
	m := previewcache.NewManager(cfg, logger)
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Stop()

	node := &cliNode{id: nodeIDFor(url)}

	if snap, ok := m.Store().Read(node.id); ok {
		fmt.Printf("cache hit: %s (%q, %d bytes)\n", node.id, snap.Title, len(snap.Image))
		return nil
	}

	if err := m.AttachNode(node, url); err != nil {
		return err
	}

	deadline := time.After(90 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("snapshot of %s timed out", url)
		case <-tick.C:
			if snap, ok := m.Store().Read(node.id); ok {
				fmt.Printf("captured: %s (%q, %d bytes)\n", node.id, snap.Title, len(snap.Image))
				fmt.Println(m.Store().ThumbnailPath(node.id))
				fmt.Println(m.Store().MetadataPath(node.id))
				return nil
			}
		}
	}
}

// cliNode is a headless NodeHandle for one-shot captures: no display
// surface, fixed viewport-sized geometry.
type cliNode struct {
	id string
}

func (n *cliNode) ID() string { return n.id }

func (n *cliNode) Geometry() previewcache.Geometry {
	return previewcache.Geometry{Width: 1280, Height: 800}
}

func (n *cliNode) ShowSnapshot(image []byte, title string) error {
	return fmt.Errorf("no display surface")
}

func (n *cliNode) ClearSnapshot() {}

func nodeIDFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("url-%x", sum[:8])
}
