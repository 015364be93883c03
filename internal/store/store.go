// Package store persists snapshot pairs on disk, one (thumbnail, metadata)
// pair per node id under a single cache root.
//
// A pair is valid only when both parts exist and the metadata parses; every
// other condition (missing part, unreadable file, corrupt JSON) reads as a
// plain cache miss. Corruption is never surfaced as an error.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/previewcache/internal/snapshot"
)

// Presence reports which parts of a pair exist on disk.
type Presence struct {
	Thumbnail bool
	Metadata  bool
}

// Valid reports whether both parts are present.
func (p Presence) Valid() bool { return p.Thumbnail && p.Metadata }

// Store is a file-backed snapshot store. Keys are node ids; all files live
// directly under the cache root, so distinct installations get distinct
// roots and never collide.
type Store struct {
	root   string
	ext    string
	logger *slog.Logger
}

// New creates the cache root (idempotently) and returns a Store writing
// thumbnails in the given image format ("png" or "jpeg").
func New(root, imageFormat string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if imageFormat == "" {
		imageFormat = "png"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create cache root: %w", err)
	}
	return &Store{root: root, ext: imageFormat, logger: logger}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// Format returns the thumbnail image format ("png" or "jpeg").
func (s *Store) Format() string { return s.ext }

// ThumbnailPath returns the on-disk path of a node's thumbnail part.
func (s *Store) ThumbnailPath(id string) string {
	return filepath.Join(s.root, id+".thumbnail."+s.ext)
}

// MetadataPath returns the on-disk path of a node's metadata part.
func (s *Store) MetadataPath(id string) string {
	return filepath.Join(s.root, id+".metadata.json")
}

// Exists reports which parts of the pair are on disk. No side effects.
func (s *Store) Exists(id string) Presence {
	if !validID(id) {
		return Presence{}
	}
	var p Presence
	if st, err := os.Stat(s.ThumbnailPath(id)); err == nil && !st.IsDir() {
		p.Thumbnail = true
	}
	if st, err := os.Stat(s.MetadataPath(id)); err == nil && !st.IsDir() {
		p.Metadata = true
	}
	return p
}

// Read loads the snapshot pair for a node. The second return value is false
// on any miss: absent part, unreadable file, or metadata that does not parse.
func (s *Store) Read(id string) (snapshot.Snapshot, bool) {
	if !validID(id) {
		return snapshot.Snapshot{}, false
	}

	img, err := os.ReadFile(s.ThumbnailPath(id))
	if err != nil {
		return snapshot.Snapshot{}, false
	}

	raw, err := os.ReadFile(s.MetadataPath(id))
	if err != nil {
		return snapshot.Snapshot{}, false
	}

	var meta snapshot.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		// Corrupt metadata is a miss, not a failure.
		s.logger.Warn("store: metadata unparsable, treating as miss",
			"node", id, "error", err)
		return snapshot.Snapshot{}, false
	}

	return snapshot.Snapshot{Image: img, Title: meta.Title}, true
}

// Write persists both parts of the pair. On any partial failure both parts
// are removed so the next Read is a clean miss instead of a torn pair, and
// the original error is returned.
func (s *Store) Write(id string, snap snapshot.Snapshot) error {
	if !validID(id) {
		return fmt.Errorf("store: invalid node id %q", id)
	}

	raw, err := json.Marshal(snapshot.Metadata{Title: snap.Title})
	if err != nil {
		return fmt.Errorf("store: encode metadata: %w", err)
	}

	if err := os.WriteFile(s.ThumbnailPath(id), snap.Image, 0o644); err != nil {
		s.discard(id)
		return fmt.Errorf("store: write thumbnail: %w", err)
	}
	if err := os.WriteFile(s.MetadataPath(id), raw, 0o644); err != nil {
		s.discard(id)
		return fmt.Errorf("store: write metadata: %w", err)
	}
	return nil
}

// Delete removes both parts of a node's pair. Missing files are not errors.
func (s *Store) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("store: invalid node id %q", id)
	}
	var firstErr error
	for _, p := range []string{s.ThumbnailPath(id), s.MetadataPath(id)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("store: delete %s: %w", filepath.Base(p), err)
		}
	}
	return firstErr
}

// Sweep removes pairs whose newest part is older than maxAge, plus orphaned
// half-pairs of any age. Returns the number of nodes evicted.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("store: sweep: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, e := range entries {
		id, isThumb := s.nodeIDFrom(e.Name())
		if id == "" || !isThumb {
			continue // metadata halves are handled with their thumbnail
		}

		p := s.Exists(id)
		if !p.Valid() {
			s.discard(id)
			removed++
			continue
		}

		if s.newestModTime(id).Before(cutoff) {
			s.discard(id)
			removed++
		}
	}

	// Orphaned metadata files without a thumbnail counterpart.
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".metadata.json")
		if !ok {
			continue
		}
		if p := s.Exists(id); p.Metadata && !p.Thumbnail {
			s.discard(id)
			removed++
		}
	}

	return removed, nil
}

// discard removes both parts best-effort.
func (s *Store) discard(id string) {
	os.Remove(s.ThumbnailPath(id))
	os.Remove(s.MetadataPath(id))
}

func (s *Store) newestModTime(id string) time.Time {
	var newest time.Time
	for _, p := range []string{s.ThumbnailPath(id), s.MetadataPath(id)} {
		if st, err := os.Stat(p); err == nil && st.ModTime().After(newest) {
			newest = st.ModTime()
		}
	}
	return newest
}

// nodeIDFrom extracts the node id from a thumbnail file name.
func (s *Store) nodeIDFrom(name string) (id string, isThumb bool) {
	id, ok := strings.CutSuffix(name, ".thumbnail."+s.ext)
	if !ok {
		return "", false
	}
	return id, true
}

// validID rejects ids that would escape the cache root.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
