// Package snapshot holds the shared value types of the preview cache:
// the persisted snapshot pair and node geometry.
package snapshot

// Snapshot is the cached pair for one preview node. Image and Title are
// persisted together; a snapshot with either part missing does not exist
// as far as the cache is concerned.
type Snapshot struct {
	// Image is the rendered still frame, encoded in Format.
	Image []byte
	// Title is the page title at capture time. May be empty.
	Title string
}

// Geometry is a node's resolved display size in pixels. Zero or negative
// dimensions mean layout has not settled yet.
type Geometry struct {
	Width  int
	Height int
}

// Resolved reports whether both dimensions carry real values.
func (g Geometry) Resolved() bool {
	return g.Width > 0 && g.Height > 0
}

// Metadata is the JSON shape of the persisted metadata blob.
type Metadata struct {
	Title string `json:"title"`
}
