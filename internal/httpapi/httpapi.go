// Package httpapi exposes the snapshot cache over HTTP for the daemon:
// health, snapshot retrieval, and eviction. The core never depends on it.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/previewcache/internal/snapshot"
	"github.com/hazyhaar/previewcache/internal/store"
)

// API serves the contents of one snapshot store.
type API struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates the API over a store.
func New(st *store.Store, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{store: st, logger: logger}
}

// Router builds the chi router for the API.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", a.handleHealth)
	r.Route("/nodes/{nodeID}", func(r chi.Router) {
		r.Get("/thumbnail", a.handleThumbnail)
		r.Get("/metadata", a.handleMetadata)
		r.Delete("/", a.handleEvict)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *API) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.store.Read(chi.URLParam(r, "nodeID"))
	if !ok {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}

	contentType := "image/png"
	if a.store.Format() == "jpeg" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(snap.Image)
}

func (a *API) handleMetadata(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.store.Read(chi.URLParam(r, "nodeID"))
	if !ok {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot.Metadata{Title: snap.Title})
}

func (a *API) handleEvict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	if err := a.store.Delete(id); err != nil {
		a.logger.Warn("httpapi: evict failed", "node", id, "error", err)
		http.Error(w, "evict failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
