package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/hqtrung/foodapp-odoo-bridge/cache"
	"github.com/hqtrung/foodapp-odoo-bridge/odoo"
)

// PoolStatser is the read-only pool surface the stats endpoint needs.
type PoolStatser interface {
	Stats() odoo.PoolStats
}

// Handler serves the catalog read API and the admin surface.
type Handler struct {
	cache *cache.Orchestrator
	pool  PoolStatser
}

func NewHandler(orchestrator *cache.Orchestrator, pool PoolStatser) *Handler {
	return &Handler{cache: orchestrator, pool: pool}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)

	mux.HandleFunc("GET /api/categories", h.handleCategories)
	mux.HandleFunc("GET /api/products", h.handleProducts)
	mux.HandleFunc("GET /api/products/{id}/attributes", h.handleProductAttributes)
	mux.HandleFunc("GET /api/attributes", h.handleAttributes)
	mux.HandleFunc("GET /api/attribute-values", h.handleAttributeValues)

	mux.HandleFunc("POST /admin/cache/reload", h.handleReload)
	mux.HandleFunc("GET /admin/cache/status", h.handleCacheStatus)
	mux.HandleFunc("GET /admin/pool/stats", h.handlePoolStats)
	mux.HandleFunc("GET /admin/connection/test", h.handleConnectionTest)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"cache_empty": h.cache.IsEmpty(r.Context()),
	})
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.GetCategories(r.Context()))
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		categoryID, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "category_id must be an integer")
			return
		}
		writeJSON(w, http.StatusOK, h.cache.GetProductsByCategory(r.Context(), categoryID))
		return
	}
	writeJSON(w, http.StatusOK, h.cache.GetProducts(r.Context()))
}

func (h *Handler) handleProductAttributes(w http.ResponseWriter, r *http.Request) {
	attrs, ok := h.cache.GetProductAttributesByID(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "product has no attribute data")
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

func (h *Handler) handleAttributes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.GetAttributes(r.Context()))
}

func (h *Handler) handleAttributeValues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.GetAttributeValues(r.Context()))
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	// A full catalog pull can outlive the client connection; detach the
	// reload from the request context so a dropped caller does not abort it.
	ctx := context.WithoutCancel(r.Context())

	meta, err := h.cache.Reload(ctx)
	if err != nil {
		log.Printf("Cache reload failed: %v", err)
		status := http.StatusInternalServerError
		var fetchErr *odoo.FetchError
		switch {
		case errors.Is(err, odoo.ErrAuthFailed):
			status = http.StatusUnauthorized
		case errors.As(err, &fetchErr):
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Status(r.Context()))
}

func (h *Handler) handlePoolStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pool.Stats())
}

func (h *Handler) handleConnectionTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.TestConnection(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
