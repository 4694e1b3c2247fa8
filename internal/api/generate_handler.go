package api

import (
	"errors"
	"net/http"

	"github.com/g3lasio/deepsearchd/internal/cache"
	"github.com/g3lasio/deepsearchd/internal/generator"
	"github.com/g3lasio/deepsearchd/internal/store"
)

type generateHandler struct {
	svc *cache.Service
}

func (h *generateHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req generator.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Generate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type lookupResponse struct {
	Found bool          `json:"found"`
	Entry *cache.Result `json:"entry,omitempty"`
}

// lookup checks the cache without triggering a generation. A hit counts as a
// reuse; a miss is free.
func (h *generateHandler) lookup(w http.ResponseWriter, r *http.Request) {
	var req generator.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, found, err := h.svc.Lookup(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, lookupResponse{Found: false})
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Found: true, Entry: res})
}

// writeServiceError maps cache service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cache.ErrInvalidRequest):
		writeErrorDetail(w, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, generator.ErrGenerationFailed):
		writeErrorDetail(w, http.StatusBadGateway, "generation failed", err.Error())
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "cache store unavailable")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
