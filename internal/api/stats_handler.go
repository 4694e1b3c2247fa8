package api

import (
	"net/http"

	"github.com/g3lasio/deepsearchd/internal/cache"
)

type statsHandler struct {
	svc *cache.Service
}

func (h *statsHandler) get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.StatsSnapshot())
}
