package api

import (
	"net/http"
	"time"

	"github.com/g3lasio/deepsearchd/internal/cache"
)

var startTime = time.Now()

type healthHandler struct {
	svc     *cache.Service
	version string
}

type healthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	UptimeSeconds   int    `json:"uptime_seconds"`
	Store           string `json:"store"`
	StatsConsistent bool   `json:"stats_consistent"`
	LastStatsBuild  string `json:"last_stats_rebuild,omitempty"`
}

func (h *healthHandler) check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int(time.Since(startTime).Seconds()),
		Store:         "ok",
	}

	status := http.StatusOK
	if err := h.svc.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Store = "unavailable"
		status = http.StatusServiceUnavailable
	}

	consistent, lastRebuild := h.svc.StatsHealth()
	resp.StatsConsistent = consistent
	if !lastRebuild.IsZero() {
		resp.LastStatsBuild = lastRebuild.UTC().Format(time.RFC3339)
	}
	if !consistent && resp.Status == "ok" {
		resp.Status = "degraded"
	}

	writeJSON(w, status, resp)
}
