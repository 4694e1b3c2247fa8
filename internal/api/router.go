package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/g3lasio/deepsearchd/internal/cache"
)

// RouterDeps holds the dependencies needed by the HTTP API router.
type RouterDeps struct {
	Service *cache.Service
	Version string
}

// NewRouter creates an http.Handler with all API routes.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	gen := &generateHandler{svc: deps.Service}
	mux.HandleFunc("POST /api/v1/generate", gen.generate)
	mux.HandleFunc("POST /api/v1/lookup", gen.lookup)

	st := &statsHandler{svc: deps.Service}
	mux.HandleFunc("GET /api/v1/cache-stats", st.get)

	hh := &healthHandler{svc: deps.Service, version: deps.Version}
	mux.HandleFunc("GET /api/v1/health", hh.check)

	mux.Handle("GET /metrics", promhttp.Handler())

	// Apply middleware chain: CORS -> RequestID -> Logging -> mux
	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = corsMiddleware(handler)

	return handler
}
