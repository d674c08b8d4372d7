package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/skillcalc/pkg/metrics"
)

// VersionProvider reports the calculation rules version.
type VersionProvider interface {
	Version() int
}

// HealthHandler handles health, version and metrics requests.
type HealthHandler struct {
	version VersionProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(v VersionProvider) *HealthHandler {
	return &HealthHandler{version: v}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleVersion handles GET /version requests.
func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"version": h.version.Version()})
}

// MetricsHandler serves the custom metrics registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
