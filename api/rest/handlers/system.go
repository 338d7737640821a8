package handlers

import (
	"context"
	"net/http"
	"time"

	"ml-orchestrator/core/logging"

	"go.uber.org/zap"
)

// Version is reported by the service banner
const Version = "1.0.0"

// Pinger reports whether the job ledger database is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves the banner and health endpoints
type SystemHandler struct {
	db Pinger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{db: db}
}

// Root handles GET /
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ML Service is operational",
		"version": Version,
	})
}

// Health handles GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("Health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
