package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"retailpulse/internal/store"
)

// HealthHandler answers liveness and readiness probes.
type HealthHandler struct {
	store   store.RecordStore
	logger  *slog.Logger
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st store.RecordStore, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   st,
		logger:  logger.With(slog.String("handler", "health")),
		started: time.Now(),
	}
}

// HealthCheck handles GET /healthz. It reports ok only when the
// backing store answers a ping.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "store ping failed",
			slog.String("error", err.Error()))
		body["status"] = "degraded"
		body["store"] = err.Error()
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, body)
		return
	}
	body["store"] = "ok"
	render.JSON(w, r, body)
}

// LivenessCheck handles GET /healthz/live. It only confirms the
// process is serving requests.
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
