package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db     Pinger
	redis  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler over the two backing stores.
func NewHealthHandler(db, redis Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, logger: logger}
}

// Health reports liveness plus the state of postgres and redis. Either
// backing store being down degrades the response to 503.
// GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	overall := "ok"
	code := http.StatusOK

	database := "up"
	if err := h.db.Ping(ctx); err != nil {
		database = "down"
		overall = "degraded"
		code = http.StatusServiceUnavailable
		h.logger.WarnContext(ctx, "health: database ping failed", slog.String("error", err.Error()))
	}

	cache := "up"
	if err := h.redis.Ping(ctx); err != nil {
		cache = "down"
		overall = "degraded"
		code = http.StatusServiceUnavailable
		h.logger.WarnContext(ctx, "health: redis ping failed", slog.String("error", err.Error()))
	}

	writeJSON(w, code, map[string]string{
		"status":    overall,
		"database":  database,
		"redis":     cache,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
