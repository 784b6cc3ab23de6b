// Package health implements liveness and readiness checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/store"
)

// Checker reports service health over HTTP.
type Checker struct {
	postgres store.Pinger
	redis    store.Pinger
	logger   *zap.Logger
}

// NewChecker creates a health checker over the service dependencies.
func NewChecker(postgres, redis store.Pinger, logger *zap.Logger) *Checker {
	return &Checker{postgres: postgres, redis: redis, logger: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live reports process liveness. It never checks dependencies.
func (c *Checker) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Ready reports whether the service can take traffic. Both Postgres and
// Redis must answer a ping.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{
		"postgres": "ok",
		"redis":    "ok",
	}
	healthy := true

	if err := c.postgres.Ping(ctx); err != nil {
		c.logger.Warn("postgres ping failed", zap.Error(err))
		checks["postgres"] = err.Error()
		healthy = false
	}

	if err := c.redis.Ping(ctx); err != nil {
		c.logger.Warn("redis ping failed", zap.Error(err))
		checks["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	resp := healthResponse{Status: "ok", Checks: checks}
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "unavailable"
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
