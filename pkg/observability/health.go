package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker provides liveness and readiness probes. Redis is an
// optional dependency: a missing client degrades the report instead of
// failing it.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Liveness always returns 200 while the process is running.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness checks all dependencies and returns 503 when unhealthy.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check probes every dependency.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: map[string]DependencyStatus{},
	}

	if h.db != nil {
		dep := DependencyStatus{Status: StatusHealthy}
		if err := h.db.PingContext(ctx); err != nil {
			dep = DependencyStatus{Status: StatusUnhealthy, Message: err.Error()}
			status.Status = StatusUnhealthy
		}
		status.Dependencies["postgres"] = dep
	} else {
		status.Status = StatusUnhealthy
		status.Dependencies["postgres"] = DependencyStatus{
			Status:  StatusUnhealthy,
			Message: "not configured",
		}
	}

	if h.redis != nil {
		dep := DependencyStatus{Status: StatusHealthy}
		if err := h.redis.Ping(ctx).Err(); err != nil {
			// Redis only backs the role cache; losing it degrades
			// rather than fails readiness.
			dep = DependencyStatus{Status: StatusUnhealthy, Message: err.Error()}
			if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}
		}
		status.Dependencies["redis"] = dep
	}

	return status
}
