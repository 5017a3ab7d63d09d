package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmarkin/regimecast-ai-go/internal/services"
)

var startTime = time.Now()

// Pinger is any dependency that can be health-checked with a context.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// ProviderChecker reports reachability of the market-data provider.
type ProviderChecker interface {
	CheckProvider(ctx context.Context) error
}

// SystemStatsSource reports host resource usage for the health payload.
type SystemStatsSource interface {
	Stats(ctx context.Context) services.SystemStats
}

// HealthHandler serves liveness, readiness, and dependency status. Nil
// dependencies are reported as not configured and excluded from the
// overall verdict.
type HealthHandler struct {
	db       Pinger
	redis    Pinger
	provider ProviderChecker
	system   SystemStatsSource
	version  string
}

// HealthResponse is the full health payload.
type HealthResponse struct {
	Status    string               `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Services  map[string]string    `json:"services"`
	System    services.SystemStats `json:"system"`
	Version   string               `json:"version"`
	Uptime    string               `json:"uptime"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db, redis Pinger, provider ProviderChecker, system SystemStatsSource, version string) *HealthHandler {
	return &HealthHandler{
		db:       db,
		redis:    redis,
		provider: provider,
		system:   system,
		version:  version,
	}
}

// HealthCheck reports the status of every dependency plus system resource
// usage. Any failing configured dependency degrades the overall status to
// unhealthy and the response to 503.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	statuses := make(map[string]string)

	check := func(name string, err error, configured bool) {
		switch {
		case !configured:
			statuses[name] = "not configured"
		case err != nil:
			statuses[name] = "unhealthy: " + err.Error()
		default:
			statuses[name] = "healthy"
		}
	}

	if h.db != nil {
		check("database", h.db.HealthCheck(ctx), true)
	} else {
		check("database", nil, false)
	}
	if h.redis != nil {
		check("redis", h.redis.HealthCheck(ctx), true)
	} else {
		check("redis", nil, false)
	}
	if h.provider != nil {
		check("marketdata", h.provider.CheckProvider(ctx), true)
	} else {
		check("marketdata", nil, false)
	}

	overall := "healthy"
	for _, status := range statuses {
		if status != "healthy" && status != "not configured" {
			overall = "unhealthy"
			break
		}
	}

	var system services.SystemStats
	if h.system != nil {
		system = h.system.Stats(ctx)
	}

	response := HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Services:  statuses,
		System:    system,
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if overall == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ReadinessCheck requires every configured dependency to answer before the
// instance accepts traffic.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	statuses := make(map[string]string)
	ready := true

	record := func(name string, err error) {
		if err != nil {
			statuses[name] = "not ready"
			ready = false
		} else {
			statuses[name] = "ready"
		}
	}

	if h.db != nil {
		record("database", h.db.HealthCheck(ctx))
	}
	if h.redis != nil {
		record("redis", h.redis.HealthCheck(ctx))
	}
	if h.provider != nil {
		record("marketdata", h.provider.CheckProvider(ctx))
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"ready":    ready,
		"services": statuses,
	}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// LivenessCheck answers whenever the process is responsive.
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
