package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusOK        HealthStatus = "ok"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LatencyMS int64        `json:"latency_ms,omitempty"`
}

// HealthCheckResponse represents the overall health check response.
type HealthCheckResponse struct {
	Status        HealthStatus               `json:"status"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Timestamp     string                     `json:"timestamp"`
	Checks        map[string]ComponentHealth `json:"checks"`
}

// HealthChecker performs health checks on system components.
type HealthChecker struct {
	version   string
	startTime time.Time
	checks    map[string]HealthCheckFunc
}

// HealthCheckFunc defines a function that checks component health.
type HealthCheckFunc func(ctx context.Context) ComponentHealth

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheckFunc),
	}
}

// RegisterCheck registers a health check for a component.
func (hc *HealthChecker) RegisterCheck(name string, checkFunc HealthCheckFunc) {
	hc.checks[name] = checkFunc
}

// Check performs all health checks.
func (hc *HealthChecker) Check(ctx context.Context) HealthCheckResponse {
	response := HealthCheckResponse{
		Status:        HealthStatusOK,
		Version:       hc.version,
		UptimeSeconds: int64(time.Since(hc.startTime).Seconds()),
		Timestamp:     time.Now().Format(time.RFC3339),
		Checks:        make(map[string]ComponentHealth),
	}

	for name, checkFunc := range hc.checks {
		health := checkFunc(ctx)
		response.Checks[name] = health

		// Update overall status
		if health.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if health.Status == HealthStatusDegraded && response.Status != HealthStatusUnhealthy {
			response.Status = HealthStatusDegraded
		}
	}

	return response
}

// Handler returns an HTTP handler for health checks.
func (hc *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		response := hc.Check(ctx)

		w.Header().Set("Content-Type", "application/json")

		// Set HTTP status based on health
		switch response.Status {
		case HealthStatusOK:
			w.WriteHeader(http.StatusOK)
		case HealthStatusDegraded:
			w.WriteHeader(http.StatusOK) // Still 200 but degraded
		case HealthStatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// Common health check functions

// GRPCServerCheck reports the admin gRPC server as OK unconditionally; it
// does not probe the listener at addr.
func GRPCServerCheck(addr string) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		return ComponentHealth{
			Status:  HealthStatusOK,
			Message: fmt.Sprintf("admin gRPC server listening on %s", addr),
		}
	}
}

// BLEAdvertisingCheck reports OK when isUp returns true (cmd/valvecored
// passes Orchestrator.BLEUp: a connected peer) and degraded otherwise,
// including while the peripheral is only advertising.
func BLEAdvertisingCheck(isUp func() bool) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		if isUp() {
			return ComponentHealth{Status: HealthStatusOK, Message: "BLE transport up"}
		}
		return ComponentHealth{Status: HealthStatusDegraded, Message: "BLE transport down/advertising"}
	}
}

// MQTTBrokerCheck reports whether the MQTT transport holds a live broker
// connection.
func MQTTBrokerCheck(isConnected func() bool) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		if isConnected() {
			return ComponentHealth{Status: HealthStatusOK, Message: "MQTT broker connected"}
		}
		return ComponentHealth{Status: HealthStatusDegraded, Message: "MQTT broker disconnected"}
	}
}

// ErrorManagerHealthCheck surfaces the Error Manager's own health-level
// computation (spec §4.5) as a component health entry.
func ErrorManagerHealthCheck(level func() string) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		switch level() {
		case "CRITICAL", "FATAL":
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: "system health level " + level()}
		case "WARNING", "DEGRADED":
			return ComponentHealth{Status: HealthStatusDegraded, Message: "system health level " + level()}
		default:
			return ComponentHealth{Status: HealthStatusOK, Message: "system health level " + level()}
		}
	}
}
