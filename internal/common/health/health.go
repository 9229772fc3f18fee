// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// Check represents a single health check
type Check struct {
	Name   string         `json:"name"`
	Status Status         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// HealthResponse represents the health endpoint response
type HealthResponse struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks,omitempty"`
}

// CheckFunc performs a health check. It must return once ctx is done.
type CheckFunc func(ctx context.Context) Check

// DefaultTimeout bounds each check run by the HTTP handlers.
const DefaultTimeout = 2 * time.Second

// Checker manages health checks for the application
type Checker struct {
	mu              sync.RWMutex
	livenessChecks  []CheckFunc
	readinessChecks []CheckFunc
	timeout         time.Duration
}

// NewChecker creates a new health checker
func NewChecker() *Checker {
	return &Checker{timeout: DefaultTimeout}
}

// AddLivenessCheck adds a liveness check
func (c *Checker) AddLivenessCheck(check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.livenessChecks = append(c.livenessChecks, check)
}

// AddReadinessCheck adds a readiness check
func (c *Checker) AddReadinessCheck(check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readinessChecks = append(c.readinessChecks, check)
}

// runChecks runs checks concurrently; the response is DOWN if any is.
func (c *Checker) runChecks(ctx context.Context, checks []CheckFunc) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]Check, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check(ctx)
		}()
	}
	wg.Wait()

	response := HealthResponse{Status: StatusUp, Checks: results}
	for _, check := range results {
		if check.Status == StatusDown {
			response.Status = StatusDown
		}
	}
	return response
}

func (c *Checker) snapshot(liveness, readiness bool) []CheckFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var checks []CheckFunc
	if liveness {
		checks = append(checks, c.livenessChecks...)
	}
	if readiness {
		checks = append(checks, c.readinessChecks...)
	}
	return checks
}

// GetLiveness returns the liveness status
func (c *Checker) GetLiveness(ctx context.Context) HealthResponse {
	return c.runChecks(ctx, c.snapshot(true, false))
}

// GetReadiness returns the readiness status
func (c *Checker) GetReadiness(ctx context.Context) HealthResponse {
	return c.runChecks(ctx, c.snapshot(false, true))
}

// GetHealth returns the combined health status
func (c *Checker) GetHealth(ctx context.Context) HealthResponse {
	return c.runChecks(ctx, c.snapshot(true, true))
}

// HandleHealth handles the /q/health endpoint
func (c *Checker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.GetHealth(r.Context()))
}

// HandleLive handles the /q/health/live endpoint
func (c *Checker) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.GetLiveness(r.Context()))
}

// HandleReady handles the /q/health/ready endpoint
func (c *Checker) HandleReady(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, c.GetReadiness(r.Context()))
}

func writeResponse(w http.ResponseWriter, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")

	if response.Status == StatusDown {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// DatabaseCheck reports the store as DOWN when ping fails.
func DatabaseCheck(driver string, ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		if err := ping(ctx); err != nil {
			return Check{
				Name:   "Database",
				Status: StatusDown,
				Data: map[string]any{
					"driver": driver,
					"error":  err.Error(),
				},
			}
		}
		return Check{
			Name:   "Database",
			Status: StatusUp,
			Data:   map[string]any{"driver": driver},
		}
	}
}

// BusCheck reports the message bus as DOWN while disconnected.
func BusCheck(isConnected func() bool) CheckFunc {
	return func(context.Context) Check {
		if !isConnected() {
			return Check{Name: "NATS", Status: StatusDown}
		}
		return Check{Name: "NATS", Status: StatusUp}
	}
}
