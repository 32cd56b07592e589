// Package handlers implements HTTP handlers for the ebay-connector API.
package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ReadinessResponse lists the dependencies that failed their check.
type ReadinessResponse struct {
	Status  string   `json:"status"            example:"unavailable"`
	Failing []string `json:"failing,omitempty" example:"redis"`
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler creates a HealthHandler that checks the database.
// Further dependencies are added with Check.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{deps: map[string]Pinger{"postgres": db}}
}

// Check adds a named dependency to the readiness probe.
func (h *HealthHandler) Check(name string, p Pinger) *HealthHandler {
	h.deps[name] = p
	return h
}

// Healthz answers 200 while the process runs.
func (*HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz answers 200 when every dependency is reachable and 503 with the
// failing names otherwise.
func (h *HealthHandler) Readyz(c echo.Context) error {
	ctx := c.Request().Context()
	var failing []string
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		return c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "unavailable", Failing: failing})
	}
	return c.JSON(http.StatusOK, ReadinessResponse{Status: "ready"})
}
