package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/application"
)

const serviceName = "connections"

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service,omitempty"`
	Module  string `json:"module,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// ReadyResponse lists the dependencies checked by /ready.
type ReadyResponse struct {
	OK           bool              `json:"ok"`
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	enabled  bool
	checkers []application.HealthChecker
	timeout  time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(enabled bool, checkers ...application.HealthChecker) *HealthHandler {
	return &HealthHandler{
		enabled:  enabled,
		checkers: checkers,
		timeout:  2 * time.Second,
	}
}

// RegisterHealthRoutes registers health check endpoints.
// these are public and don't require authentication.
func (h *HealthHandler) RegisterHealthRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/api/health", h.Health)
	e.GET("/api/connections/health", h.ModuleHealth)
	e.GET("/ready", h.Ready)
}

// Health returns the basic health status.
// used for liveness checks.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		OK:      true,
		Service: serviceName,
	})
}

// ModuleHealth reports the connections module and whether it is enabled.
func (h *HealthHandler) ModuleHealth(c echo.Context) error {
	enabled := h.enabled
	return c.JSON(http.StatusOK, HealthResponse{
		OK:      true,
		Module:  serviceName,
		Enabled: &enabled,
	})
}

// Ready checks every dependency; any failure answers 503.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp := ReadyResponse{
		OK:           true,
		Status:       "ready",
		Dependencies: make(map[string]string, len(h.checkers)),
	}

	for _, checker := range h.checkers {
		if err := checker.Check(ctx); err != nil {
			resp.OK = false
			resp.Status = "not_ready"
			resp.Dependencies[checker.Name()] = err.Error()
			continue
		}
		resp.Dependencies[checker.Name()] = "ok"
	}

	code := http.StatusOK
	if !resp.OK {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}
