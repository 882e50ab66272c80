package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/job-tracker/internal/core/ports"
)

// HealthHandler handles GET /health — liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// ReadinessHandler handles GET /health/ready — readiness probe.
// The node is ready once every core subscription has its initial data.
type ReadinessHandler struct {
	subs ports.SubscriptionManager
}

func NewReadinessHandler(subs ports.SubscriptionManager) *ReadinessHandler {
	return &ReadinessHandler{subs: subs}
}

func (h *ReadinessHandler) Readiness(c echo.Context) error {
	status := map[string]bool{
		ports.SubJobs:      h.subs.IsReady(ports.SubJobs),
		ports.SubLocations: h.subs.IsReady(ports.SubLocations),
		ports.SubUsers:     h.subs.IsReady(ports.SubUsers),
	}
	for _, ready := range status {
		if !ready {
			return c.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return c.JSON(http.StatusOK, status)
}
