package http

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fieldops/job-tracker/internal/core/ports"
	"github.com/fieldops/job-tracker/internal/infrastructure/http/handlers"
)

// NewRouter builds the operational Echo instance: health probes and the
// Prometheus scrape endpoint. The core itself exposes no wire API; this
// surface exists for operators only.
func NewRouter(subs ports.SubscriptionManager) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// --- Global middleware ---
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("jobtracker_ops"))

	// --- Health probes ---
	healthHandler := handlers.NewHealthHandler()
	readinessHandler := handlers.NewReadinessHandler(subs)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)

	// --- Metrics ---
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
