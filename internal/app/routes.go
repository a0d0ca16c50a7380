package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gatehouselabs/gatehouse/internal/auth"
)

// RegisterRoutes sets up all application routes: the health endpoints and
// the auth module. This is the single place where routes are aggregated.
func (a *App) RegisterRoutes(h *auth.Handler, service *auth.Service) {
	e := a.Echo

	// Root ping, useful as a load balancer target.
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"service": "gatehouse"})
	})

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	auth.RegisterRoutes(e, h, service)
}
