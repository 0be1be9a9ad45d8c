package router // package router defines how HTTP routes are registered for the admin API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the login endpoint.  limit wraps it, usually with
// the Redis token bucket.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, limit)
}

// RegisterAdmin registers the operator views behind JWT and role checks.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(utils.RoleOperator))
	g.GET("/flights", h.ListFlights)
	g.GET("/flights/:ref", h.GetFlight)
	g.GET("/invoices/:agency", h.GetInvoice)
	g.GET("/history", h.GetHistory)
}
