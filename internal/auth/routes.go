package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all auth routes on the given Echo instance.
// Register/login/logout are public; me, change-password, and delete-account
// sit behind the session middleware.
func RegisterRoutes(e *echo.Echo, h *Handler, service *Service) {
	g := e.Group("/auth")

	// Public routes -- no session required. Logout included: it only
	// clears the cookie and must succeed even with a stale token.
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)

	// Protected routes.
	authed := g.Group("", RequireAuth(service))
	authed.GET("/me", h.Me)
	authed.PUT("/change-password", h.ChangePassword)
	authed.DELETE("/delete-account", h.DeleteAccount)
}
