package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gatehouselabs/gatehouse/internal/apperror"
)

// bearerPrefix is the Authorization header scheme for token credentials.
const bearerPrefix = "Bearer "

// Context keys for storing session data in the Echo context. Downstream
// handlers read them through the exported getters below.
const (
	contextKeyIdentity = "auth_identity"
	contextKeySession  = "auth_session"
)

// RequireAuth returns middleware that gates protected routes. It extracts a
// token from the request, verifies it, resolves it to a live user, and
// attaches the identity to the request context -- or rejects with 401.
//
// Token source precedence: an explicit Authorization bearer credential wins
// over the cookie when both are present. Verification failures are never
// passed through; anything unexpected surfaces as a 500 via the error handler.
func RequireAuth(service *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return apperror.NewUnauthorized("No token provided")
			}

			sess, err := service.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(contextKeyIdentity, sess.Identity())
			c.Set(contextKeySession, sess)

			return next(c)
		}
	}
}

// extractToken pulls the session token from the request: the Authorization
// bearer header first, then the session cookie.
func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// CurrentIdentity retrieves the authenticated identity from the Echo
// context. ok is false when the request is not authenticated (RequireAuth
// not applied or not yet run).
func CurrentIdentity(c echo.Context) (Identity, bool) {
	identity, ok := c.Get(contextKeyIdentity).(Identity)
	return identity, ok
}

// currentSession retrieves the verified session, including the token id
// needed for revocation. Returns nil when the request is not authenticated.
func currentSession(c echo.Context) *Session {
	sess, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return sess
}
