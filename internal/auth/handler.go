package auth

import (
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gatehouselabs/gatehouse/internal/apperror"
)

// cookieName is the HTTP cookie that carries the session token. The client
// never reads the value; the cookie is the sole session transport for
// browsers (API clients may send it as a bearer header instead).
const cookieName = "token"

// Password length bounds. The upper bound caps hashing cost; argon2id has
// no 72-byte cliff like bcrypt, but unbounded input is still a DoS vector.
const (
	passwordMinLen = 8
	passwordMaxLen = 128
)

// CookieConfig controls the session cookie's security attributes.
type CookieConfig struct {
	// Secure marks the cookie HTTPS-only. On in production.
	Secure bool

	// TTL is the cookie Max-Age; it mirrors the token TTL.
	TTL time.Duration
}

// Handler handles HTTP requests for authentication. Handlers are thin: they
// bind the request, call the service, and render the response. No business
// logic lives here.
type Handler struct {
	service *Service
	cookie  CookieConfig
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service *Service, cookie CookieConfig) *Handler {
	return &Handler{service: service, cookie: cookie}
}

// --- Response shapes ---

type messageResponse struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	Message string     `json:"message"`
	User    PublicUser `json:"user"`
}

type userResponse struct {
	User PublicUser `json:"user"`
}

// Register creates a new account (POST /auth/register). On success the
// session token is set as a secure cookie and the public projection returned.
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Invalid request body")
	}

	if err := validateCredentials(req.Email, req.Password); err != nil {
		return err
	}

	user, token, err := h.service.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setTokenCookie(c, token)

	return c.JSON(http.StatusCreated, sessionResponse{
		Message: "User registered successfully",
		User:    user.Public(false),
	})
}

// Login authenticates an existing account (POST /auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperror.NewValidation("Email and password are required")
	}

	user, token, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setTokenCookie(c, token)

	return c.JSON(http.StatusOK, sessionResponse{
		Message: "Login successful",
		User:    user.Public(false),
	})
}

// Logout clears the session cookie (POST /auth/logout). Succeeds whether or
// not a valid token was presented -- logout is idempotent, and the server
// keeps no session state to destroy.
func (h *Handler) Logout(c echo.Context) error {
	h.clearTokenCookie(c)

	return c.JSON(http.StatusOK, messageResponse{Message: "Logout successful"})
}

// Me returns the authenticated user's record (GET /auth/me). The record is
// re-fetched by id so a deleted-but-still-token-valid user surfaces as 404.
func (h *Handler) Me(c echo.Context) error {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return apperror.NewUnauthorized("Authentication required")
	}

	user, err := h.service.CurrentUser(c.Request().Context(), identity.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, userResponse{User: user.Public(true)})
}

// ChangePassword replaces the account password (PUT /auth/change-password).
// The current password is re-verified first.
func (h *Handler) ChangePassword(c echo.Context) error {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return apperror.NewUnauthorized("Authentication required")
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Invalid request body")
	}
	if req.CurrentPassword == "" {
		return apperror.NewValidation("Current password is required")
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}

	if err := h.service.ChangePassword(c.Request().Context(), identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

// DeleteAccount removes the account (DELETE /auth/delete-account), revokes
// the presented token when a denylist is configured, and clears the cookie.
func (h *Handler) DeleteAccount(c echo.Context) error {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return apperror.NewUnauthorized("Authentication required")
	}

	if err := h.service.DeleteAccount(c.Request().Context(), identity.ID); err != nil {
		return err
	}

	h.service.RevokeSession(c.Request().Context(), currentSession(c))
	h.clearTokenCookie(c)

	return c.JSON(http.StatusOK, messageResponse{Message: "Account deleted successfully"})
}

// --- Cookie helpers ---

// setTokenCookie sets the session cookie on the response. HttpOnly so JS
// can't read it, SameSite=Strict so it never rides cross-site requests,
// Secure in production, Max-Age matching the token TTL.
func (h *Handler) setTokenCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.cookie.TTL.Seconds()),
	})
}

// clearTokenCookie removes the session cookie by setting MaxAge to -1.
func (h *Handler) clearTokenCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// --- Validation helpers ---

// validateCredentials checks the registration payload. Field-level failures
// are 422s with the offending field named.
func validateCredentials(email, password string) error {
	if email == "" {
		return apperror.NewValidation("Email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperror.NewValidation("Email address is not valid")
	}
	return validatePassword(password)
}

// validatePassword checks password length bounds.
func validatePassword(password string) error {
	if password == "" {
		return apperror.NewValidation("Password is required")
	}
	if len(password) < passwordMinLen {
		return apperror.NewValidation("Password must be at least 8 characters")
	}
	if len(password) > passwordMaxLen {
		return apperror.NewValidation("Password must be at most 128 characters")
	}
	return nil
}
