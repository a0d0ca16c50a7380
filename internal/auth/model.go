// Package auth implements the credential-authentication core for Gatehouse:
// user registration, login, session-token issuance/verification, and
// protected-route gating. Handlers, service, store, hasher, and token
// service all live here; the HTTP bootstrap in internal/app only wires
// them together.
package auth

import (
	"strings"
	"time"
)

// User is a registered account. This is the domain model used throughout the
// package. The password hash never leaves the server; JSON marshaling is
// done through PublicUser instead.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Public returns the client-safe projection of the user (excludes the
// password hash). CreatedAt is only populated for the /auth/me response.
func (u *User) Public(withCreatedAt bool) PublicUser {
	p := PublicUser{ID: u.ID, Email: u.Email}
	if withCreatedAt {
		t := u.CreatedAt
		p.CreatedAt = &t
	}
	return p
}

// PublicUser is the subset of a user record safe to return to a client.
type PublicUser struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Identity is the {id, email} pair attached to an authenticated request by
// the session middleware. It lives only for the duration of that request.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the registration payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest holds the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest holds the change-password payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// normalizeEmail lowercases and trims an email address. Every store lookup
// and insert goes through this so email uniqueness is case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
