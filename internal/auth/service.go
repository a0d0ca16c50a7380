package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatehouselabs/gatehouse/internal/apperror"
)

// loginFailedMessage is the single message for every credential failure on
// login. Using one message for "no such email" and "wrong password" prevents
// account enumeration.
const loginFailedMessage = "Invalid email or password"

// Service implements the authentication business logic. Handlers call these
// methods -- they never touch the store, hasher, or token service directly.
//
// Password hashing is CPU-bound but runs on the calling request's goroutine:
// the Go scheduler already spreads request goroutines across cores, so one
// expensive hash cannot stall unrelated requests.
type Service struct {
	store    UserStore
	tokens   *TokenService
	denylist *Denylist // nil when Redis is not configured
}

// NewService creates the auth service. denylist may be nil, in which case
// tokens are never revoked and remain valid until their own expiry.
func NewService(store UserStore, tokens *TokenService, denylist *Denylist) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		denylist: denylist,
	}
}

// Register creates a new account and mints a session token for it.
// Returns Conflict if the email (any case) is already registered.
func (s *Service) Register(ctx context.Context, email, password string) (*User, string, error) {
	// Check for duplicates before doing expensive hashing. The store's
	// Create re-checks atomically, so a concurrent registration slipping
	// past this read still cannot produce two records.
	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, "", apperror.NewConflict("An account with this email already exists")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user, err := s.store.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, "", apperror.NewConflict("An account with this email already exists")
		}
		return nil, "", apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	token, err := s.tokens.Sign(Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("minting session token: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, token, nil
}

// Login authenticates by email and password and mints a session token.
// Every credential failure gets the same Unauthorized message.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", apperror.NewUnauthorized(loginFailedMessage)
		}
		return nil, "", apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, "", apperror.NewUnauthorized(loginFailedMessage)
	}

	token, err := s.tokens.Sign(Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("minting session token: %w", err))
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, token, nil
}

// Authenticate verifies a session token and resolves it to a live user.
// This is the middleware's whole job: expired, malformed, revoked, and
// deleted-subject tokens all come back Unauthorized with a reason.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	sess, err := s.tokens.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			return nil, apperror.NewUnauthorized("Token expired")
		case errors.Is(err, ErrTokenInvalid):
			return nil, apperror.NewUnauthorized("Invalid token")
		default:
			return nil, apperror.NewInternal(fmt.Errorf("verifying token: %w", err))
		}
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, sess.TokenID)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("checking denylist: %w", err))
		}
		if revoked {
			return nil, apperror.NewUnauthorized("Token revoked")
		}
	}

	// Confirm the subject still exists: a valid token for a deleted user
	// must not authenticate.
	user, err := s.store.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.NewUnauthorized("User no longer exists")
		}
		return nil, apperror.NewInternal(fmt.Errorf("resolving token subject: %w", err))
	}

	// Attach the live record's identity, not the token's copy.
	sess.UserID = user.ID
	sess.Email = user.Email

	return sess, nil
}

// CurrentUser re-fetches the authenticated user's record by id. Catches the
// case where the record vanished after the token was issued.
func (s *Service) CurrentUser(ctx context.Context, id string) (*User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.NewNotFound("User no longer exists")
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	return user, nil
}

// ChangePassword re-verifies the current password before storing a new hash.
// A wrong current password leaves the stored hash untouched.
func (s *Service) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperror.NewNotFound("User no longer exists")
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !VerifyPassword(currentPassword, user.PasswordHash) {
		return apperror.NewUnauthorized("Current password is incorrect")
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := s.store.UpdatePasswordHash(ctx, id, hash); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperror.NewNotFound("User no longer exists")
		}
		return apperror.NewInternal(fmt.Errorf("updating password hash: %w", err))
	}

	slog.Info("password changed", slog.String("user_id", id))

	return nil
}

// DeleteAccount removes the user's record. Returns NotFound if already gone.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperror.NewNotFound("User no longer exists")
		}
		return apperror.NewInternal(fmt.Errorf("deleting user: %w", err))
	}

	slog.Info("account deleted", slog.String("user_id", id))

	return nil
}

// RevokeSession denylists the session's token id until its expiry. A no-op
// when no denylist is configured (tokens then simply ride out their TTL) and
// best-effort otherwise: the account deletion already happened, so a Redis
// hiccup is logged rather than surfaced.
func (s *Service) RevokeSession(ctx context.Context, sess *Session) {
	if s.denylist == nil || sess == nil {
		return
	}
	if err := s.denylist.Revoke(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
		slog.Warn("failed to revoke session token",
			slog.String("token_id", sess.TokenID),
			slog.Any("error", err),
		)
	}
}
