package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store sentinel errors. The service maps these to client-facing apperror
// values; they never reach the HTTP boundary directly.
var (
	// ErrUserNotFound is returned by lookups and mutations that miss.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned by Create when the normalized email is
	// already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// UserStore is the data access contract for user records. Implementations
// must serialize mutations with respect to each other and to uniqueness
// checks -- email uniqueness is a collection-wide invariant, so Create is
// atomic: it performs its own duplicate check and insert as one operation.
// Concurrent reads may proceed freely.
type UserStore interface {
	// FindByEmail looks up a user by email, case-insensitively.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID looks up a user by id.
	FindByID(ctx context.Context, id string) (*User, error)

	// EmailExists reports whether the normalized email is registered.
	// A cheap pre-check so registration can skip the expensive hash for
	// the common duplicate case; Create re-checks atomically regardless.
	EmailExists(ctx context.Context, email string) (bool, error)

	// Create assigns a fresh id, normalizes the email, and inserts the
	// record. Returns ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, email, passwordHash string) (*User, error)

	// UpdatePasswordHash replaces the stored hash in place. Returns
	// ErrUserNotFound if no record exists. No other field is ever mutated.
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// Delete removes the record. Returns ErrUserNotFound if already gone.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the reference UserStore: memory-resident and non-durable.
// A single RWMutex guards the whole collection -- uniqueness is a
// collection-wide invariant, so per-record locking would not be enough.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string // normalized email -> user id
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

// FindByEmail looks up a user by email, case-insensitively.
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(s.byID[id]), nil
}

// FindByID looks up a user by id.
func (s *MemoryStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

// EmailExists reports whether the normalized email is registered.
func (s *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[normalizeEmail(email)]
	return ok, nil
}

// Create inserts a new user. The duplicate check and the insert happen under
// one write lock, so two concurrent registrations for the same email cannot
// both succeed.
func (s *MemoryStore) Create(_ context.Context, email, passwordHash string) (*User, error) {
	norm := normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[norm]; ok {
		return nil, ErrEmailTaken
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        norm,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	s.byID[user.ID] = user
	s.byEmail[norm] = user.ID

	return copyUser(user), nil
}

// UpdatePasswordHash replaces the stored hash for an existing user.
func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

// Delete removes a user record.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byEmail, user.Email)
	delete(s.byID, id)
	return nil
}

// copyUser returns a copy so callers never hold a pointer into the store's
// collection. Without this, a returned record could be mutated (or observed
// mid-mutation) outside the lock.
func copyUser(u *User) *User {
	cp := *u
	return &cp
}
