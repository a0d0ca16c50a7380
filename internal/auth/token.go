package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification failures. Expired and invalid are distinguished so the
// middleware can report the reason; both reject the request the same way.
var (
	// ErrTokenExpired means the token was well-formed and correctly signed
	// but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid means the token is malformed, uses the wrong signing
	// method, or carries a bad signature.
	ErrTokenInvalid = errors.New("invalid token")
)

// Session is the content of a verified session token: the subject identity,
// the token's own id (for the optional denylist), and its expiry.
type Session struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// Identity returns the request identity embedded in the session.
func (s *Session) Identity() Identity {
	return Identity{ID: s.UserID, Email: s.Email}
}

// sessionClaims is the JWT claim set for session tokens. Subject carries the
// user id; jti (RegisteredClaims.ID) makes individual tokens revocable.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenService mints and verifies signed, time-limited session tokens.
// Tokens are self-contained HS256 JWTs; the server stores nothing per token.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service signing with the given secret.
// The secret's presence is validated at config load; an empty secret here
// is a programming error, not a runtime condition.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if secret == "" {
		panic("auth: token service created without a signing secret")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime. The cookie Max-Age mirrors it.
func (t *TokenService) TTL() time.Duration {
	return t.ttl
}

// Sign mints a token for the given identity with an absolute expiry ttl from
// now. Each token gets a fresh jti so it can be individually denylisted.
func (t *TokenService) Sign(identity Identity) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Email: identity.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token. Returns ErrTokenExpired past expiry
// and ErrTokenInvalid for any structural or signature problem. There is no
// implicit renewal; a token close to expiry verifies like any other.
func (t *TokenService) Verify(tokenString string) (*Session, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}

	return &Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Decode parses a token WITHOUT verifying its signature or expiry. For
// diagnostics and logging only -- never use the result to authorize.
func (t *TokenService) Decode(tokenString string) (*Session, bool) {
	claims := &sessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, false
	}

	sess := &Session{
		UserID:  claims.Subject,
		Email:   claims.Email,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, true
}
