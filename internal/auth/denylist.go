package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// denylistKeyPrefix is the Redis key prefix for revoked token ids.
const denylistKeyPrefix = "revoked:"

// Denylist records revoked token ids in Redis. Session tokens are stateless
// by default; the denylist exists so delete-account can kill the presented
// token immediately instead of letting it ride out its expiry window.
//
// Entries expire together with the token they revoke, so the set stays
// bounded by the token TTL.
type Denylist struct {
	rdb *redis.Client
}

// NewDenylist creates a denylist backed by the given Redis client.
func NewDenylist(rdb *redis.Client) *Denylist {
	return &Denylist{rdb: rdb}
}

// Revoke marks a token id as revoked until the token's own expiry. Revoking
// an already-expired token is a no-op.
func (d *Denylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	key := denylistKeyPrefix + tokenID
	if err := d.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("storing revoked token id: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token id has been revoked.
func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denylistKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("checking revoked token id: %w", err)
	}
	return n > 0, nil
}
