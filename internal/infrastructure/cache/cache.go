// Package cache holds the user record cache and the signed token cache used
// on the login path. Both come in an in-process flavour (bounded LRU with
// per-entry TTL) and a Redis flavour for deployments running more than one
// instance. Cache failures are never surfaced; they read as misses.
package cache

import (
	"context"
	"time"

	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
)

// UserCache maps a normalized email to a recently fetched user record.
//
// Read-through fills go through Generation and PutIfGeneration: read the
// generation before loading from the store, then store the loaded record only
// if no Invalidate happened in between. An invalidation therefore always wins
// over a fill that started before it.
type UserCache interface {
	Get(ctx context.Context, email string) (*entity.User, bool)
	Put(ctx context.Context, email string, u *entity.User)
	Invalidate(ctx context.Context, email string)
	// Generation returns the invalidation counter for email. ok is false when
	// it cannot be read, in which case the caller must not fill.
	Generation(ctx context.Context, email string) (gen uint64, ok bool)
	// PutIfGeneration stores u only while email is still at gen.
	PutIfGeneration(ctx context.Context, email string, u *entity.User, gen uint64) bool
}

// TokenCache maps (user id, email) to a previously signed token. Get returns
// the token together with the token's own expiry.
type TokenCache interface {
	Get(ctx context.Context, userID, email string) (string, time.Time, bool)
	Put(ctx context.Context, userID, email, token string, tokenExpiresAt time.Time)
}

// DefaultTokenSkew is subtracted from a token's own expiry when computing how
// long the cache may hand it out.
const DefaultTokenSkew = time.Minute

func tokenKey(userID, email string) string {
	return userID + ":" + email
}

// tokenWindow returns how long a token may stay cached: the configured ttl,
// but never past tokenExpiresAt-skew. A non-positive result means do not cache.
func tokenWindow(now time.Time, ttl, skew time.Duration, tokenExpiresAt time.Time) time.Duration {
	window := ttl
	if limit := tokenExpiresAt.Add(-skew).Sub(now); limit < window {
		window = limit
	}
	return window
}
