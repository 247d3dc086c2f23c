package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Revocations remembers access tokens that were signed out locally so a
// restored copy of one is never trusted again.
type Revocations struct {
	cache *cache.Cache
}

// RevocationsConfig holds the configuration for Revocations.
type RevocationsConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// NewRevocations creates an empty revocation list.
func NewRevocations(cfg RevocationsConfig) *Revocations {
	return &Revocations{
		cache: cache.New(cfg.DefaultExpiration, cfg.CleanupInterval),
	}
}

// Revoke records token until expiresAt. Tokens already past expiry are
// rejected by their expiry anyway and are not stored.
func (r *Revocations) Revoke(token string, expiresAt time.Time) {
	if token == "" {
		return
	}
	ttl := time.Until(expiresAt)
	if expiresAt.IsZero() {
		ttl = cache.DefaultExpiration
	} else if ttl <= 0 {
		return
	}
	r.cache.Set(token, struct{}{}, ttl)
}

// IsRevoked reports whether token was revoked.
func (r *Revocations) IsRevoked(token string) bool {
	_, found := r.cache.Get(token)
	return found
}
