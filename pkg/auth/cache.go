package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCacheLifetime is how long a cached token is served before it is
// treated as absent. It is deliberately shorter than the identity provider's
// real token lifetime so refresh happens proactively, never at the deadline.
const DefaultCacheLifetime = 45 * time.Minute

// Cache is the single-slot process-wide token cache. It holds at most one
// token at a time; Set fully replaces the slot, and Clear overwrites the
// backing memory before dropping it so secret material does not linger in
// memory snapshots. The resolver owns the cache; the interceptor only reads
// through Get.
type Cache struct {
	mu         sync.Mutex
	token      []byte
	expiresAt  time.Time
	generation uint64
	lifetime   time.Duration
	now        func() time.Time
}

// NewCache creates an empty cache with the default lifetime window.
func NewCache() *Cache {
	return &Cache{
		lifetime: DefaultCacheLifetime,
		now:      time.Now,
	}
}

// Get returns the cached token if one is present and unexpired.
func (c *Cache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return string(c.token), true
}

// Set stores token with expiry = now + the fixed lifetime window. If the
// token is a JWT whose exp claim lands sooner, that earlier deadline wins.
// Any previously stored token is overwritten first.
func (c *Cache) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overwriteLocked()

	expiresAt := c.now().Add(c.lifetime)
	if claimExpiry, ok := jwtExpiry(token); ok && claimExpiry.Before(expiresAt) {
		expiresAt = claimExpiry
	}

	c.token = []byte(token)
	c.expiresAt = expiresAt
}

// SetIfGeneration stores token only when the cache generation still matches
// gen. Refresh callbacks use this so that a reset that raced with an in-flight
// resolution can never repopulate the cache afterwards.
func (c *Cache) SetIfGeneration(token string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}

	c.overwriteLocked()
	expiresAt := c.now().Add(c.lifetime)
	if claimExpiry, ok := jwtExpiry(token); ok && claimExpiry.Before(expiresAt) {
		expiresAt = claimExpiry
	}
	c.token = []byte(token)
	c.expiresAt = expiresAt
	return true
}

// Clear overwrites the stored token's backing memory with filler characters
// before dropping the reference, then bumps the generation so pending
// refreshes are discarded.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overwriteLocked()
	c.token = nil
	c.expiresAt = time.Time{}
	c.generation++
}

// Generation returns the current cache generation. Capture it before starting
// an asynchronous refresh and pass it to SetIfGeneration.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// overwriteLocked zeroes the current token bytes. Callers must hold c.mu.
func (c *Cache) overwriteLocked() {
	for i := range c.token {
		c.token[i] = 'x'
	}
}

// jwtExpiry extracts the exp claim from a JWT without verifying its
// signature. The token is already trusted for use; this parse only informs
// the cache deadline. Non-JWT tokens return ok=false.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}
