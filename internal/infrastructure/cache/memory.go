package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
)

type userEntry struct {
	user       *entity.User
	capturedAt time.Time
}

// genStripes is the number of invalidation counters shared by all emails.
// Two emails on one stripe only cost each other a skipped fill.
const genStripes = 256

// MemoryUserCache is a process-local, capacity-bounded user cache. Entries
// expire after ttl regardless of use, which bounds staleness for records
// changed by a path that does not call Invalidate.
type MemoryUserCache struct {
	lru *expirable.LRU[string, userEntry]

	mu   sync.Mutex
	gens [genStripes]uint64
}

func NewMemoryUserCache(size int, ttl time.Duration) *MemoryUserCache {
	return &MemoryUserCache{lru: expirable.NewLRU[string, userEntry](size, nil, ttl)}
}

func stripe(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % genStripes)
}

// Get returns a copy of the cached record; callers may mutate it freely.
func (c *MemoryUserCache) Get(_ context.Context, email string) (*entity.User, bool) {
	e, ok := c.lru.Get(email)
	if !ok {
		return nil, false
	}
	return e.user.Clone(), true
}

func (c *MemoryUserCache) Put(_ context.Context, email string, u *entity.User) {
	if u == nil {
		return
	}
	c.lru.Add(email, userEntry{user: u.Clone(), capturedAt: time.Now()})
}

func (c *MemoryUserCache) Invalidate(_ context.Context, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[stripe(email)]++
	c.lru.Remove(email)
}

func (c *MemoryUserCache) Generation(_ context.Context, email string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[stripe(email)], true
}

func (c *MemoryUserCache) PutIfGeneration(_ context.Context, email string, u *entity.User, gen uint64) bool {
	if u == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[stripe(email)] != gen {
		return false
	}
	c.lru.Add(email, userEntry{user: u.Clone(), capturedAt: time.Now()})
	return true
}

// CapturedAt reports when the entry for email was stored.
func (c *MemoryUserCache) CapturedAt(email string) (time.Time, bool) {
	e, ok := c.lru.Peek(email)
	if !ok {
		return time.Time{}, false
	}
	return e.capturedAt, true
}

func (c *MemoryUserCache) Len() int { return c.lru.Len() }

type tokenEntry struct {
	token          string
	tokenExpiresAt time.Time
	expiresAt      time.Time
}

// MemoryTokenCache is a process-local, capacity-bounded token cache. On
// overflow the least recently used entry goes first.
type MemoryTokenCache struct {
	lru  *expirable.LRU[string, tokenEntry]
	ttl  time.Duration
	skew time.Duration
	now  func() time.Time
}

func NewMemoryTokenCache(size int, ttl time.Duration) *MemoryTokenCache {
	return &MemoryTokenCache{
		lru:  expirable.NewLRU[string, tokenEntry](size, nil, ttl),
		ttl:  ttl,
		skew: DefaultTokenSkew,
		now:  time.Now,
	}
}

func (c *MemoryTokenCache) Get(_ context.Context, userID, email string) (string, time.Time, bool) {
	key := tokenKey(userID, email)
	e, ok := c.lru.Get(key)
	if !ok {
		return "", time.Time{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return "", time.Time{}, false
	}
	return e.token, e.tokenExpiresAt, true
}

func (c *MemoryTokenCache) Put(_ context.Context, userID, email, token string, tokenExpiresAt time.Time) {
	now := c.now()
	window := tokenWindow(now, c.ttl, c.skew, tokenExpiresAt)
	if window <= 0 {
		return
	}
	c.lru.Add(tokenKey(userID, email), tokenEntry{token: token, tokenExpiresAt: tokenExpiresAt, expiresAt: now.Add(window)})
}

func (c *MemoryTokenCache) Len() int { return c.lru.Len() }
