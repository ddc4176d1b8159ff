package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
)

func userKey(email string) string    { return "cache:user:" + email }
func userGenKey(email string) string { return "cache:user:gen:" + email }
func tokenRKey(k string) string      { return "cache:token:" + k }

// userGenTTL outlives any in-flight fill by a wide margin; an expired counter
// reads as 0 again.
const userGenTTL = 24 * time.Hour

// fillIfGen sets KEYS[1] to ARGV[2] with PX ARGV[3] only when the counter at
// KEYS[2] (missing = 0) still equals ARGV[1].
var fillIfGen = redis.NewScript(`
local cur = redis.call("GET", KEYS[2])
if cur == false then cur = "0" end
if cur ~= ARGV[1] then return 0 end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// cachedUser is the JSON shape kept in Redis.
type cachedUser struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	PasswordHash         string    `json:"password_hash"`
	PasswordSalt         string    `json:"password_salt,omitempty"`
	PasswordScheme       string    `json:"password_scheme,omitempty"`
	Status               string    `json:"status"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	CalendarRefreshToken string    `json:"calendar_refresh_token,omitempty"`
	CapturedAt           time.Time `json:"captured_at"`
}

func toCached(u *entity.User) cachedUser {
	return cachedUser{
		ID:                   u.ID,
		Email:                u.Email,
		PasswordHash:         u.PasswordHash,
		PasswordSalt:         u.PasswordSalt,
		PasswordScheme:       u.PasswordScheme,
		Status:               string(u.Status),
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		CalendarRefreshToken: u.CalendarRefreshToken,
		CapturedAt:           time.Now().UTC(),
	}
}

func (c cachedUser) toUser() *entity.User {
	return &entity.User{
		ID:                   c.ID,
		Email:                c.Email,
		PasswordHash:         c.PasswordHash,
		PasswordSalt:         c.PasswordSalt,
		PasswordScheme:       c.PasswordScheme,
		Status:               entity.AccountStatus(c.Status),
		FirstName:            c.FirstName,
		LastName:             c.LastName,
		CalendarRefreshToken: c.CalendarRefreshToken,
	}
}

// RedisUserCache shares user records between instances. Coherence across
// instances is bounded by ttl; Invalidate removes the key for everyone.
type RedisUserCache struct {
	RDB    *redis.Client
	TTL    time.Duration
	Logger *logrus.Logger
}

func NewRedisUserCache(rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisUserCache {
	return &RedisUserCache{RDB: rdb, TTL: ttl, Logger: logger}
}

func (c *RedisUserCache) Get(ctx context.Context, email string) (*entity.User, bool) {
	var cu cachedUser
	ok, err := helpers.RedisGetJSON(ctx, c.RDB, userKey(email), &cu)
	if err != nil {
		c.warn(err, "user cache get failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return cu.toUser(), true
}

func (c *RedisUserCache) Put(ctx context.Context, email string, u *entity.User) {
	if u == nil {
		return
	}
	if err := helpers.RedisSetJSON(ctx, c.RDB, userKey(email), toCached(u), c.TTL); err != nil {
		c.warn(err, "user cache put failed")
	}
}

// Invalidate bumps the generation and drops the entry in one transaction.
func (c *RedisUserCache) Invalidate(ctx context.Context, email string) {
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, userGenKey(email))
		p.Expire(ctx, userGenKey(email), userGenTTL)
		return helpers.RedisDel(ctx, p, userKey(email))
	})
	if err != nil {
		c.warn(err, "user cache invalidate failed")
	}
}

func (c *RedisUserCache) Generation(ctx context.Context, email string) (uint64, bool) {
	gen, err := c.RDB.Get(ctx, userGenKey(email)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.warn(err, "user cache generation read failed")
		return 0, false
	}
	return gen, true
}

func (c *RedisUserCache) PutIfGeneration(ctx context.Context, email string, u *entity.User, gen uint64) bool {
	if u == nil {
		return false
	}
	b, err := json.Marshal(toCached(u))
	if err != nil {
		c.warn(err, "user cache encode failed")
		return false
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	stored, err := fillIfGen.Run(ctx, c.RDB,
		[]string{userKey(email), userGenKey(email)},
		strconv.FormatUint(gen, 10), b, ttl.Milliseconds(),
	).Int()
	if err != nil {
		c.warn(err, "user cache fill failed")
		return false
	}
	return stored == 1
}

func (c *RedisUserCache) warn(err error, msg string) {
	if c.Logger != nil {
		c.Logger.WithError(err).Warn(msg)
	}
}

// RedisTokenCache keeps signed tokens with a PX expiry equal to the cache
// window, so Redis drops them before the token itself expires. The token's
// expiry is stored alongside and re-checked on read.
type RedisTokenCache struct {
	RDB    *redis.Client
	TTL    time.Duration
	Skew   time.Duration
	Logger *logrus.Logger
}

func NewRedisTokenCache(rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisTokenCache {
	return &RedisTokenCache{RDB: rdb, TTL: ttl, Skew: DefaultTokenSkew, Logger: logger}
}

type cachedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *RedisTokenCache) Get(ctx context.Context, userID, email string) (string, time.Time, bool) {
	var ct cachedToken
	ok, err := helpers.RedisGetJSON(ctx, c.RDB, tokenRKey(tokenKey(userID, email)), &ct)
	if err != nil {
		if c.Logger != nil {
			c.Logger.WithError(err).Warn("token cache get failed")
		}
		return "", time.Time{}, false
	}
	if !ok || ct.Token == "" || !time.Now().Before(ct.ExpiresAt.Add(-c.Skew)) {
		return "", time.Time{}, false
	}
	return ct.Token, ct.ExpiresAt, true
}

func (c *RedisTokenCache) Put(ctx context.Context, userID, email, token string, tokenExpiresAt time.Time) {
	window := tokenWindow(time.Now(), c.TTL, c.Skew, tokenExpiresAt)
	if window <= 0 {
		return
	}
	err := helpers.RedisSetJSON(ctx, c.RDB, tokenRKey(tokenKey(userID, email)), cachedToken{Token: token, ExpiresAt: tokenExpiresAt}, window)
	if err != nil && c.Logger != nil {
		c.Logger.WithError(err).Warn("token cache put failed")
	}
}
