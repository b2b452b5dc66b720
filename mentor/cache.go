package mentor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Adviser is implemented by anything able to produce mentorship text.
type Adviser interface {
	Advise(ctx context.Context, objectives string) (string, error)
}

// Cached wraps an Adviser with a per-user Redis TTL cache so repeated
// requests for an unchanged objective list do not hit the provider. Caching
// is best effort; Redis failures fall through to the underlying adviser.
type Cached struct {
	base  Adviser
	redis *redis.Client
	ttl   time.Duration
}

// NewCached creates the caching wrapper.
func NewCached(base Adviser, client *redis.Client, ttl time.Duration) *Cached {
	if base == nil {
		panic("mentor.NewCached: base adviser is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cached{base: base, redis: client, ttl: ttl}
}

// AdviseFor is Advise keyed by user and objective list, so one user's advice
// never leaks into another's cache slot and a changed list is advised afresh.
func (c *Cached) AdviseFor(ctx context.Context, userID, objectives string) (string, error) {
	key := adviceCacheKey(userID, objectives)
	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, key).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	advice, err := c.base.Advise(ctx, objectives)
	if err != nil {
		return "", err
	}

	if c.redis != nil && c.ttl > 0 {
		_ = c.redis.Set(ctx, key, advice, c.ttl).Err()
	}
	return advice, nil
}

func adviceCacheKey(userID, objectives string) string {
	sum := sha256.Sum256([]byte(objectives))
	return "advice:" + userID + ":" + hex.EncodeToString(sum[:8])
}
