// Package ratelimit guards the public account endpoints with per-client
// quotas counted in Redis, so every replica shares the same window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithExpiry counts a hit and stamps the window TTL on first use.
var incrWithExpiry = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return hits
`)

const redisTimeout = 2 * time.Second

// Limiter enforces a fixed-window quota for one endpoint. The zero window
// slot rolls over automatically because keys carry the slot number and
// expire with the window.
type Limiter struct {
	scope  string
	quota  int
	window time.Duration
	client *redis.Client
}

// New builds a limiter. scope namespaces the Redis keys per endpoint.
func New(addr, password, scope string, quota int, window time.Duration) (*Limiter, error) {
	if quota <= 0 || window <= 0 {
		return nil, errors.New("ratelimit: quota and window must be positive")
	}
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("ratelimit: redis addr is required")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "soc:ratelimit"
	}
	return &Limiter{
		scope:  scope,
		quota:  quota,
		window: window,
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
	}, nil
}

// Allow reports whether the client identified by key has quota left in the
// current window. A nil limiter means the endpoint is unlimited. Redis
// failures count against the caller: the limiter fails closed.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.scope, key, slot)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	hits, err := incrWithExpiry.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return hits <= int64(l.quota)
}
