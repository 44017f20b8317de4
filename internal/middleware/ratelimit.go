package middleware

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window, counts what is left
// and records the current request if the count is under the limit.
// KEYS[1]=key, ARGV = now, windowStart, windowSec, member, limit.
// Returns the new count, or -1 when the limit is reached.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`)

// Limiter decides whether one more request under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a sliding-window limiter shared by every API instance.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb redis.Scripter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowSec := int64(l.window.Seconds())
	member := fmt.Sprintf("%d-%d", now.Unix(), now.UnixNano())

	res, err := slidingWindow.Run(ctx, l.rdb, []string{key},
		now.Unix(), now.Unix()-windowSec, windowSec, member, l.limit).Int()
	if err != nil {
		return false, err
	}
	return res >= 0, nil
}

// RateLimit limits requests per client IP. Limiter errors let the request
// through.
func RateLimit(limiter Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("m2b:rate_limit:%s:ip:%s", scope, clientIP(r))

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Printf("WARN: rate limiter unavailable: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads RemoteAddr. Behind a proxy the router mounts chi's RealIP
// first, which rewrites it from X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
