package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/pizza-service/internal/config"
)

// bucketScript takes one token from the bucket at KEYS[1], refilling it
// in whole intervals first.  It returns {allowed, tokens left, ms until
// the next refill when denied}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', key, 'tokens'))
local stamp = tonumber(redis.call('HGET', key, 'stamp'))
if tokens == nil or stamp == nil then
  tokens = capacity
  stamp = now
end

local steps = math.floor(math.max(0, now - stamp) / interval)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  stamp = stamp + steps * interval
end

local allowed = 0
local wait = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.max(0, interval - (now - stamp))
end

redis.call('HSET', key, 'tokens', tokens, 'stamp', stamp)
redis.call('PEXPIRE', key, ttl_ms)
return {allowed, tokens, wait}
`)

type bucketResult struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

// tokenBucket is a Redis-backed bucket shared by every API instance.
type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (b tokenBucket) take(ctx context.Context, key string, now time.Time) (bucketResult, error) {
	v, err := bucketScript.Run(ctx, b.rdb, []string{key},
		now.UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		b.cfg.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return bucketResult{}, err
	}
	if len(v) != 3 {
		return bucketResult{}, redis.Nil
	}
	return bucketResult{
		allowed:   v[0] == 1,
		remaining: v[1],
		wait:      time.Duration(v[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key with a token bucket kept in
// Redis.  It is a pass-through when disabled or without Redis, and fails
// open on Redis errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := tokenBucket{cfg: cfg, rdb: rdb}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := b.take(c.Request().Context(), key, time.Now())
			if err != nil {
				log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if res.allowed {
				return next(c)
			}

			secs := int((res.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.Debug("rate limited", zap.String("key", key), zap.Duration("wait", res.wait))
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"message":     "too many requests",
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey joins the parts selected by cfg.KeyStrategy, an
// underscore-separated list of ip, user and route.  Unknown strategies
// use all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	values := map[string]string{
		"ip":    ip,
		"user":  userID(c),
		"route": c.Request().Method + " " + c.Path(),
	}

	parts := []string{cfg.Prefix}
	for _, name := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		if v, ok := values[name]; ok {
			parts = append(parts, name, v)
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "ip", ip, "user", values["user"], "route", values["route"])
	}
	return strings.Join(parts, ":")
}
