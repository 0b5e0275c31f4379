package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/davidromero/mercadillo/internal/config"
)

// bucketScript implements a token bucket atomically in Redis: refill from
// elapsed time, take one token, persist state with a TTL. Returns
// {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_s = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'refilled_ms')
local tokens = tonumber(state[1])
local refilled = tonumber(state[2])
if tokens == nil or refilled == nil then
  tokens = capacity
  refilled = now_ms
end

local elapsed = math.max(0, now_ms - refilled)
local steps = math.floor(elapsed / interval_ms)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  refilled = refilled + steps * interval_ms
end

local allowed = 0
local retry_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.max(0, interval_ms - (now_ms - refilled))
end

redis.call('HMSET', key, 'tokens', tokens, 'refilled_ms', refilled)
redis.call('EXPIRE', key, ttl_s)
return {allowed, tokens, retry_ms}
`)

// RateLimit applies a per-caller token bucket. The key combines client IP,
// authenticated user (when present) and route, so an abusive client cannot
// starve other users of the same endpoint. Redis being unavailable fails
// open: requests pass through unlimited.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg.Prefix, c)
			vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Int64Slice()
			if err != nil || len(vals) != 3 {
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func rateKey(prefix string, c echo.Context) string {
	caller := "anon"
	if v, ok := c.Get(CtxUserID).(uint64); ok && v != 0 {
		caller = strconv.FormatUint(v, 10)
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return fmt.Sprintf("%s:%s:%s:%s %s", prefix, ip, caller, c.Request().Method, c.Path())
}
