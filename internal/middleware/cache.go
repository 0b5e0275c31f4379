package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/davidromero/mercadillo/internal/config"
)

// cachedResponse is the envelope stored in Redis for a cache entry.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder duplicates the response body into a buffer while writing it
// to the client, up to limit bytes. Oversized responses are passed through
// uncached.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	overflow bool
	limit    int
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.buf.Len()+len(b) > w.limit {
			w.overflow = true
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// ResponseCache caches successful GET responses in Redis for cfg.TTL,
// keyed by route and query string. Intended for the public read-only
// endpoints only; protected routes carry rotated tokens and must never be
// registered behind it. A nil Redis client disables caching entirely.
func ResponseCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := cacheKey(cfg.Prefix, c)
			ctx := c.Request().Context()

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var entry cachedResponse
				if json.Unmarshal(raw, &entry) == nil {
					c.Response().Header().Set(echo.HeaderContentType, entry.ContentType)
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(entry.Status, entry.ContentType, entry.Body)
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status == http.StatusOK && !rec.overflow {
				entry := cachedResponse{
					Status:      rec.status,
					ContentType: c.Response().Header().Get(echo.HeaderContentType),
					Body:        rec.buf.Bytes(),
				}
				if raw, err := json.Marshal(entry); err == nil {
					// Detached context: the request may already be done.
					storeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = rdb.SetEx(storeCtx, key, raw, cfg.TTL).Err()
				}
			}
			return nil
		}
	}
}

func cacheKey(prefix string, c echo.Context) string {
	sum := sha1.Sum([]byte(c.Request().URL.Path + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:%x", prefix, sum)
}
