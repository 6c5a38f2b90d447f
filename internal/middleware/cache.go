package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/haggle-room/internal/config"
)

// bodyRecorder tees the response body into buf while forwarding it.
// overflow is set once more than limit bytes were written.
type bodyRecorder struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int
    overflow bool
}

func (w *bodyRecorder) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

func (w *bodyRecorder) Write(b []byte) (int, error) {
    if !w.overflow {
        if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
            w.overflow = true
            w.buf.Reset()
        } else {
            w.buf.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

// cachedResponse is what is stored under a cache key.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h"`
    Body   []byte      `json:"b"`
}

// cacheKey hashes the concrete request path and query.  The route
// template is never used, so two rooms never share an entry.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    u := c.Request().URL
    sum := sha1.Sum([]byte(u.Path + "?" + u.RawQuery))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// NewRedisCache serves stored responses for matching requests and stores
// a response only when the handler called MarkCacheable, so anything that
// can still change is always computed fresh.  Headers are stored with the
// body so clients see identical formatting on a hit.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 5 * time.Minute
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            key := cacheKey(cfg, c)

            if hit, ok := lookup(c.Request().Context(), rdb, key); ok {
                h := c.Response().Header()
                for k, vals := range hit.Header {
                    if strings.EqualFold(k, "Content-Length") {
                        continue
                    }
                    for _, v := range vals {
                        h.Add(k, v)
                    }
                }
                h.Set("X-Cache", "HIT")
                c.Response().WriteHeader(hit.Status)
                _, err := c.Response().Write(hit.Body)
                return err
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflow || !cacheable(c) {
                return nil
            }
            payload, err := json.Marshal(cachedResponse{
                Status: rec.status,
                Header: c.Response().Header().Clone(),
                Body:   rec.buf.Bytes(),
            })
            if err != nil {
                return nil
            }
            // The request context may be gone once the body is flushed.
            if err := rdb.Set(context.Background(), key, payload, ttl).Err(); err != nil {
                log.Printf("cache: store %s: %v", key, err)
            }
            return nil
        }
    }
}

func lookup(ctx context.Context, rdb *redis.Client, key string) (cachedResponse, bool) {
    bs, err := rdb.Get(ctx, key).Bytes()
    if err != nil {
        return cachedResponse{}, false
    }
    var hit cachedResponse
    if err := json.Unmarshal(bs, &hit); err != nil || hit.Status == 0 {
        return cachedResponse{}, false
    }
    return hit, true
}
