package middleware

// identity.go holds the context keys shared between middleware and
// handlers.

import "github.com/labstack/echo/v4"

const (
    userIDKey    = "user_id"
    cacheableKey = "cacheable"
)

// UserID returns the authenticated user id, or "" for an anonymous
// request.
func UserID(c echo.Context) string {
    if v, ok := c.Get(userIDKey).(string); ok {
        return v
    }
    return ""
}

// MarkCacheable tells the response cache that the response being written
// will never change and may be stored.
func MarkCacheable(c echo.Context) { c.Set(cacheableKey, true) }

func cacheable(c echo.Context) bool {
    v, _ := c.Get(cacheableKey).(bool)
    return v
}
