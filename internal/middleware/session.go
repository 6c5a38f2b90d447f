package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/haggle-room/internal/utils"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "a2a_session"

// SessionAuth returns an Echo middleware that reads the session token from
// the session cookie, or from a Bearer Authorization header for API
// clients, and injects the user id into the request context under
// "user_id".  When required is false an absent or invalid token leaves
// the request anonymous instead of failing it.
func SessionAuth(secret string, required bool) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := sessionToken(c)
            if raw == "" {
                if required {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
                }
                return next(c)
            }
            uid, err := utils.ParseSessionToken(secret, raw)
            if err != nil {
                if required {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
                }
                return next(c)
            }
            c.Set(userIDKey, uid)
            return next(c)
        }
    }
}

func sessionToken(c echo.Context) string {
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie(SessionCookie); err == nil {
        return ck.Value
    }
    return ""
}
