package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/haggle-room/internal/middleware"
	"github.com/iliyamo/haggle-room/internal/repository"
	"github.com/iliyamo/haggle-room/internal/service"
)

// Logins is the OAuth use-case surface the handlers need.
type Logins interface {
	LoginURL(next string) (string, error)
	Callback(ctx context.Context, code, state string) (*service.LoginResult, error)
	Me(ctx context.Context, userID string) (*service.Participant, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Logins       Logins
	SecureCookie bool
}

func NewAuthHandler(logins Logins, secureCookie bool) *AuthHandler {
	return &AuthHandler{Logins: logins, SecureCookie: secureCookie}
}

// Login: GET /v1/auth/login?next=/path redirects to the provider.
func (h *AuthHandler) Login(c echo.Context) error {
	u, err := h.Logins.LoginURL(c.QueryParam("next"))
	if err != nil {
		log.Printf("auth login: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.Redirect(http.StatusFound, u)
}

// Callback: GET /v1/auth/callback?code=&state= completes login, sets the
// session cookie and redirects to the remembered path.
func (h *AuthHandler) Callback(c echo.Context) error {
	code, state := c.QueryParam("code"), c.QueryParam("state")
	if code == "" || state == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing code/state"})
	}
	res, err := h.Logins.Callback(c.Request().Context(), code, state)
	if errors.Is(err, service.ErrBadOAuthState) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid oauth state"})
	}
	if err != nil {
		log.Printf("auth callback: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "oauth callback failed"})
	}
	c.SetCookie(h.sessionCookie(res.Session.Token, res.Session.Exp))
	return c.Redirect(http.StatusFound, res.Next)
}

// Me: GET /v1/auth/me returns {"user": null} for anonymous callers.
func (h *AuthHandler) Me(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusOK, echo.Map{"user": nil})
	}
	me, err := h.Logins.Me(c.Request().Context(), uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"user": nil})
	}
	if err != nil {
		return writeError(c, "auth me", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": me})
}

// Logout: POST /v1/auth/logout clears the session cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	ck := h.sessionCookie("", time.Unix(0, 0))
	ck.MaxAge = -1
	c.SetCookie(ck)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *AuthHandler) sessionCookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
