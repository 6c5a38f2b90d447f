package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/haggle-room/internal/handler"    // handlers that translate HTTP into use cases
	"github.com/iliyamo/haggle-room/internal/middleware" // session and cache middleware
)

// RegisterRoutes registers routes that do not require a session.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the OAuth login round trip under /v1/auth.  Only
// /me looks at the session, and an anonymous caller gets a null user
// rather than a 401.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.GET("/login", a.Login)
	g.GET("/callback", a.Callback)
	g.GET("/me", a.Me, middleware.SessionAuth(jwtSecret, false))
	g.POST("/logout", a.Logout)
}

// RegisterRooms registers the negotiation room endpoints.  Mutations by a
// participant require a session; the turn endpoint is open so that any
// watcher can drive the room forward, and the read views work for
// anonymous spectators.  cache wraps only the result view.
func RegisterRooms(e *echo.Echo, h *handler.RoomHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	required := middleware.SessionAuth(jwtSecret, true)
	optional := middleware.SessionAuth(jwtSecret, false)

	g := e.Group("/v1/rooms")
	g.POST("", h.Create, required)
	g.POST("/:id/join", h.Join, required)
	g.POST("/:id/start", h.Start, required)
	g.POST("/:id/turn", h.Turn)
	g.GET("/:id", h.View, optional)
	g.GET("/:id/result", h.Result, cache)
}
