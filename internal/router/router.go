// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/villa-armonia/lot-reservation/internal/handler"
	"github.com/villa-armonia/lot-reservation/internal/middleware"
)

// RegisterRoutes registers the unauthenticated health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers account and session routes.  Sign-in endpoints
// live under /v1/auth; /v1/me needs an access token.  oauth may be nil when
// Google sign-in is not configured.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, oauth *handler.OAuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)
	if oauth != nil {
		g.GET("/google/login", oauth.Login)
		g.GET("/google/callback", oauth.Callback)
	}

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterLots registers the public catalogue.  Responses are cached under
// handler.LotsCacheGroup and dropped whenever a request changes a lot.
func RegisterLots(e *echo.Echo, h *handler.LotHandler, cache *middleware.RedisCache) {
	cached := cache.Middleware(handler.LotsCacheGroup)
	e.GET("/v1/lots", h.List, cached)
	e.GET("/v1/lots/:id", h.Get, cached)
}
