package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/config"
	"github.com/villa-armonia/lot-reservation/internal/handler"
	"github.com/villa-armonia/lot-reservation/internal/middleware"
	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/service"
)

type denyAll struct{}

func (denyAll) Authorize(context.Context, model.Identity, ...model.Role) (model.User, error) {
	return model.User{}, service.ErrRoleRequired
}

func newTestEcho(withOAuth bool) *echo.Echo {
	log := zap.NewNop()
	e := echo.New()
	auth := handler.NewAuthHandler(config.Config{JWTSecret: "s"}, nil, nil, log)
	var oauth *handler.OAuthHandler
	if withOAuth {
		oc := config.OAuthConfig{ClientID: "id", ClientSecret: "secret"}
		oauth = handler.NewOAuthHandler(oc.OAuth2(), "https://oauth.test/userinfo", nil, nil, auth, log)
	}
	RegisterRoutes(e, nil)
	RegisterAuth(e, auth, oauth, "s")
	RegisterLots(e, handler.NewLotHandler(nil, log), middleware.NewRedisCache(config.CacheConfig{}, nil, log))
	RegisterRequester(e, handler.NewRequestHandler(nil, nil, nil, nil, nil, log), "s", nil)
	RegisterAdmin(e, handler.NewAdminHandler(nil, nil, nil, log), denyAll{}, "s", log)
	return e
}

func routeSet(e *echo.Echo) map[string]bool {
	out := map[string]bool{}
	for _, r := range e.Routes() {
		out[r.Method+" "+r.Path] = true
	}
	return out
}

func TestRoutesRegistered(t *testing.T) {
	routes := routeSet(newTestEcho(true))
	for _, want := range []string{
		"GET /healthz",
		"POST /v1/auth/register",
		"POST /v1/auth/login",
		"POST /v1/auth/refresh",
		"POST /v1/auth/logout",
		"GET /v1/auth/google/login",
		"GET /v1/auth/google/callback",
		"GET /v1/me",
		"GET /v1/lots",
		"GET /v1/lots/:id",
		"POST /v1/lots/:id/purchase",
		"GET /v1/my-requests",
		"GET /v1/lot-requests",
		"PATCH /v1/lot-requests/:id/contact",
		"PATCH /v1/lot-requests/:id/approve",
		"PATCH /v1/lot-requests/:id/reject",
	} {
		assert.True(t, routes[want], want)
	}
}

func TestGoogleRoutesNeedConfig(t *testing.T) {
	routes := routeSet(newTestEcho(false))
	assert.False(t, routes["GET /v1/auth/google/login"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newTestEcho(false)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/v1/me"},
		{http.MethodPost, "/v1/lots/A-01/purchase"},
		{http.MethodGet, "/v1/my-requests"},
		{http.MethodGet, "/v1/lot-requests"},
		{http.MethodPatch, "/v1/lot-requests/r1/approve"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestEcho(false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
