package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/handler"
	"github.com/villa-armonia/lot-reservation/internal/middleware"
	"github.com/villa-armonia/lot-reservation/internal/model"
)

// RegisterAdmin registers the review routes under /v1/lot-requests.  Every
// route needs a valid JWT and a profile with the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, authz middleware.Authorizer, jwtSecret string, log *zap.Logger) {
	g := e.Group(
		"/v1/lot-requests",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(authz, log, model.RoleAdmin),
	)
	g.GET("", h.List)
	g.PATCH("/:id/contact", h.Contact)
	g.PATCH("/:id/approve", h.Approve)
	g.PATCH("/:id/reject", h.Reject)
}
