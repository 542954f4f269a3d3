package router

import (
	"github.com/labstack/echo/v4"

	"github.com/villa-armonia/lot-reservation/internal/handler"
	"github.com/villa-armonia/lot-reservation/internal/middleware"
)

// RegisterRequester registers the routes any signed-in user may call.  The
// purchase route also runs behind the rate limiter; limit may be nil.
func RegisterRequester(e *echo.Echo, h *handler.RequestHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	auth := middleware.JWTAuth(jwtSecret)
	purchase := []echo.MiddlewareFunc{auth}
	if limit != nil {
		purchase = append(purchase, limit)
	}
	e.POST("/v1/lots/:id/purchase", h.Purchase, purchase...)
	e.GET("/v1/my-requests", h.Mine, auth)
}
