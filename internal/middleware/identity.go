package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/service"
)

// Context keys set by this package.
const (
	identityKey = "identity"
	actorKey    = "actor"
)

// IdentityFrom returns the caller identity stored by JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.Subject != ""
}

// ActorFrom returns the profile resolved by RequireRole.
func ActorFrom(c echo.Context) (model.User, bool) {
	u, ok := c.Get(actorKey).(model.User)
	return u, ok
}

// subject is the rate limit and logging key for the caller; "anon" when
// the request is unauthenticated.
func subject(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.Subject
	}
	return "anon"
}

// deny renders a failed role check.  Internal failures are logged and
// replaced by a generic message.
func deny(c echo.Context, log *zap.Logger, err error) error {
	code := service.Code(err)
	status, msg := http.StatusForbidden, err.Error()
	switch code {
	case "unauthorized":
		status = http.StatusUnauthorized
	case "internal_error":
		status, msg = http.StatusInternalServerError, "internal error"
		log.Error("authorize failed", zap.String("route", c.Path()), zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}
