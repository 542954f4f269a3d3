package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/model"
)

// Authorizer resolves a caller's profile and checks its role.
type Authorizer interface {
	Authorize(ctx context.Context, id model.Identity, roles ...model.Role) (model.User, error)
}

// RequireRole admits callers whose stored profile has one of roles and
// puts that profile in the context for ActorFrom.  The role is read from
// the database, never from the token.
func RequireRole(authz Authorizer, log *zap.Logger, roles ...model.Role) echo.MiddlewareFunc {
	log = log.Named("authz")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := IdentityFrom(c)
			u, err := authz.Authorize(c.Request().Context(), id, roles...)
			if err != nil {
				return deny(c, log, err)
			}
			c.Set(actorKey, u)
			return next(c)
		}
	}
}
