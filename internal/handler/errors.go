package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/service"
	"github.com/villa-armonia/lot-reservation/internal/storage"
)

// statusFor maps an error kind to its HTTP status.  Conflicts are 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrInvalidType), errors.Is(err, storage.ErrTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStorage):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, storage.ErrUnavailable):
		return "storage_unavailable"
	case errors.Is(err, storage.ErrInvalidType):
		return "invalid_document_type"
	case errors.Is(err, storage.ErrTooLarge):
		return "document_too_large"
	}
	return service.Code(err)
}

// writeError renders {"error","code"}.  Server-side failures are logged and
// replaced by a generic message.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err))
		msg = "internal error"
		if status == http.StatusBadGateway {
			msg = storage.ErrUnavailable.Error()
		}
	}
	return c.JSON(status, echo.Map{"error": msg, "code": codeFor(err)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "validation_failed"})
}
