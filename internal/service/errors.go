package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error kinds.  Every error the Manager returns wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage error")
	ErrInternal     = errors.New("internal error")
)

// Error is a business-rule failure with a stable machine code.
type Error struct {
	Kind error
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

var (
	ErrMissingIdentity   = newError(ErrUnauthorized, "unauthorized", "authentication required")
	ErrRoleRequired      = newError(ErrForbidden, "forbidden", "insufficient role")
	ErrLotNotFound       = newError(ErrNotFound, "lot_not_found", "lot not found")
	ErrRequestNotFound   = newError(ErrNotFound, "request_not_found", "lot request not found")
	ErrLotUnavailable    = newError(ErrConflict, "lot_unavailable", "lot is not available")
	ErrLotSold           = newError(ErrConflict, "lot_sold", "lot is already sold")
	ErrDuplicateRequest  = newError(ErrConflict, "duplicate_request", "you already have an open request for this lot")
	ErrInvalidTransition = newError(ErrConflict, "invalid_transition", "request status does not allow this action")
	ErrMissingDocuments  = newError(ErrValidation, "missing_documents", "both verification documents are required")
)

// Code returns the machine code carried by err, or one derived from its kind.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	}
	return "internal_error"
}

// validationError flattens validator field errors into one message.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return newError(ErrValidation, "validation_failed", err.Error())
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return newError(ErrValidation, "validation_failed", "invalid fields: "+strings.Join(fields, ", "))
}

// internal wraps an unexpected store failure.
func internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

