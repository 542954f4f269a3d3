package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/middleware"
	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/queue"
	"github.com/villa-armonia/lot-reservation/internal/service"
)

// Reviewer runs admin transitions.  *service.Manager implements it.
type Reviewer interface {
	Contact(ctx context.Context, requestID, notes string, admin model.User) (service.Outcome, error)
	Approve(ctx context.Context, requestID string, admin model.User) (service.Outcome, error)
	Reject(ctx context.Context, requestID, notes string, admin model.User) (service.Outcome, error)
}

// AdminHandler serves /lot-requests.  It runs behind RequireRole, which
// stores the acting admin in the context.
type AdminHandler struct {
	mgr    Reviewer
	reader RequestReader
	events *EventSink
	log    *zap.Logger
}

func NewAdminHandler(mgr Reviewer, reader RequestReader, events *EventSink, log *zap.Logger) *AdminHandler {
	return &AdminHandler{mgr: mgr, reader: reader, events: events, log: log.Named("admin")}
}

type notesReq struct {
	AdminNotes string `json:"admin_notes" validate:"max=2000"`
}

// List returns every request, optionally filtered by ?status=.
func (h *AdminHandler) List(c echo.Context) error {
	var status model.RequestStatus
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := model.ParseRequestStatus(raw)
		if !ok {
			return badRequest(c, "status must be PENDING, CONTACTED, APPROVED or REJECTED")
		}
		status = st
	}
	out, err := h.reader.ListRequests(c.Request().Context(), status)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) Contact(c echo.Context) error {
	return h.transition(c, queue.EventContacted, func(ctx context.Context, id, notes string, admin model.User) (service.Outcome, error) {
		return h.mgr.Contact(ctx, id, notes, admin)
	})
}

func (h *AdminHandler) Approve(c echo.Context) error {
	return h.transition(c, queue.EventApproved, func(ctx context.Context, id, _ string, admin model.User) (service.Outcome, error) {
		return h.mgr.Approve(ctx, id, admin)
	})
}

func (h *AdminHandler) Reject(c echo.Context) error {
	return h.transition(c, queue.EventRejected, func(ctx context.Context, id, notes string, admin model.User) (service.Outcome, error) {
		return h.mgr.Reject(ctx, id, notes, admin)
	})
}

type transitionFunc func(ctx context.Context, requestID, notes string, admin model.User) (service.Outcome, error)

func (h *AdminHandler) transition(c echo.Context, typ queue.EventType, run transitionFunc) error {
	admin, ok := middleware.ActorFrom(c)
	if !ok {
		return writeError(c, h.log, service.ErrRoleRequired)
	}
	var req notesReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx := c.Request().Context()
	out, err := run(ctx, c.Param("id"), req.AdminNotes, admin)
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.events.Emit(ctx, typ, out)
	return c.JSON(http.StatusOK, echo.Map{"request": out.Request, "lot": out.Lot})
}
