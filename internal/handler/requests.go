package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/middleware"
	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/queue"
	"github.com/villa-armonia/lot-reservation/internal/repository"
	"github.com/villa-armonia/lot-reservation/internal/service"
	"github.com/villa-armonia/lot-reservation/internal/storage"
)

// Submitter files purchase requests.  *service.Manager implements it.
type Submitter interface {
	ValidateProfile(p model.Profile) error
	SubmitRequest(ctx context.Context, in service.SubmitInput) (service.Outcome, error)
}

// DocumentStore is satisfied by *storage.S3Store.
type DocumentStore interface {
	Put(ctx context.Context, category string, doc storage.Document) (storage.Stored, error)
}

// RequestReader lists requests with their lot and requester projections.
type RequestReader interface {
	ListRequests(ctx context.Context, status model.RequestStatus) ([]model.LotRequestDetail, error)
	ListRequestsByUser(ctx context.Context, userID uint64) ([]model.LotRequestDetail, error)
	GetUserBySubject(ctx context.Context, subject string) (model.User, error)
}

// RequestHandler serves the requester side of the workflow.
type RequestHandler struct {
	mgr    Submitter
	docs   DocumentStore
	ledger storage.Ledger
	reader RequestReader
	events *EventSink
	log    *zap.Logger
}

func NewRequestHandler(mgr Submitter, docs DocumentStore, ledger storage.Ledger, reader RequestReader, events *EventSink, log *zap.Logger) *RequestHandler {
	if ledger == nil {
		ledger = storage.NopLedger{}
	}
	return &RequestHandler{mgr: mgr, docs: docs, ledger: ledger, reader: reader, events: events, log: log.Named("requests")}
}

// Purchase accepts the multipart purchase form for /lots/:id/purchase.
// Documents are stored before the request is filed, so a rejected request
// leaves orphaned ledger entries rather than a half-written request.
func (h *RequestHandler) Purchase(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return writeError(c, h.log, service.ErrMissingIdentity)
	}
	var p model.Profile
	if err := c.Bind(&p); err != nil {
		return badRequest(c, "invalid form")
	}
	if err := h.mgr.ValidateProfile(p); err != nil {
		return writeError(c, h.log, err)
	}

	ctx := c.Request().Context()
	urls := map[string]string{}
	var keys []string
	for _, f := range []struct{ field, category string }{
		{"id_document", storage.CategoryID},
		{"address_document", storage.CategoryAddress},
	} {
		stored, err := h.storeDocument(c, id, f.field, f.category)
		if err != nil {
			return writeError(c, h.log, err)
		}
		urls[f.category] = stored.URL
		keys = append(keys, stored.Key)
	}

	out, err := h.mgr.SubmitRequest(ctx, service.SubmitInput{
		LotID:    c.Param("id"),
		Identity: id,
		Profile:  p,
		Documents: model.Documents{
			IDDocumentURL:      urls[storage.CategoryID],
			AddressDocumentURL: urls[storage.CategoryAddress],
		},
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	if err := h.ledger.Attach(context.WithoutCancel(ctx), out.Request.ID, keys...); err != nil {
		h.log.Warn("ledger attach failed", zap.String("request_id", out.Request.ID), zap.Error(err))
	}
	h.events.Emit(ctx, queue.EventSubmitted, out)
	return c.JSON(http.StatusOK, out.Request)
}

func (h *RequestHandler) storeDocument(c echo.Context, id model.Identity, field, category string) (storage.Stored, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return storage.Stored{}, service.ErrMissingDocuments
	}
	f, err := fh.Open()
	if err != nil {
		return storage.Stored{}, fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	doc, err := storage.Inspect(f)
	if err != nil {
		return storage.Stored{}, fmt.Errorf("%s: %w: %w", field, service.ErrStorage, err)
	}
	stored, err := h.docs.Put(c.Request().Context(), category, doc)
	if err != nil {
		return storage.Stored{}, fmt.Errorf("%s: %w: %w", field, service.ErrStorage, err)
	}
	if err := h.ledger.Record(c.Request().Context(), storage.LedgerEntry{
		ObjectKey:   stored.Key,
		Subject:     id.Subject,
		Category:    category,
		ContentType: stored.ContentType,
		Size:        stored.Size,
	}); err != nil {
		h.log.Warn("ledger record failed", zap.String("key", stored.Key), zap.Error(err))
	}
	return stored, nil
}

// Mine lists the caller's own requests.  A caller without a profile has
// none.
func (h *RequestHandler) Mine(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return writeError(c, h.log, service.ErrMissingIdentity)
	}
	ctx := c.Request().Context()
	u, err := h.reader.GetUserBySubject(ctx, id.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusOK, []model.LotRequestDetail{})
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	out, err := h.reader.ListRequestsByUser(ctx, u.ID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}
