package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/repository"
	"github.com/villa-armonia/lot-reservation/internal/service"
)

// LotReader is the public catalogue query side.
type LotReader interface {
	ListLots(ctx context.Context, status model.LotStatus) ([]model.Lot, error)
	GetLot(ctx context.Context, id string) (model.Lot, error)
}

// LotHandler serves the public lot catalogue.
type LotHandler struct {
	lots LotReader
	log  *zap.Logger
}

func NewLotHandler(lots LotReader, log *zap.Logger) *LotHandler {
	return &LotHandler{lots: lots, log: log.Named("lots")}
}

// List returns every lot, optionally filtered by ?status=.
func (h *LotHandler) List(c echo.Context) error {
	var status model.LotStatus
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := model.ParseLotStatus(raw)
		if !ok {
			return badRequest(c, "status must be AVAILABLE, PENDING_APPROVAL or SOLD")
		}
		status = st
	}
	lots, err := h.lots.ListLots(c.Request().Context(), status)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, lots)
}

func (h *LotHandler) Get(c echo.Context) error {
	lot, err := h.lots.GetLot(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return writeError(c, h.log, service.ErrLotNotFound)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, lot)
}
