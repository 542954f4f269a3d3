package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/repository"
)

type stubLots struct {
	lots []model.Lot
}

func (s stubLots) ListLots(_ context.Context, status model.LotStatus) ([]model.Lot, error) {
	out := []model.Lot{}
	for _, l := range s.lots {
		if status == "" || l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s stubLots) GetLot(_ context.Context, id string) (model.Lot, error) {
	for _, l := range s.lots {
		if l.ID == id {
			return l, nil
		}
	}
	return model.Lot{}, repository.ErrNotFound
}

func serveLots(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewLotHandler(stubLots{lots: []model.Lot{
		{ID: "A-1", PriceCents: 9_500_000, Status: model.LotAvailable, Amenities: model.Amenities{"water"}},
		{ID: "A-2", PriceCents: 12_000_000, Status: model.LotSold, Amenities: model.Amenities{}},
	}}, zap.NewNop())
	e := newEcho()
	e.GET("/v1/lots", h.List)
	e.GET("/v1/lots/:id", h.Get)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestLotList(t *testing.T) {
	rec := serveLots(t, "/v1/lots?status=AVAILABLE")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"A-1"`)
	assert.NotContains(t, rec.Body.String(), `"id":"A-2"`)
	assert.NotContains(t, rec.Body.String(), "owner")

	rec = serveLots(t, "/v1/lots?status=reserved")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec)["code"])
}

func TestLotGet(t *testing.T) {
	rec := serveLots(t, "/v1/lots/A-2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SOLD", decode(t, rec)["status"])

	rec = serveLots(t, "/v1/lots/Z-9")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "lot_not_found", decode(t, rec)["code"])
}
