package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/villa-armonia/lot-reservation/internal/model"
)

const lotColumns = "id, price_cents, size_m2, status, owner_id, amenities, created_at, updated_at"

// LotRepo reads and writes the lots table.
type LotRepo struct{ db *sqlx.DB }

func NewLotRepo(db *sqlx.DB) *LotRepo { return &LotRepo{db: db} }

// ListLots returns every lot ordered by id, optionally filtered by status.
func (r *LotRepo) ListLots(ctx context.Context, status model.LotStatus) ([]model.Lot, error) {
	lots := []model.Lot{}
	var err error
	if status == "" {
		err = conn(ctx, r.db).SelectContext(ctx, &lots, "SELECT "+lotColumns+" FROM lots ORDER BY id")
	} else {
		err = conn(ctx, r.db).SelectContext(ctx, &lots, "SELECT "+lotColumns+" FROM lots WHERE status=? ORDER BY id", status)
	}
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// GetLot fetches a lot without locking it.
func (r *LotRepo) GetLot(ctx context.Context, id string) (model.Lot, error) {
	var l model.Lot
	err := conn(ctx, r.db).GetContext(ctx, &l, "SELECT "+lotColumns+" FROM lots WHERE id=? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lot{}, ErrNotFound
	}
	if err != nil {
		return model.Lot{}, fmt.Errorf("get lot %s: %w", id, err)
	}
	return l, nil
}

// LockLot reads a lot with SELECT ... FOR UPDATE.  Concurrent transactions
// touching the same lot queue behind this row lock until commit.
func (r *LotRepo) LockLot(ctx context.Context, id string) (model.Lot, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return model.Lot{}, ErrNoTx
	}
	var l model.Lot
	err := tx.GetContext(ctx, &l, "SELECT "+lotColumns+" FROM lots WHERE id=? FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lot{}, ErrNotFound
	}
	if err != nil {
		return model.Lot{}, fmt.Errorf("lock lot %s: %w", id, err)
	}
	return l, nil
}

// SetLotStatus writes status and owner together, stamping updated_at with now.
func (r *LotRepo) SetLotStatus(ctx context.Context, id string, status model.LotStatus, ownerID *uint64, now time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE lots SET status=?, owner_id=?, updated_at=? WHERE id=?",
		status, ownerID, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("set lot status %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
