package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/villa-armonia/lot-reservation/internal/model"
)

const requestColumns = "id, lot_id, user_id, status, admin_notes, contacted, contacted_at, approved_by, approved_at, created_at, updated_at"

// detailSelect joins a request with its lot and requester for listings.
const detailSelect = `
SELECT r.id, r.lot_id, r.user_id, r.status, r.admin_notes, r.contacted, r.contacted_at,
       r.approved_by, r.approved_at, r.created_at, r.updated_at,
       l.price_cents AS lot_price_cents, l.status AS lot_status,
       u.name AS user_name, u.email AS user_email, u.phone AS user_phone
FROM lot_requests r
JOIN lots l ON l.id = r.lot_id
JOIN users u ON u.id = r.user_id`

// LotRequestRepo reads and writes the lot_requests table.
type LotRequestRepo struct{ db *sqlx.DB }

func NewLotRequestRepo(db *sqlx.DB) *LotRequestRepo { return &LotRequestRepo{db: db} }

// GetRequest fetches a request without locking it.
func (r *LotRequestRepo) GetRequest(ctx context.Context, id string) (model.LotRequest, error) {
	var lr model.LotRequest
	err := conn(ctx, r.db).GetContext(ctx, &lr, "SELECT "+requestColumns+" FROM lot_requests WHERE id=? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LotRequest{}, ErrNotFound
	}
	if err != nil {
		return model.LotRequest{}, fmt.Errorf("get request %s: %w", id, err)
	}
	return lr, nil
}

// LockRequest re-reads a request FOR UPDATE.  Callers lock the parent lot
// first so every transaction acquires locks in lot -> request order.
func (r *LotRequestRepo) LockRequest(ctx context.Context, id string) (model.LotRequest, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return model.LotRequest{}, ErrNoTx
	}
	var lr model.LotRequest
	err := tx.GetContext(ctx, &lr, "SELECT "+requestColumns+" FROM lot_requests WHERE id=? FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LotRequest{}, ErrNotFound
	}
	if err != nil {
		return model.LotRequest{}, fmt.Errorf("lock request %s: %w", id, err)
	}
	return lr, nil
}

// InsertRequest stores a new request.
func (r *LotRequestRepo) InsertRequest(ctx context.Context, lr model.LotRequest) error {
	_, err := conn(ctx, r.db).NamedExecContext(ctx, `
INSERT INTO lot_requests (id, lot_id, user_id, status, admin_notes, contacted, contacted_at, approved_by, approved_at, created_at, updated_at)
VALUES (:id, :lot_id, :user_id, :status, :admin_notes, :contacted, :contacted_at, :approved_by, :approved_at, :created_at, :updated_at)`, lr)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// UpdateRequest writes the mutable review columns of a request.
func (r *LotRequestRepo) UpdateRequest(ctx context.Context, lr model.LotRequest) error {
	res, err := conn(ctx, r.db).NamedExecContext(ctx, `
UPDATE lot_requests
SET status=:status, admin_notes=:admin_notes, contacted=:contacted, contacted_at=:contacted_at,
    approved_by=:approved_by, approved_at=:approved_at, updated_at=:updated_at
WHERE id=:id`, lr)
	if err != nil {
		return fmt.Errorf("update request %s: %w", lr.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasOpenRequest reports whether userID already has a PENDING or
// CONTACTED request on lotID.
func (r *LotRequestRepo) HasOpenRequest(ctx context.Context, lotID string, userID uint64) (bool, error) {
	var n int
	err := conn(ctx, r.db).GetContext(ctx, &n,
		"SELECT COUNT(*) FROM lot_requests WHERE lot_id=? AND user_id=? AND status IN ('PENDING','CONTACTED')",
		lotID, userID)
	if err != nil {
		return false, fmt.Errorf("count open requests: %w", err)
	}
	return n > 0, nil
}

// ListOpenRequests returns the unresolved requests of a lot, oldest first.
// Inside a transaction the rows are locked.
func (r *LotRequestRepo) ListOpenRequests(ctx context.Context, lotID string) ([]model.LotRequest, error) {
	q := "SELECT " + requestColumns + " FROM lot_requests WHERE lot_id=? AND status IN ('PENDING','CONTACTED') ORDER BY created_at, id"
	if txFromContext(ctx) != nil {
		q += " FOR UPDATE"
	}
	out := []model.LotRequest{}
	if err := conn(ctx, r.db).SelectContext(ctx, &out, q, lotID); err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	return out, nil
}

// ListRequests returns every request with lot and requester projections,
// newest first, optionally filtered by status.
func (r *LotRequestRepo) ListRequests(ctx context.Context, status model.RequestStatus) ([]model.LotRequestDetail, error) {
	out := []model.LotRequestDetail{}
	var err error
	if status == "" {
		err = conn(ctx, r.db).SelectContext(ctx, &out, detailSelect+" ORDER BY r.created_at DESC, r.id")
	} else {
		err = conn(ctx, r.db).SelectContext(ctx, &out, detailSelect+" WHERE r.status=? ORDER BY r.created_at DESC, r.id", status)
	}
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

// ListRequestsByUser returns the requests filed by one requester.
func (r *LotRequestRepo) ListRequestsByUser(ctx context.Context, userID uint64) ([]model.LotRequestDetail, error) {
	out := []model.LotRequestDetail{}
	if err := conn(ctx, r.db).SelectContext(ctx, &out, detailSelect+" WHERE r.user_id=? ORDER BY r.created_at DESC, r.id", userID); err != nil {
		return nil, fmt.Errorf("list requests for user %d: %w", userID, err)
	}
	return out, nil
}
