package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// LotStatus is the sale state of a lot.  A lot starts AVAILABLE, moves to
// PENDING_APPROVAL once a purchase request is filed against it and ends
// SOLD when an admin approves one of its requests.
type LotStatus string

const (
	LotAvailable       LotStatus = "AVAILABLE"
	LotPendingApproval LotStatus = "PENDING_APPROVAL"
	LotSold            LotStatus = "SOLD"
)

// ParseLotStatus validates a status coming from a query string.
func ParseLotStatus(s string) (LotStatus, bool) {
	switch st := LotStatus(s); st {
	case LotAvailable, LotPendingApproval, LotSold:
		return st, true
	}
	return "", false
}

// Amenities is persisted as a JSON array in lots.amenities.
type Amenities []string

// Value implements driver.Valuer.
func (a Amenities) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *Amenities) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Amenities{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("amenities: unsupported source %T", src)
	}
	out := Amenities{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("amenities: %w", err)
	}
	*a = out
	return nil
}

// Lot mirrors a row of the `lots` table.
//
// Fields:
//
//	ID         – stable lot code shown on the site map (e.g. "A-12").
//	PriceCents – asking price in minor currency units.
//	SizeM2     – surface in square metres.
//	Status     – sale state, written only by the reservation manager.
//	OwnerID    – users.id of the buyer, set exactly when Status is SOLD.
//	Amenities  – free-form amenity labels.
type Lot struct {
	ID         string    `db:"id" json:"id"`
	PriceCents int64     `db:"price_cents" json:"price_cents"`
	SizeM2     float64   `db:"size_m2" json:"size_m2"`
	Status     LotStatus `db:"status" json:"status"`
	OwnerID    *uint64   `db:"owner_id" json:"-"`
	Amenities  Amenities `db:"amenities" json:"amenities"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
