package model

import "time"

// RequestStatus is the review state of a purchase request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestContacted RequestStatus = "CONTACTED"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
)

// ParseRequestStatus validates a status coming from a query string.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch st := RequestStatus(s); st {
	case RequestPending, RequestContacted, RequestApproved, RequestRejected:
		return st, true
	}
	return "", false
}

// Open reports whether the request still awaits a final decision.
func (s RequestStatus) Open() bool {
	return s == RequestPending || s == RequestContacted
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// APPROVED and REJECTED are terminal.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case RequestPending:
		return next == RequestContacted || next == RequestApproved || next == RequestRejected
	case RequestContacted:
		return next == RequestApproved || next == RequestRejected
	}
	return false
}

// LotRequest mirrors a row of the `lot_requests` table.
type LotRequest struct {
	ID          string        `db:"id" json:"id"`
	LotID       string        `db:"lot_id" json:"lot_id"`
	UserID      uint64        `db:"user_id" json:"user_id"`
	Status      RequestStatus `db:"status" json:"status"`
	AdminNotes  *string       `db:"admin_notes" json:"admin_notes,omitempty"`
	Contacted   bool          `db:"contacted" json:"contacted"`
	ContactedAt *time.Time    `db:"contacted_at" json:"contacted_at,omitempty"`
	ApprovedBy  *uint64       `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// LotRequestDetail is a request joined with the lot and requester columns
// that listings display.
type LotRequestDetail struct {
	LotRequest
	LotPriceCents int64     `db:"lot_price_cents" json:"lot_price_cents"`
	LotStatus     LotStatus `db:"lot_status" json:"lot_status"`
	UserName      string    `db:"user_name" json:"user_name"`
	UserEmail     string    `db:"user_email" json:"user_email"`
	UserPhone     string    `db:"user_phone" json:"user_phone"`
}
