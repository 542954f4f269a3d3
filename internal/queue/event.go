// Package queue carries lot request events over RabbitMQ: the payload, a
// publisher used by the HTTP layer after commit and the background consumer
// that logs events and notifies requesters.
package queue

import (
	"time"

	"github.com/villa-armonia/lot-reservation/internal/model"
)

// QueueName is the durable queue every lot request event goes to.
const QueueName = "lot_request.events"

type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventContacted EventType = "contacted"
	EventApproved  EventType = "approved"
	EventRejected  EventType = "rejected"
)

// LotRequestEvent is published after a request transition commits.  It is
// self-contained so consumers never query the database.
type LotRequestEvent struct {
	Type           EventType `json:"type"`
	RequestID      string    `json:"request_id"`
	LotID          string    `json:"lot_id"`
	UserID         uint64    `json:"user_id"`
	RequesterEmail string    `json:"requester_email"`
	RequesterName  string    `json:"requester_name"`
	RequestStatus  string    `json:"request_status"`
	LotStatus      string    `json:"lot_status"`
	AdminNotes     string    `json:"admin_notes,omitempty"`
	OccurredAt     string    `json:"occurred_at"`
}

// NewEvent builds the event for a committed transition.
func NewEvent(typ EventType, req model.LotRequest, lot model.Lot, requester model.User, at time.Time) LotRequestEvent {
	ev := LotRequestEvent{
		Type:           typ,
		RequestID:      req.ID,
		LotID:          lot.ID,
		UserID:         req.UserID,
		RequesterEmail: requester.Email,
		RequesterName:  requester.Name,
		RequestStatus:  string(req.Status),
		LotStatus:      string(lot.Status),
		OccurredAt:     at.UTC().Format(time.RFC3339),
	}
	if req.AdminNotes != nil {
		ev.AdminNotes = *req.AdminNotes
	}
	return ev
}
