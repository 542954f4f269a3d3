package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/config"
	"github.com/villa-armonia/lot-reservation/internal/queue"
)

func TestComposeStatusEmail(t *testing.T) {
	tests := []struct {
		typ     queue.EventType
		subject string
		snippet string
	}{
		{queue.EventSubmitted, "We received your request for lot A-01", "was received"},
		{queue.EventContacted, "Your request for lot A-01 is in review", "reached out"},
		{queue.EventApproved, "Lot A-01 is yours", "was approved"},
		{queue.EventRejected, "Update on your request for lot A-01", "was not approved"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			e := composeStatusEmail(queue.LotRequestEvent{Type: tt.typ, LotID: "A-01", RequesterName: "Ana"})
			assert.Equal(t, tt.subject, e.Subject)
			assert.Contains(t, e.Text, "Hello Ana,")
			assert.Contains(t, e.Text, tt.snippet)
			assert.NotContains(t, e.Text, "Notes from our team")
		})
	}
}

func TestComposeStatusEmailEscapesNotes(t *testing.T) {
	e := composeStatusEmail(queue.LotRequestEvent{
		Type:       queue.EventRejected,
		LotID:      "C-01",
		AdminNotes: "<b>missing</b> proof of address",
	})
	assert.Contains(t, e.Text, "Hello there,")
	assert.Contains(t, e.Text, "Notes from our team: <b>missing</b> proof of address")
	assert.Contains(t, e.HTML, "&lt;b&gt;missing&lt;/b&gt;")
}

func TestNotifyStatusSkipsWithoutRecipient(t *testing.T) {
	m := NewMailer(config.MailConfig{APIKey: "k", FromEmail: "noreply@villa.mx"}, zap.NewNop())
	assert.NoError(t, m.NotifyStatus(context.Background(), queue.LotRequestEvent{Type: queue.EventApproved}))
}
