// Package notify emails requesters when their purchase request changes
// state.
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/mailersend/mailersend-go"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/config"
	"github.com/villa-armonia/lot-reservation/internal/queue"
)

// Mailer sends status notifications through MailerSend.
type Mailer struct {
	client    *mailersend.Mailersend
	fromEmail string
	fromName  string
	log       *zap.Logger
}

func NewMailer(cfg config.MailConfig, log *zap.Logger) *Mailer {
	return &Mailer{
		client:    mailersend.NewMailersend(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		log:       log.Named("mailer"),
	}
}

type email struct {
	Subject string
	Text    string
	HTML    string
}

// NotifyStatus implements queue.Notifier.
func (m *Mailer) NotifyStatus(ctx context.Context, ev queue.LotRequestEvent) error {
	if ev.RequesterEmail == "" {
		return nil
	}
	e := composeStatusEmail(ev)

	msg := m.client.Email.NewMessage()
	msg.SetFrom(mailersend.From{Name: m.fromName, Email: m.fromEmail})
	msg.SetRecipients([]mailersend.Recipient{{Name: ev.RequesterName, Email: ev.RequesterEmail}})
	msg.SetSubject(e.Subject)
	msg.SetText(e.Text)
	msg.SetHTML(e.HTML)

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.log.Info("status email sent",
		zap.String("request_id", ev.RequestID),
		zap.String("message_id", res.Header.Get("X-Message-Id")))
	return nil
}

func composeStatusEmail(ev queue.LotRequestEvent) email {
	name := ev.RequesterName
	if name == "" {
		name = "there"
	}
	var subject, body string
	switch ev.Type {
	case queue.EventSubmitted:
		subject = fmt.Sprintf("We received your request for lot %s", ev.LotID)
		body = fmt.Sprintf("Your purchase request for lot %s was received. Our team will review your documents and get in touch.", ev.LotID)
	case queue.EventContacted:
		subject = fmt.Sprintf("Your request for lot %s is in review", ev.LotID)
		body = fmt.Sprintf("An advisor has reached out about lot %s. Your request stays open while we finish the review.", ev.LotID)
	case queue.EventApproved:
		subject = fmt.Sprintf("Lot %s is yours", ev.LotID)
		body = fmt.Sprintf("Congratulations, your purchase of lot %s was approved. We will contact you with the next steps for signing.", ev.LotID)
	case queue.EventRejected:
		subject = fmt.Sprintf("Update on your request for lot %s", ev.LotID)
		body = fmt.Sprintf("Your purchase request for lot %s was not approved.", ev.LotID)
	default:
		subject = fmt.Sprintf("Update on your request for lot %s", ev.LotID)
		body = fmt.Sprintf("Your purchase request for lot %s is now %s.", ev.LotID, ev.RequestStatus)
	}

	text := fmt.Sprintf("Hello %s,\n\n%s\n", name, body)
	htm := fmt.Sprintf("<p>Hello %s,</p><p>%s</p>", html.EscapeString(name), html.EscapeString(body))
	if ev.AdminNotes != "" {
		text += fmt.Sprintf("\nNotes from our team: %s\n", ev.AdminNotes)
		htm += fmt.Sprintf("<p><em>Notes from our team:</em> %s</p>", html.EscapeString(ev.AdminNotes))
	}
	text += "\nVilla Armonia\n"
	htm += "<p>Villa Armonia</p>"
	return email{Subject: subject, Text: text, HTML: htm}
}
