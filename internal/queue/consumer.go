package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Notifier tells a requester about a status change.
type Notifier interface {
	NotifyStatus(ctx context.Context, ev LotRequestEvent) error
}

// Consumer appends every event to a log file and, when a Notifier is set,
// emails the requester.
type Consumer struct {
	url      string
	logPath  string
	notifier Notifier
	log      *zap.Logger

	fileMu sync.Mutex
}

func NewConsumer(url, logPath string, notifier Notifier, log *zap.Logger) *Consumer {
	return &Consumer{url: url, logPath: logPath, notifier: notifier, log: log.Named("consumer")}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.DialConfig(c.url, amqp.Config{Dial: amqp.DefaultDial(DialTimeout)})
		if err != nil {
			c.log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.log.Warn("set qos failed", zap.Error(err))
	}
	if _, err := declare(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.log.Error("handle event failed", zap.Error(err))
				// reject without requeue to avoid a hot loop on a poison message
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle processes one message body.  A failed notification is logged but
// does not fail the message; the event is already on file.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev LotRequestEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.RequestID == "" || ev.Type == "" {
		return errors.New("event without request id or type")
	}
	if err := c.appendLine(FormatLine(ev)); err != nil {
		return err
	}
	if c.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := c.notifier.NotifyStatus(nctx, ev); err != nil {
			c.log.Warn("notify requester failed", zap.Error(err), zap.String("request_id", ev.RequestID))
		}
	}
	return nil
}

func (c *Consumer) appendLine(line string) error {
	c.fileMu.Lock()
	defer c.fileMu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders one human-readable log line, newline terminated.
func FormatLine(ev LotRequestEvent) string {
	notes := ""
	if ev.AdminNotes != "" {
		notes = " | notes=" + strconv.Quote(ev.AdminNotes)
	}
	return fmt.Sprintf("[%s] Lot request %s | request_id=%s | lot_id=%s | user_id=%d | email=%q | request_status=%s | lot_status=%s%s\n",
		ev.OccurredAt, ev.Type, ev.RequestID, ev.LotID, ev.UserID, ev.RequesterEmail, ev.RequestStatus, ev.LotStatus, notes)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
