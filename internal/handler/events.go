package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/clock"
	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/queue"
	"github.com/villa-armonia/lot-reservation/internal/service"
)

// EventPublisher is satisfied by *queue.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.LotRequestEvent) error
}

// CacheInvalidator is satisfied by *middleware.RedisCache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, group string) error
}

// UserLookup loads the requester of a cascaded request.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uint64) (model.User, error)
}

// LotsCacheGroup is the cache group of the public lot catalogue.
const LotsCacheGroup = "lots"

// EventSink runs the side effects of a committed transition: it drops the
// cached catalogue and publishes one event per changed request.  Nothing it
// does can fail the HTTP call.
type EventSink struct {
	pub   EventPublisher
	cache CacheInvalidator
	users UserLookup
	clock clock.Clock
	log   *zap.Logger
}

func NewEventSink(pub EventPublisher, cache CacheInvalidator, users UserLookup, clk clock.Clock, log *zap.Logger) *EventSink {
	return &EventSink{pub: pub, cache: cache, users: users, clock: clk, log: log.Named("events")}
}

// Emit must only be called after the transaction committed.
func (s *EventSink) Emit(ctx context.Context, typ queue.EventType, out service.Outcome) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, LotsCacheGroup); err != nil {
			s.log.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	if s.pub == nil {
		return
	}
	now := s.clock.Now()
	s.publish(ctx, queue.NewEvent(typ, out.Request, out.Lot, out.Requester, now))
	for _, sib := range out.CascadeClosed {
		var requester model.User
		if s.users != nil {
			u, err := s.users.GetUserByID(ctx, sib.UserID)
			if err != nil {
				s.log.Warn("load cascaded requester", zap.String("request_id", sib.ID), zap.Error(err))
			}
			requester = u
		}
		s.publish(ctx, queue.NewEvent(queue.EventRejected, sib, out.Lot, requester, now))
	}
}

func (s *EventSink) publish(ctx context.Context, ev queue.LotRequestEvent) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Warn("event not published",
			zap.String("type", string(ev.Type)),
			zap.String("request_id", ev.RequestID),
			zap.Error(err))
	}
}
