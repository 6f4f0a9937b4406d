package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gatherspace/realtime-service/internal/apperr"
	"github.com/gatherspace/realtime-service/internal/event"
	"github.com/gatherspace/realtime-service/internal/hub"
	"github.com/gatherspace/realtime-service/internal/metrics"
	"github.com/gatherspace/realtime-service/internal/queue"
	"github.com/gatherspace/realtime-service/internal/repository"
)

// LiveFeed is the socket-side view the dispatcher needs: which live sinks,
// if any, can take an immediate push for a (conversation, user).
type LiveFeed interface {
	SinksFor(conversationID, userID string) []hub.Sink
}

// Broker relays published events to other process instances. A non-empty
// userID restricts remote delivery to that user's live connections, so
// sender-only notifications stay sender-only across instances. Optional;
// single-process deployments run without one.
type Broker interface {
	Relay(ctx context.Context, conversationID, userID string, ev event.Event) error
}

// FeedTap receives a copy of every published event for downstream pipelines
// (notifications, analytics). Optional and best-effort.
type FeedTap interface {
	Emit(ctx context.Context, ev event.Event) error
}

// Dispatcher fans one logical event out to every durable member of a
// conversation. Members with a live socket registration in the room get an
// immediate push; everyone else gets the event appended to their pending
// poll queue. Membership always comes from the durable store, never from
// the ephemeral registry.
type Dispatcher struct {
	members repository.MembershipStore
	live    LiveFeed
	pending *queue.Pending
	broker  Broker
	tap     FeedTap
	log     *zap.SugaredLogger
}

func New(members repository.MembershipStore, live LiveFeed, pending *queue.Pending, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		members: members,
		live:    live,
		pending: pending,
		log:     log,
	}
}

func (d *Dispatcher) WithBroker(b Broker) *Dispatcher {
	d.broker = b
	return d
}

func (d *Dispatcher) WithTap(t FeedTap) *Dispatcher {
	d.tap = t
	return d
}

// Publish delivers the event to every member of the conversation.
func (d *Dispatcher) Publish(ctx context.Context, conversationID string, ev event.Event) error {
	ids, err := d.members.MemberIDs(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("%w: member lookup: %v", apperr.ErrPersistence, err)
	}
	metrics.EventsPublished.Inc()
	for _, uid := range ids {
		d.deliver(conversationID, uid, ev)
	}
	d.relay(ctx, conversationID, "", ev)
	return nil
}

// PublishToUser delivers the event to a single member, used for sender-only
// notifications such as read receipts.
func (d *Dispatcher) PublishToUser(ctx context.Context, conversationID, userID string, ev event.Event) {
	metrics.EventsPublished.Inc()
	d.deliver(conversationID, userID, ev)
	d.relay(ctx, conversationID, userID, ev)
}

func (d *Dispatcher) deliver(conversationID, userID string, ev event.Event) {
	sinks := d.live.SinksFor(conversationID, userID)
	if len(sinks) == 0 {
		d.pending.Push(userID, ev)
		return
	}
	queued := false
	for _, s := range sinks {
		if s.Send(ev) {
			metrics.EventsPushed.Inc()
			continue
		}
		if !queued {
			d.log.Warnw("live push rejected, queueing", "user_id", userID, "type", ev.Type)
			d.pending.Push(userID, ev)
			queued = true
		}
	}
}

func (d *Dispatcher) relay(ctx context.Context, conversationID, userID string, ev event.Event) {
	if d.broker != nil {
		if err := d.broker.Relay(ctx, conversationID, userID, ev); err != nil {
			d.log.Warnw("broker relay failed", "err", err)
		}
	}
	if d.tap != nil {
		if err := d.tap.Emit(ctx, ev); err != nil {
			d.log.Warnw("feed tap emit failed", "err", err)
		}
	}
}
