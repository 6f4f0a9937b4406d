package broker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gatherspace/realtime-service/internal/event"
	"github.com/gatherspace/realtime-service/internal/hub"
)

// envelope is the cross-instance relay format. UserID restricts delivery to
// one user's connections; empty means the whole room.
type envelope struct {
	Origin         string      `json:"origin"`
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id,omitempty"`
	Event          event.Event `json:"event"`
}

// RedisBroker relays dispatcher publishes over redis pub/sub so live
// connections on other instances see them. Remote delivery only touches
// live sinks, never pending queues: the instance that owns the publish
// already queued for offline members. Best-effort; cross-instance ordering
// is not guaranteed.
type RedisBroker struct {
	client  *redis.Client
	channel string
	origin  string
	h       *hub.Hub
	log     *zap.SugaredLogger
}

func NewRedisBroker(client *redis.Client, prefix string, h *hub.Hub, log *zap.SugaredLogger) *RedisBroker {
	return &RedisBroker{
		client:  client,
		channel: prefix + ":events",
		origin:  uuid.NewString(),
		h:       h,
		log:     log,
	}
}

func (b *RedisBroker) Relay(ctx context.Context, conversationID, userID string, ev event.Event) error {
	env := envelope{
		Origin:         b.origin,
		ConversationID: conversationID,
		UserID:         userID,
		Event:          ev,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run subscribes and delivers relayed events to local live connections until
// ctx is done.
func (b *RedisBroker) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				b.log.Warn("broker subscription closed")
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			if env.UserID != "" {
				for _, s := range b.h.SinksFor(env.ConversationID, env.UserID) {
					s.Send(env.Event)
				}
				continue
			}
			b.h.BroadcastRoom(env.ConversationID, env.Event)
		}
	}
}
