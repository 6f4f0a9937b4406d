package client

import (
	"context"

	"github.com/gatherspace/realtime-service/internal/event"
)

// Transport is one way of reaching the realtime service. The hook owns
// exactly one implementation, chosen at construction time; application code
// never branches on which one is active.
type Transport interface {
	// Connect establishes the transport. After a successful Connect, Events
	// delivers server events until the transport fails, at which point the
	// channel closes and the hook decides whether to reconnect.
	Connect(ctx context.Context) error
	Join(ctx context.Context, conversationID string) error
	Leave(ctx context.Context, conversationID string) error
	Send(ctx context.Context, conversationID, content string, attachments []string) error
	MarkRead(ctx context.Context, messageID string) error
	Events() <-chan event.Event
	Close() error
}
