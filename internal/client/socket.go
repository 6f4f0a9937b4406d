package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gatherspace/realtime-service/internal/apperr"
	"github.com/gatherspace/realtime-service/internal/event"
)

type socketEnvelope struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id,omitempty"`
	MessageID      string   `json:"message_id,omitempty"`
	Content        string   `json:"content,omitempty"`
	Attachments    []string `json:"attachments,omitempty"`
}

// SocketTransport speaks the persistent-connection contract. Server events
// arrive on the Events channel; operations are envelopes written to the
// socket.
type SocketTransport struct {
	baseURL string // ws://host:port
	token   string

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan event.Event
}

func NewSocketTransport(baseURL, token string) *SocketTransport {
	return &SocketTransport{baseURL: baseURL, token: token}
}

func (t *SocketTransport) Connect(ctx context.Context) error {
	u, err := url.Parse(t.baseURL + "/v1/ws")
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("token", t.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", apperr.ErrTransport, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.events = make(chan event.Event, 64)
	t.mu.Unlock()

	go t.readLoop(conn, t.events)
	return nil
}

func (t *SocketTransport) readLoop(conn *websocket.Conn, events chan event.Event) {
	defer close(events)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		events <- ev
	}
}

func (t *SocketTransport) write(env socketEnvelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return apperr.ErrTransport
	}
	if err := t.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("%w: write: %v", apperr.ErrTransport, err)
	}
	return nil
}

func (t *SocketTransport) Join(_ context.Context, conversationID string) error {
	return t.write(socketEnvelope{Type: "join:conversation", ConversationID: conversationID})
}

func (t *SocketTransport) Leave(_ context.Context, conversationID string) error {
	return t.write(socketEnvelope{Type: "leave:conversation", ConversationID: conversationID})
}

func (t *SocketTransport) Send(_ context.Context, conversationID, content string, attachments []string) error {
	return t.write(socketEnvelope{
		Type:           "message:send",
		ConversationID: conversationID,
		Content:        content,
		Attachments:    attachments,
	})
}

func (t *SocketTransport) MarkRead(_ context.Context, messageID string) error {
	return t.write(socketEnvelope{Type: "message:read", MessageID: messageID})
}

func (t *SocketTransport) Events() <-chan event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

func (t *SocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
