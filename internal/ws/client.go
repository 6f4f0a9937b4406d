package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"

	"github.com/gatherspace/realtime-service/internal/apperr"
	"github.com/gatherspace/realtime-service/internal/event"
	"github.com/gatherspace/realtime-service/internal/metrics"
)

// Envelope is the client->server wire format on the socket transport.
type Envelope struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id,omitempty"`
	MessageID      string   `json:"message_id,omitempty"`
	Content        string   `json:"content,omitempty"`
	Attachments    []string `json:"attachments,omitempty"`
}

const (
	opJoin  = "join:conversation"
	opLeave = "leave:conversation"
	opSend  = "message:send"
	opRead  = "message:read"
)

// Client is one authenticated socket connection. It pushes events from its
// buffered send channel and routes inbound envelopes to the chat service.
type Client struct {
	id      string
	userID  string
	ws      *websocket.Conn
	send    chan event.Event
	done    chan struct{}
	srv     *Server
	limiter *rate.Limiter
}

func newClient(id, userID string, conn *websocket.Conn, srv *Server) *Client {
	return &Client{
		id:      id,
		userID:  userID,
		ws:      conn,
		send:    make(chan event.Event, 256),
		done:    make(chan struct{}),
		srv:     srv,
		limiter: rate.NewLimiter(rate.Limit(srv.cfg.WS.RateLimitPerSec), srv.cfg.WS.RateLimitPerSec),
	}
}

// Send queues an event for the write pump without blocking. A full channel
// or a finished connection means the event is rejected and the dispatcher
// queues it instead.
func (c *Client) Send(ev event.Event) bool {
	select {
	case <-c.done:
		return false
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.srv.hub.RemoveClient(c.id)
		metrics.Connections.Dec()
		if c.srv.presence != nil {
			c.srv.presence.Offline(context.Background(), c.userID)
		}
		close(c.done)
	}()

	c.ws.SetReadLimit(c.srv.cfg.WS.MaxMessageSizeBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.srv.cfg.ReadDeadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.srv.cfg.ReadDeadline))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.srv.cfg.ReadDeadline))
		if !c.limiter.Allow() {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.Send(event.Error("malformed envelope"))
			continue
		}
		c.handle(env)

		if c.srv.presence != nil {
			c.srv.presence.Refresh(context.Background(), c.userID)
		}
	}
}

func (c *Client) handle(env Envelope) {
	ctx := context.Background()
	switch env.Type {
	case opJoin:
		if err := c.srv.svc.Authorize(ctx, env.ConversationID, c.userID); err != nil {
			c.fail(err)
			return
		}
		c.srv.hub.Join(env.ConversationID, c.id)
		c.Send(event.ConversationJoined(env.ConversationID, c.userID))

	case opLeave:
		c.srv.hub.Leave(env.ConversationID, c.id)

	case opSend:
		if _, err := c.srv.svc.Send(ctx, env.ConversationID, c.userID, env.Content, env.Attachments); err != nil {
			c.fail(err)
		}

	case opRead:
		if err := c.srv.svc.MarkRead(ctx, env.MessageID, c.userID); err != nil {
			c.fail(err)
		}

	default:
		c.Send(event.Error("unknown operation: " + env.Type))
	}
}

// fail reports an operation error to this connection only; errors are never
// broadcast.
func (c *Client) fail(err error) {
	msg := "internal error"
	switch {
	case errors.Is(err, apperr.ErrNotAMember):
		msg = apperr.ErrNotAMember.Error()
	case errors.Is(err, apperr.ErrNotFound):
		msg = apperr.ErrNotFound.Error()
	case errors.Is(err, apperr.ErrPersistence):
		msg = apperr.ErrPersistence.Error()
	}
	c.srv.log.Debugw("socket op failed", "user_id", c.userID, "err", err)
	c.Send(event.Error(msg))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.srv.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
			return
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteDeadline))
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteDeadline))
			if err := c.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
