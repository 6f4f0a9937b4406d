package event

import (
	"encoding/json"
	"time"

	"github.com/gatherspace/realtime-service/internal/models"
)

type Type string

const (
	TypeMessageNew         Type = "message:new"
	TypeMessageRead        Type = "message:read"
	TypeConversationJoined Type = "conversation:joined"
	TypeError              Type = "error"
)

// Event is the wire format shared by the socket push path and the polling
// drain path. Data holds exactly one payload shape per Type.
type Event struct {
	Type           Type            `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Data           json.RawMessage `json:"data"`
}

type MessageNewPayload struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	Sender         *models.Sender `json:"sender"`
	Content        string         `json:"content"`
	Attachments    []string       `json:"attachments,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type MessageReadPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
}

type ConversationJoinedPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewMessage(m *models.Message) Event {
	p := MessageNewPayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         m.Sender,
		Content:        m.Content,
		Attachments:    m.Attachments,
		CreatedAt:      m.CreatedAt,
	}
	if p.Sender == nil {
		p.Sender = &models.Sender{ID: m.SenderID}
	}
	return wrap(TypeMessageNew, m.ConversationID, p)
}

func MessageRead(convID, msgID, userID string, at time.Time) Event {
	p := MessageReadPayload{
		MessageID:      msgID,
		ConversationID: convID,
		UserID:         userID,
		Timestamp:      at,
	}
	return wrap(TypeMessageRead, convID, p)
}

func ConversationJoined(convID, userID string) Event {
	return wrap(TypeConversationJoined, convID, ConversationJoinedPayload{
		ConversationID: convID,
		UserID:         userID,
	})
}

func Error(msg string) Event {
	return wrap(TypeError, "", ErrorPayload{Message: msg})
}

func wrap(t Type, convID string, payload any) Event {
	b, _ := json.Marshal(payload)
	return Event{
		Type:           t,
		ConversationID: convID,
		Timestamp:      time.Now().UTC(),
		Data:           b,
	}
}
