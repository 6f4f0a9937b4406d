package models

import "time"

type ConversationKind string

const (
	KindPrivate ConversationKind = "private"
	KindGroup   ConversationKind = "group"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type ReceiptStatus string

const (
	StatusDelivered ReceiptStatus = "delivered"
	StatusRead      ReceiptStatus = "read"
)

type Conversation struct {
	ID        string           `bson:"_id,omitempty" json:"id"`
	Kind      ConversationKind `bson:"kind" json:"kind"`
	Title     string           `bson:"title,omitempty" json:"title,omitempty"`
	OrgID     string           `bson:"org_id,omitempty" json:"org_id,omitempty"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
}

// ConversationMember is the durable (conversation, user) pair that gates
// every delivery operation. Unique per (conversation_id, user_id).
type ConversationMember struct {
	ConversationID string     `bson:"conversation_id" json:"conversation_id"`
	UserID         string     `bson:"user_id" json:"user_id"`
	Role           MemberRole `bson:"role" json:"role"`
	JoinedAt       time.Time  `bson:"joined_at" json:"joined_at"`
}

// Sender carries the display fields clients need to render a message. The
// users collection is owned by the platform's user service; this service
// only reads it.
type Sender struct {
	ID          string `bson:"_id" json:"id"`
	DisplayName string `bson:"display_name,omitempty" json:"display_name,omitempty"`
	AvatarURL   string `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
}

type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	Content        string    `bson:"content" json:"content"`
	Attachments    []string  `bson:"attachments,omitempty" json:"attachments,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`

	// joined at read/create time, never stored on the message document
	Sender *Sender `bson:"-" json:"sender,omitempty"`
}

// MessageReceipt tracks per-member delivery state. Exactly one exists per
// (message_id, user_id); the sender's starts read, everyone else's delivered.
type MessageReceipt struct {
	MessageID string        `bson:"message_id" json:"message_id"`
	UserID    string        `bson:"user_id" json:"user_id"`
	Status    ReceiptStatus `bson:"status" json:"status"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}
