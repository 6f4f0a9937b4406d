package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gatherspace/realtime-service/internal/models"
)

// MembershipStore is the single source of truth for who may join, send to,
// or read a conversation.
type MembershipStore interface {
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	MemberIDs(ctx context.Context, conversationID string) ([]string, error)
	AddMember(ctx context.Context, m *models.ConversationMember) error
	CreateConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
}

type mongoMembershipStore struct {
	convCol   *mongo.Collection
	memberCol *mongo.Collection
}

func NewMembershipStore(db *mongo.Database) MembershipStore {
	return &mongoMembershipStore{
		convCol:   db.Collection(colConversations),
		memberCol: db.Collection(colMembers),
	}
}

func (r *mongoMembershipStore) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	n, err := r.memberCol.CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *mongoMembershipStore) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	cur, err := r.memberCol.Find(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var m models.ConversationMember
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, m.UserID)
	}
	return out, cur.Err()
}

func (r *mongoMembershipStore) AddMember(ctx context.Context, m *models.ConversationMember) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	_, err := r.memberCol.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (r *mongoMembershipStore) CreateConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	if c.ID == "" {
		c.ID = primitive.NewObjectID().Hex()
	}
	c.CreatedAt = time.Now().UTC()
	if _, err := r.convCol.InsertOne(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
