package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gatherspace/realtime-service/internal/models"
)

// MessageStore persists messages and their per-member receipts.
type MessageStore interface {
	// CreateWithReceipts inserts the message and one receipt per member in a
	// single transaction. The sender's receipt starts read, all others
	// delivered.
	CreateWithReceipts(ctx context.Context, m *models.Message, memberIDs []string) (*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// MarkRead flips the receipt to read; reports false when the receipt was
	// already read (or absent), making repeat calls no-ops.
	MarkRead(ctx context.Context, messageID, userID string) (bool, error)
	ListMessages(ctx context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error)
	Receipts(ctx context.Context, messageID string) ([]models.MessageReceipt, error)
}

type mongoMessageStore struct {
	client  *mongo.Client
	msgCol  *mongo.Collection
	rcptCol *mongo.Collection
}

func NewMessageStore(client *mongo.Client, db *mongo.Database) MessageStore {
	return &mongoMessageStore{
		client:  client,
		msgCol:  db.Collection(colMessages),
		rcptCol: db.Collection(colReceipts),
	}
}

func (r *mongoMessageStore) CreateWithReceipts(ctx context.Context, m *models.Message, memberIDs []string) (*models.Message, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// string hex ids keep _id decodable into the model's string field
		m.ID = primitive.NewObjectID().Hex()
		m.CreatedAt = time.Now().UTC()
		if _, err := r.msgCol.InsertOne(sc, m); err != nil {
			return nil, err
		}

		built := BuildReceipts(m, memberIDs)
		if len(built) > 0 {
			receipts := make([]interface{}, len(built))
			for i, rc := range built {
				receipts[i] = rc
			}
			if _, err := r.rcptCol.InsertMany(sc, receipts); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *mongoMessageStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.msgCol.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageStore) MarkRead(ctx context.Context, messageID, userID string) (bool, error) {
	res, err := r.rcptCol.UpdateOne(ctx, bson.M{
		"message_id": messageID,
		"user_id":    userID,
		"status":     models.StatusDelivered,
	}, bson.M{
		"$set": bson.M{
			"status":     models.StatusRead,
			"updated_at": time.Now().UTC(),
		},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *mongoMessageStore) ListMessages(ctx context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := r.msgCol.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	// chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, cur.Err()
}

func (r *mongoMessageStore) Receipts(ctx context.Context, messageID string) ([]models.MessageReceipt, error) {
	cur, err := r.rcptCol.Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.MessageReceipt
	for cur.Next(ctx) {
		var rc models.MessageReceipt
		if err := cur.Decode(&rc); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, cur.Err()
}
