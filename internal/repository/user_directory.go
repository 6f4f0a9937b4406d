package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gatherspace/realtime-service/internal/models"
)

// UserDirectory reads sender display fields from the users collection. The
// collection is written by the platform's user service; a missing profile is
// ErrNotFound, not a failure.
type UserDirectory interface {
	Profile(ctx context.Context, userID string) (*models.Sender, error)
}

type mongoUserDirectory struct {
	col *mongo.Collection
}

func NewUserDirectory(db *mongo.Database) UserDirectory {
	return &mongoUserDirectory{col: db.Collection(colUsers)}
}

func (d *mongoUserDirectory) Profile(ctx context.Context, userID string) (*models.Sender, error) {
	var s models.Sender
	if err := d.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
