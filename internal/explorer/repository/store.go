package repository

import (
	"context"

	"github.com/hospitaldata/explorer/internal/explorer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is the generic collection handle the translator runs against.
type Store interface {
	Collections(ctx context.Context) ([]string, error)
	// SampleDocument returns one arbitrary document, or nil when the
	// collection is empty or does not exist.
	SampleDocument(ctx context.Context, collection string) (explorer.Document, error)
	Find(ctx context.Context, collection string, filter bson.D) ([]explorer.Document, error)
	InsertOne(ctx context.Context, collection string, doc bson.D) (explorer.InsertResult, error)
	DeleteOne(ctx context.Context, collection string, id primitive.ObjectID) (int64, error)
	UpdateOne(ctx context.Context, collection string, id primitive.ObjectID, set bson.D) (explorer.UpdateResult, error)
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]explorer.Document, error)
}
