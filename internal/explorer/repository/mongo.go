package repository

import (
	"context"
	"errors"

	"github.com/hospitaldata/explorer/internal/explorer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore implements Store on top of a MongoDB database handle.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (m *MongoStore) Collections(ctx context.Context) ([]string, error) {
	return m.db.ListCollectionNames(ctx, bson.D{})
}

func (m *MongoStore) SampleDocument(ctx context.Context, collection string) (explorer.Document, error) {
	var d bson.D
	err := m.db.Collection(collection).FindOne(ctx, bson.D{}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func (m *MongoStore) Find(ctx context.Context, collection string, filter bson.D) ([]explorer.Document, error) {
	cur, err := m.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []explorer.Document{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) InsertOne(ctx context.Context, collection string, doc bson.D) (explorer.InsertResult, error) {
	res, err := m.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
			return explorer.InsertResult{Acknowledged: false}, nil
		}
		return explorer.InsertResult{}, err
	}
	out := explorer.InsertResult{Acknowledged: true}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		out.ID = oid.Hex()
	}
	return out, nil
}

func (m *MongoStore) DeleteOne(ctx context.Context, collection string, id primitive.ObjectID) (int64, error) {
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *MongoStore) UpdateOne(ctx context.Context, collection string, id primitive.ObjectID, set bson.D) (explorer.UpdateResult, error) {
	res, err := m.db.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return explorer.UpdateResult{}, err
	}
	return explorer.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (m *MongoStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]explorer.Document, error) {
	cur, err := m.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []explorer.Document{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
