package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hospitaldata/explorer/internal/config"
	"github.com/hospitaldata/explorer/internal/explorer"
	"github.com/hospitaldata/explorer/internal/explorer/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const patients = "Patients Collection"

func value(t *testing.T, d explorer.Document, key string) interface{} {
	t.Helper()
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	t.Fatalf("key %q missing from %v", key, d)
	return nil
}

func TestListAttributes_EmptyCollection(t *testing.T) {
	svc := NewMemoryService(config.DefaultCatalog())
	attrs, err := svc.ListAttributes(context.Background(), patients)
	require.NoError(t, err)
	require.NotNil(t, attrs)
	require.Empty(t, attrs)

	attrs, err = svc.ListAttributes(context.Background(), "no such collection")
	require.NoError(t, err)
	require.Empty(t, attrs)
}

func TestListAttributes_FromSampleDocument(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(config.DefaultCatalog())
	_, err := svc.Insert(ctx, patients, map[string]string{"name": "Ada", "age": "36"})
	require.NoError(t, err)

	attrs, err := svc.ListAttributes(ctx, patients)
	require.NoError(t, err)
	// no attributes known at insert time, so extras are stored by name
	require.Equal(t, []string{"_id", "age", "name"}, attrs)
}

func TestListAttributes_FromCatalog(t *testing.T) {
	cat := &config.Catalog{Collections: []config.Collection{{
		Name:   patients,
		Fields: []config.Field{{Name: "name", Type: config.FieldString}, {Name: "age", Type: config.FieldInt}},
	}}}
	svc := NewMemoryService(cat)
	attrs, err := svc.ListAttributes(context.Background(), patients)
	require.NoError(t, err)
	require.Equal(t, []string{"_id", "name", "age"}, attrs)
}

func TestInsertThenFind(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(config.DefaultCatalog())

	res, err := svc.Insert(ctx, patients, map[string]string{"name": "Ada", "ward": "A"})
	require.NoError(t, err)
	require.True(t, res.Acknowledged)
	require.NotEmpty(t, res.ID)
	_, err = svc.Insert(ctx, patients, map[string]string{"name": "Grace", "ward": "B"})
	require.NoError(t, err)

	docs, err := svc.Find(ctx, patients, map[string]string{"name": "Ada"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "A", value(t, docs[0], "ward"))

	docs, err = svc.Find(ctx, patients, map[string]string{"_id": res.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	docs, err = svc.Find(ctx, patients, map[string]string{"name": "Nobody"})
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestInsert_IgnoresID(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(nil)
	forced := primitive.NewObjectID().Hex()
	res, err := svc.Insert(ctx, "c", map[string]string{"_id": forced, "a": "1"})
	require.NoError(t, err)
	require.NotEqual(t, forced, res.ID)
}

func TestFind_InvalidIdentifier(t *testing.T) {
	svc := NewMemoryService(nil)
	_, err := svc.Find(context.Background(), "c", map[string]string{"_id": "not-an-id"})
	require.Error(t, err)
	require.True(t, errors.Is(err, explorer.ErrInvalidIdentifier))
}

func TestFind_TypedCatalogField(t *testing.T) {
	ctx := context.Background()
	cat := &config.Catalog{Collections: []config.Collection{{
		Name:   patients,
		Fields: []config.Field{{Name: "age", Type: config.FieldInt}, {Name: "admitted", Type: config.FieldDate}},
	}}}
	svc := NewMemoryService(cat)
	_, err := svc.Insert(ctx, patients, map[string]string{"age": "42", "admitted": "2024-01-02"})
	require.NoError(t, err)

	docs, err := svc.Find(ctx, patients, map[string]string{"age": "42"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, int64(42), value(t, docs[0], "age"))
	require.IsType(t, primitive.DateTime(0), value(t, docs[0], "admitted"))

	_, err = svc.Find(ctx, patients, map[string]string{"age": "forty"})
	require.True(t, errors.Is(err, explorer.ErrInvalidValue))
	require.True(t, IsInputError(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(nil)
	res, err := svc.Insert(ctx, "c", map[string]string{"a": "1"})
	require.NoError(t, err)

	ok, err := svc.Delete(ctx, "c", res.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Delete(ctx, "c", res.ID)
	require.NoError(t, err, "deleting a nonexistent id is a failure, not an error")
	require.False(t, ok)

	_, err = svc.Delete(ctx, "c", "zzz")
	require.True(t, errors.Is(err, explorer.ErrInvalidIdentifier))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(nil)
	res, err := svc.Insert(ctx, "c", map[string]string{"name": "Ada", "ward": "A"})
	require.NoError(t, err)

	ok, err := svc.Update(ctx, "c", res.ID, explorer.UpdateRequest{Fields: map[string]string{"name": "", "ward": ""}})
	require.NoError(t, err)
	assert.False(t, ok, "no non-empty fields is a no-op")

	ok, err = svc.Update(ctx, "c", res.ID, explorer.UpdateRequest{Fields: map[string]string{"ward": "B", "name": ""}})
	require.NoError(t, err)
	assert.True(t, ok)

	docs, err := svc.Find(ctx, "c", map[string]string{"_id": res.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Ada", value(t, docs[0], "name"))
	assert.Equal(t, "B", value(t, docs[0], "ward"))

	ok, err = svc.Update(ctx, "c", res.ID, explorer.UpdateRequest{Fields: map[string]string{"ward": "B"}})
	require.NoError(t, err)
	assert.False(t, ok, "unchanged value is not a modification")

	ok, err = svc.Update(ctx, "c", res.ID, explorer.UpdateRequest{Clear: []string{"ward"}})
	require.NoError(t, err)
	assert.True(t, ok)
	docs, _ = svc.Find(ctx, "c", map[string]string{"_id": res.ID})
	assert.Equal(t, "", value(t, docs[0], "ward"))

	ok, err = svc.Update(ctx, "c", primitive.NewObjectID().Hex(), explorer.UpdateRequest{Fields: map[string]string{"ward": "C"}})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Update(ctx, "c", "bad", explorer.UpdateRequest{Fields: map[string]string{"ward": "C"}})
	assert.True(t, errors.Is(err, explorer.ErrInvalidIdentifier))
}

// countingStore wraps a store to observe whether UpdateOne was reached.
type countingStore struct {
	repository.Store
	updates int
}

func (c *countingStore) UpdateOne(ctx context.Context, collection string, id primitive.ObjectID, set bson.D) (explorer.UpdateResult, error) {
	c.updates++
	return c.Store.UpdateOne(ctx, collection, id, set)
}

func TestUpdate_NoFieldsSkipsStore(t *testing.T) {
	store := &countingStore{Store: repository.NewMemoryStore()}
	svc := New(store, nil)
	ok, err := svc.Update(context.Background(), "c", primitive.NewObjectID().Hex(), explorer.UpdateRequest{})
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, store.updates)
}

func TestAggregate_CountByGroup(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(nil)
	wards := []string{"A", "B", "A", "C", "A", "B"}
	for i, w := range wards {
		_, err := svc.Insert(ctx, "admissions", map[string]string{"ward": w, "n": fmt.Sprint(i)})
		require.NoError(t, err)
	}

	rows, err := svc.Aggregate(ctx, "admissions", explorer.AggregateRequest{Kind: explorer.AggregateCount, GroupBy: "ward"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	var total int64
	for _, r := range rows {
		total += value(t, r, "count").(int64)
	}
	require.Equal(t, int64(len(wards)), total)
}

func TestAggregate_SumAndAverage(t *testing.T) {
	ctx := context.Background()
	cat := &config.Catalog{Collections: []config.Collection{{
		Name:   "bills",
		Fields: []config.Field{{Name: "dept", Type: config.FieldString}, {Name: "amount", Type: config.FieldDouble}},
	}}}
	svc := NewMemoryService(cat)
	for _, a := range []string{"10", "20", "30"} {
		_, err := svc.Insert(ctx, "bills", map[string]string{"dept": "x", "amount": a})
		require.NoError(t, err)
	}

	rows, err := svc.Aggregate(ctx, "bills", explorer.AggregateRequest{Kind: explorer.AggregateSum, GroupBy: "dept", Field: "amount"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 60.0, value(t, rows[0], "total_sum"))

	rows, err = svc.Aggregate(ctx, "bills", explorer.AggregateRequest{Kind: explorer.AggregateAverage, GroupBy: "dept", Field: "amount"})
	require.NoError(t, err)
	require.Equal(t, 20.0, value(t, rows[0], "average"))
}

func TestAggregate_MatchAndSortDescending(t *testing.T) {
	ctx := context.Background()
	cat := &config.Catalog{Collections: []config.Collection{{
		Name:   "c",
		Fields: []config.Field{{Name: "k", Type: config.FieldInt}, {Name: "t", Type: config.FieldString}},
	}}}
	svc := NewMemoryService(cat)
	for _, k := range []string{"5", "1", "9", "3", "9"} {
		_, err := svc.Insert(ctx, "c", map[string]string{"k": k, "t": "x"})
		require.NoError(t, err)
	}

	rows, err := svc.Aggregate(ctx, "c", explorer.AggregateRequest{Kind: explorer.AggregateSort, Field: "k", Order: "Descending"})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		require.GreaterOrEqual(t, value(t, rows[i-1], "k").(int64), value(t, rows[i], "k").(int64))
	}

	rows, err = svc.Aggregate(ctx, "c", explorer.AggregateRequest{Kind: explorer.AggregateMatch, Field: "k", Value: "9"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestBuildPipeline(t *testing.T) {
	svc := NewMemoryService(nil)

	p, err := svc.BuildPipeline("c", explorer.AggregateRequest{Kind: explorer.AggregateCount, GroupBy: "ward"})
	require.NoError(t, err)
	require.Equal(t, mongo.Pipeline{{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$ward"},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}}, p)

	p, err = svc.BuildPipeline("c", explorer.AggregateRequest{Kind: explorer.AggregateSort, Field: "age", Order: "asc"})
	require.NoError(t, err)
	require.Equal(t, mongo.Pipeline{{{Key: "$sort", Value: bson.D{{Key: "age", Value: 1}}}}}, p)

	p, err = svc.BuildPipeline("c", explorer.AggregateRequest{Kind: explorer.AggregateMatch, Field: "name", Value: "Ada"})
	require.NoError(t, err)
	require.Equal(t, mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "name", Value: "Ada"}}}}}, p)

	_, err = svc.BuildPipeline("c", explorer.AggregateRequest{Kind: explorer.AggregateSum, GroupBy: "ward"})
	require.True(t, errors.Is(err, explorer.ErrMissingField))

	_, err = svc.BuildPipeline("c", explorer.AggregateRequest{Kind: "median", Field: "x"})
	require.True(t, errors.Is(err, explorer.ErrUnknownAggregation))
}
