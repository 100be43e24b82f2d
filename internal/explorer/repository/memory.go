package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hospitaldata/explorer/internal/explorer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MemoryStore is an in-process Store used by tests and for running the
// explorer without a database. Documents keep their insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]bson.D
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]bson.D)}
}

func (m *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.collections))
	for name := range m.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) SampleDocument(ctx context.Context, collection string) (explorer.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.collections[collection]
	if len(docs) == 0 {
		return nil, nil
	}
	return cloneDoc(docs[0]), nil
}

func (m *MemoryStore) Find(ctx context.Context, collection string, filter bson.D) ([]explorer.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []explorer.Document{}
	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			out = append(out, cloneDoc(d))
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertOne(ctx context.Context, collection string, doc bson.D) (explorer.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := cloneDoc(doc)
	id, ok := lookup(d, "_id")
	if !ok {
		oid := primitive.NewObjectID()
		d = append(bson.D{{Key: "_id", Value: oid}}, d...)
		id = oid
	}
	m.collections[collection] = append(m.collections[collection], d)
	res := explorer.InsertResult{Acknowledged: true}
	if oid, ok := id.(primitive.ObjectID); ok {
		res.ID = oid.Hex()
	}
	return res, nil
}

func (m *MemoryStore) DeleteOne(ctx context.Context, collection string, id primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.collections[collection]
	for i, d := range docs {
		if v, _ := lookup(d, "_id"); v == id {
			m.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MemoryStore) UpdateOne(ctx context.Context, collection string, id primitive.ObjectID, set bson.D) (explorer.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.collections[collection]
	for i, d := range docs {
		if v, _ := lookup(d, "_id"); v != id {
			continue
		}
		changed := false
		for _, e := range set {
			if e.Key == "_id" {
				continue
			}
			j := indexOf(d, e.Key)
			if j < 0 {
				d = append(d, bson.E{Key: e.Key, Value: e.Value})
				changed = true
				continue
			}
			if !valuesEqual(d[j].Value, e.Value) {
				d[j].Value = e.Value
				changed = true
			}
		}
		docs[i] = d
		res := explorer.UpdateResult{Matched: 1}
		if changed {
			res.Modified = 1
		}
		return res, nil
	}
	return explorer.UpdateResult{}, nil
}

func (m *MemoryStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]explorer.Document, error) {
	docs, err := m.Find(ctx, collection, bson.D{})
	if err != nil {
		return nil, err
	}
	return runPipeline(docs, pipeline)
}

func cloneDoc(d bson.D) bson.D {
	out := make(bson.D, len(d))
	copy(out, d)
	return out
}

func indexOf(d bson.D, key string) int {
	for i, e := range d {
		if e.Key == key {
			return i
		}
	}
	return -1
}

func lookup(d bson.D, key string) (interface{}, bool) {
	if i := indexOf(d, key); i >= 0 {
		return d[i].Value, true
	}
	return nil, false
}

// matches reports whether every filter element equals the document's value.
// A nil filter value matches a missing field, as in MongoDB.
func matches(d bson.D, filter bson.D) bool {
	for _, f := range filter {
		v, ok := lookup(d, f.Key)
		if !ok {
			if f.Value == nil {
				continue
			}
			return false
		}
		if !valuesEqual(v, f.Value) {
			return false
		}
	}
	return true
}
