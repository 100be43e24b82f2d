package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hospitaldata/explorer/internal/config"
	"github.com/hospitaldata/explorer/internal/explorer"
	"github.com/hospitaldata/explorer/internal/explorer/repository"
	"github.com/hospitaldata/explorer/pkg/logger"
	"github.com/hospitaldata/explorer/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Service defines the explorer operations used by the handler layer and the CLI.
type Service interface {
	Collections(ctx context.Context) []string
	ListAttributes(ctx context.Context, collection string) ([]string, error)
	Find(ctx context.Context, collection string, query map[string]string) ([]explorer.Document, error)
	Insert(ctx context.Context, collection string, fields map[string]string) (explorer.InsertResult, error)
	Delete(ctx context.Context, collection, id string) (bool, error)
	Update(ctx context.Context, collection, id string, req explorer.UpdateRequest) (bool, error)
	Aggregate(ctx context.Context, collection string, req explorer.AggregateRequest) ([]explorer.Document, error)
	BuildPipeline(collection string, req explorer.AggregateRequest) (mongo.Pipeline, error)
}

// Translator maps explorer requests onto store operations.
type Translator struct {
	store   repository.Store
	catalog *config.Catalog
}

// New returns a Translator. A nil catalog behaves like an empty one.
func New(store repository.Store, catalog *config.Catalog) *Translator {
	if catalog == nil {
		catalog = &config.Catalog{}
	}
	return &Translator{store: store, catalog: catalog}
}

// NewMemoryService returns a Translator backed by an in-memory store.
func NewMemoryService(catalog *config.Catalog) *Translator {
	return New(repository.NewMemoryStore(), catalog)
}

// NewMongoService returns a Translator backed by a MongoDB database.
func NewMongoService(db *mongo.Database, catalog *config.Catalog) *Translator {
	return New(repository.NewMongoStore(db), catalog)
}

func (t *Translator) collection(name string) *config.Collection {
	col, _ := t.catalog.Lookup(name)
	return col
}

// observe records the operation outcome. ok is ignored when err is set.
func observe(op string, start time.Time, ok bool, err error) {
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
		logger.Warnf("%s failed: %v", op, err)
	case !ok:
		outcome = metrics.OutcomeFailure
	}
	metrics.Operations.WithLabelValues(op, outcome).Inc()
}

func (t *Translator) Collections(ctx context.Context) []string {
	return t.catalog.Names()
}

// ListAttributes returns the declared fields of a catalogued collection,
// otherwise the keys of one arbitrary document. An empty or missing
// collection yields an empty slice.
func (t *Translator) ListAttributes(ctx context.Context, collection string) (attrs []string, err error) {
	defer func(start time.Time) { observe("attributes", start, true, err) }(time.Now())

	if col := t.collection(collection); col != nil && len(col.Fields) > 0 {
		attrs = make([]string, 0, len(col.Fields)+1)
		attrs = append(attrs, "_id")
		for _, f := range col.Fields {
			attrs = append(attrs, f.Name)
		}
		return attrs, nil
	}
	doc, err := t.store.SampleDocument(ctx, collection)
	if err != nil {
		return nil, err
	}
	attrs = make([]string, 0, len(doc))
	for _, e := range doc {
		attrs = append(attrs, e.Key)
	}
	return attrs, nil
}

// Find runs an exact-match query. _id values must be valid ObjectIDs.
func (t *Translator) Find(ctx context.Context, collection string, query map[string]string) (docs []explorer.Document, err error) {
	defer func(start time.Time) { observe("find", start, len(docs) > 0, err) }(time.Now())

	col := t.collection(collection)
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	filter := make(bson.D, 0, len(keys))
	for _, k := range keys {
		v, err := coerce(col, k, query[k])
		if err != nil {
			return nil, err
		}
		filter = append(filter, bson.E{Key: k, Value: v})
	}
	return t.store.Find(ctx, collection, filter)
}

// Insert stores one document built from fields. _id is never taken from input.
// Fields follow the collection's attribute order, then any extras by name.
func (t *Translator) Insert(ctx context.Context, collection string, fields map[string]string) (res explorer.InsertResult, err error) {
	defer func(start time.Time) { observe("insert", start, res.Acknowledged, err) }(time.Now())

	attrs, err := t.ListAttributes(ctx, collection)
	if err != nil {
		return res, err
	}
	col := t.collection(collection)
	doc := bson.D{}
	used := map[string]bool{"_id": true}
	add := func(k string) error {
		v, ok := fields[k]
		if !ok || used[k] {
			return nil
		}
		used[k] = true
		cv, err := coerce(col, k, v)
		if err != nil {
			return err
		}
		doc = append(doc, bson.E{Key: k, Value: cv})
		return nil
	}
	for _, a := range attrs {
		if err := add(a); err != nil {
			return res, err
		}
	}
	extra := make([]string, 0, len(fields))
	for k := range fields {
		if !used[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if err := add(k); err != nil {
			return res, err
		}
	}
	return t.store.InsertOne(ctx, collection, doc)
}

// Delete removes the document with the given id. It reports false, not an
// error, when nothing was removed.
func (t *Translator) Delete(ctx context.Context, collection, id string) (ok bool, err error) {
	defer func(start time.Time) { observe("delete", start, ok, err) }(time.Now())

	oid, err := ParseID(id)
	if err != nil {
		return false, err
	}
	n, err := t.store.DeleteOne(ctx, collection, oid)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Update sets the non-empty fields of req plus the names in req.Clear.
// It succeeds only when the document exists and at least one value changed.
func (t *Translator) Update(ctx context.Context, collection, id string, req explorer.UpdateRequest) (ok bool, err error) {
	defer func(start time.Time) { observe("update", start, ok, err) }(time.Now())

	oid, err := ParseID(id)
	if err != nil {
		return false, err
	}
	col := t.collection(collection)
	keys := make([]string, 0, len(req.Fields))
	for k, v := range req.Fields {
		if k != "_id" && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	set := bson.D{}
	for _, k := range keys {
		v, err := coerce(col, k, req.Fields[k])
		if err != nil {
			return false, err
		}
		set = append(set, bson.E{Key: k, Value: v})
	}
	for _, k := range req.Clear {
		if k == "_id" || req.Fields[k] != "" {
			continue
		}
		set = append(set, bson.E{Key: k, Value: ""})
	}
	if len(set) == 0 {
		return false, nil
	}
	res, err := t.store.UpdateOne(ctx, collection, oid, set)
	if err != nil {
		return false, err
	}
	return res.Matched > 0 && res.Modified > 0, nil
}

// BuildPipeline translates req without running it.
func (t *Translator) BuildPipeline(collection string, req explorer.AggregateRequest) (mongo.Pipeline, error) {
	return buildPipeline(t.collection(collection), req)
}

// Aggregate builds and runs one of the supported pipelines.
func (t *Translator) Aggregate(ctx context.Context, collection string, req explorer.AggregateRequest) (rows []explorer.Document, err error) {
	defer func(start time.Time) { observe("aggregate", start, len(rows) > 0, err) }(time.Now())

	pipeline, err := t.BuildPipeline(collection, req)
	if err != nil {
		return nil, err
	}
	return t.store.Aggregate(ctx, collection, pipeline)
}

// IsInputError reports whether err was caused by the request rather than the store.
func IsInputError(err error) bool {
	return errors.Is(err, explorer.ErrInvalidValue) ||
		errors.Is(err, explorer.ErrMissingField) ||
		errors.Is(err, explorer.ErrUnknownAggregation)
}
