package repository

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hospitaldata/explorer/internal/explorer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// runPipeline evaluates the subset of aggregation stages the explorer
// emits: $group with $sum/$avg accumulators, equality $match and $sort.
func runPipeline(docs []bson.D, pipeline mongo.Pipeline) ([]explorer.Document, error) {
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage %d: expected exactly one operator, got %d", i, len(stage))
		}
		var err error
		switch op := stage[0]; op.Key {
		case "$match":
			filter, ok := op.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("stage %d: $match expects a document", i)
			}
			out := docs[:0:0]
			for _, d := range docs {
				if matches(d, filter) {
					out = append(out, d)
				}
			}
			docs = out
		case "$sort":
			keys, ok := op.Value.(bson.D)
			if !ok || len(keys) == 0 {
				return nil, fmt.Errorf("stage %d: $sort expects a non-empty document", i)
			}
			docs, err = sortStage(docs, keys)
		case "$group":
			spec, ok := op.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("stage %d: $group expects a document", i)
			}
			docs, err = groupStage(docs, spec)
		default:
			return nil, fmt.Errorf("stage %d: unsupported operator %s", i, op.Key)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return docs, nil
}

func sortStage(docs []bson.D, keys bson.D) ([]bson.D, error) {
	dirs := make([]int, len(keys))
	for i, k := range keys {
		n, ok := toFloat(k.Value)
		if !ok || (n != 1 && n != -1) {
			return nil, fmt.Errorf("$sort direction for %s must be 1 or -1", k.Key)
		}
		dirs[i] = int(n)
	}
	out := make([]bson.D, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(a, b int) bool {
		for i, k := range keys {
			va, _ := resolvePath(out[a], k.Key)
			vb, _ := resolvePath(out[b], k.Key)
			if c := compareValues(va, vb) * dirs[i]; c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out, nil
}

type accumulator struct {
	name  string
	op    string
	arg   interface{}
	sum   float64
	isInt bool
	n     int
}

type group struct {
	id   interface{}
	accs []*accumulator
}

func groupStage(docs []bson.D, spec bson.D) ([]bson.D, error) {
	idExpr, ok := lookup(spec, "_id")
	if !ok {
		return nil, fmt.Errorf("$group requires an _id expression")
	}
	type accSpec struct {
		name, op string
		arg      interface{}
	}
	var specs []accSpec
	for _, e := range spec {
		if e.Key == "_id" {
			continue
		}
		body, ok := e.Value.(bson.D)
		if !ok || len(body) != 1 {
			return nil, fmt.Errorf("accumulator %s must be a single-operator document", e.Key)
		}
		switch body[0].Key {
		case "$sum", "$avg":
		default:
			return nil, fmt.Errorf("unsupported accumulator %s", body[0].Key)
		}
		specs = append(specs, accSpec{name: e.Key, op: body[0].Key, arg: body[0].Value})
	}

	var order []*group
	byKey := map[string]*group{}
	for _, d := range docs {
		id := evalExpr(d, idExpr)
		k := groupKey(id)
		g, ok := byKey[k]
		if !ok {
			g = &group{id: id}
			for _, s := range specs {
				g.accs = append(g.accs, &accumulator{name: s.name, op: s.op, arg: s.arg, isInt: true})
			}
			byKey[k] = g
			order = append(order, g)
		}
		for _, a := range g.accs {
			v := evalExpr(d, a.arg)
			n, ok := toFloat(v)
			if !ok {
				continue
			}
			if !isIntegral(v) {
				a.isInt = false
			}
			a.sum += n
			a.n++
		}
	}

	out := make([]bson.D, 0, len(order))
	for _, g := range order {
		row := bson.D{{Key: "_id", Value: g.id}}
		for _, a := range g.accs {
			row = append(row, bson.E{Key: a.name, Value: a.result()})
		}
		out = append(out, row)
	}
	return out, nil
}

func (a *accumulator) result() interface{} {
	if a.op == "$avg" {
		if a.n == 0 {
			return nil
		}
		return a.sum / float64(a.n)
	}
	if a.isInt {
		return int64(a.sum)
	}
	return a.sum
}

// evalExpr resolves "$field" references; any other value is a constant.
func evalExpr(d bson.D, expr interface{}) interface{} {
	if s, ok := expr.(string); ok && strings.HasPrefix(s, "$") {
		v, _ := resolvePath(d, s[1:])
		return v
	}
	return expr
}

// resolvePath looks up a dotted path through embedded documents.
func resolvePath(d bson.D, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = d
	for _, p := range parts {
		switch doc := cur.(type) {
		case bson.D:
			v, ok := lookup(doc, p)
			if !ok {
				return nil, false
			}
			cur = v
		case bson.M:
			v, ok := doc[p]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

func groupKey(v interface{}) string {
	if n, ok := toFloat(v); ok {
		return fmt.Sprintf("n:%v", n)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func isIntegral(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64:
		return true
	}
	return false
}

func valuesEqual(a, b interface{}) bool {
	if na, ok := toFloat(a); ok {
		nb, ok := toFloat(b)
		return ok && na == nb
	}
	return compareValues(a, b) == 0 && typeRank(a) == typeRank(b)
}

// typeRank follows the BSON comparison order for the types the explorer stores.
func typeRank(v interface{}) int {
	switch v.(type) {
	case nil, primitive.Null:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case string:
		return 3
	case bson.D, bson.M:
		return 4
	case bson.A:
		return 5
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime, time.Time:
		return 9
	}
	return 10
}

func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 1:
		return 0
	case 2:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return cmpFloat(x, y)
	case 3:
		return strings.Compare(a.(string), b.(string))
	case 7:
		x, y := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return strings.Compare(x.Hex(), y.Hex())
	case 8:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case 9:
		x, y := asTime(a), asTime(b)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func asTime(v interface{}) time.Time {
	if dt, ok := v.(primitive.DateTime); ok {
		return dt.Time()
	}
	return v.(time.Time)
}
