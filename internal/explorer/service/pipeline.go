package service

import (
	"fmt"

	"github.com/hospitaldata/explorer/internal/config"
	"github.com/hospitaldata/explorer/internal/explorer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// buildPipeline translates an AggregateRequest into one of the five
// supported single-stage pipelines.
func buildPipeline(col *config.Collection, req explorer.AggregateRequest) (mongo.Pipeline, error) {
	need := func(name, v string) error {
		if v == "" {
			return fmt.Errorf("%w: %s is required for %s", explorer.ErrMissingField, name, req.Kind)
		}
		return nil
	}

	switch req.Kind {
	case explorer.AggregateCount:
		if err := need("groupBy", req.GroupBy); err != nil {
			return nil, err
		}
		return groupPipeline(req.GroupBy, "count", bson.D{{Key: "$sum", Value: 1}}), nil

	case explorer.AggregateSum, explorer.AggregateAverage:
		if err := need("groupBy", req.GroupBy); err != nil {
			return nil, err
		}
		if err := need("field", req.Field); err != nil {
			return nil, err
		}
		if req.Kind == explorer.AggregateSum {
			return groupPipeline(req.GroupBy, "total_sum", bson.D{{Key: "$sum", Value: "$" + req.Field}}), nil
		}
		return groupPipeline(req.GroupBy, "average", bson.D{{Key: "$avg", Value: "$" + req.Field}}), nil

	case explorer.AggregateMatch:
		if err := need("field", req.Field); err != nil {
			return nil, err
		}
		v, err := coerce(col, req.Field, req.Value)
		if err != nil {
			return nil, err
		}
		return mongo.Pipeline{
			{{Key: "$match", Value: bson.D{{Key: req.Field, Value: v}}}},
		}, nil

	case explorer.AggregateSort:
		if err := need("field", req.Field); err != nil {
			return nil, err
		}
		return mongo.Pipeline{
			{{Key: "$sort", Value: bson.D{{Key: req.Field, Value: int(explorer.ParseSortOrder(req.Order))}}}},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", explorer.ErrUnknownAggregation, req.Kind)
}

func groupPipeline(groupBy, name string, acc bson.D) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + groupBy},
			{Key: name, Value: acc},
		}}},
	}
}
