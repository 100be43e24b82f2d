package explorer

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is one stored record with its field order preserved.
type Document = bson.D

var (
	// ErrInvalidIdentifier is returned when an _id value is not a valid ObjectID.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInvalidValue is returned when form text cannot be coerced to a declared field type.
	ErrInvalidValue       = errors.New("invalid value")
	ErrUnknownAggregation = errors.New("unknown aggregation")
	ErrMissingField       = errors.New("missing field")
)

type InsertResult struct {
	ID           string `json:"id,omitempty"`
	Acknowledged bool   `json:"acknowledged"`
}

type UpdateResult struct {
	Matched  int64
	Modified int64
}

// UpdateRequest carries the fields to $set on an existing document.
// Empty values in Fields mean "unchanged"; names listed in Clear are set to
// the empty string.
type UpdateRequest struct {
	Fields map[string]string `json:"fields"`
	Clear  []string          `json:"clear,omitempty"`
}

type AggregateKind string

const (
	AggregateCount   AggregateKind = "count"
	AggregateSum     AggregateKind = "sum"
	AggregateAverage AggregateKind = "average"
	AggregateMatch   AggregateKind = "match"
	AggregateSort    AggregateKind = "sort"
)

// AggregateKinds lists the supported pipelines with their display labels, in menu order.
var AggregateKinds = []struct {
	Kind  AggregateKind
	Label string
}{
	{AggregateCount, "Group by and count"},
	{AggregateSum, "Group by and sum"},
	{AggregateAverage, "Group by and average"},
	{AggregateMatch, "Match"},
	{AggregateSort, "Sort"},
}

type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// ParseSortOrder accepts asc/desc and the long forms; anything else is ascending.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "descending", "-1":
		return Descending
	}
	return Ascending
}

// AggregateRequest selects one pipeline shape and its parameters.
// GroupBy is used by the group kinds, Field by sum/average/match/sort and
// Value by match.
type AggregateRequest struct {
	Kind    AggregateKind `json:"kind"`
	GroupBy string        `json:"groupBy,omitempty"`
	Field   string        `json:"field,omitempty"`
	Value   string        `json:"value,omitempty"`
	Order   string        `json:"order,omitempty"`
}

// User-facing outcome messages.
const (
	MsgInserted     = "Data inserted successfully!"
	MsgDeleted      = "Document deleted successfully!"
	MsgUpdated      = "Document updated successfully!"
	MsgInsertFailed = "Failed to insert data. Please check your input."
	MsgDeleteFailed = "Failed to delete document. Please check your input."
	MsgUpdateFailed = "Failed to update document. Please check your input."
	MsgQueryFailed  = "Failed to run query. Please check your input."
	MsgNoResults    = "No results found."
)
