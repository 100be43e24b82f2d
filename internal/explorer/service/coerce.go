package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hospitaldata/explorer/internal/config"
	"github.com/hospitaldata/explorer/internal/explorer"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseID converts a hex string into an ObjectID.
func ParseID(s string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q: %v", explorer.ErrInvalidIdentifier, s, err)
	}
	return oid, nil
}

// coerce converts form text for field into the value stored or matched.
// _id always becomes an ObjectID; declared fields follow their catalog type;
// everything else stays text.
func coerce(col *config.Collection, field, text string) (interface{}, error) {
	if field == "_id" {
		return ParseID(text)
	}
	if col == nil {
		return text, nil
	}
	ft, ok := col.FieldType(field)
	if !ok {
		return text, nil
	}
	s := strings.TrimSpace(text)
	switch ft {
	case config.FieldInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, invalidValue(field, ft, text)
		}
		return n, nil
	case config.FieldDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, invalidValue(field, ft, text)
		}
		return f, nil
	case config.FieldBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, invalidValue(field, ft, text)
		}
		return b, nil
	case config.FieldDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return primitive.NewDateTimeFromTime(t), nil
			}
		}
		return nil, invalidValue(field, ft, text)
	case config.FieldObjectID:
		oid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, invalidValue(field, ft, text)
		}
		return oid, nil
	}
	return text, nil
}

func invalidValue(field string, ft config.FieldType, text string) error {
	return fmt.Errorf("%w: field %s expects %s, got %q", explorer.ErrInvalidValue, field, ft, text)
}
