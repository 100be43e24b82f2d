package explorer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Table is the row/column rendering of a result set.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable builds a table whose columns are the union of document keys in
// order of first appearance. Missing cells are empty.
func NewTable(docs []Document) Table {
	t := Table{Columns: []string{}, Rows: make([][]string, 0, len(docs))}
	index := map[string]int{}
	for _, d := range docs {
		for _, e := range d {
			if _, ok := index[e.Key]; !ok {
				index[e.Key] = len(t.Columns)
				t.Columns = append(t.Columns, e.Key)
			}
		}
	}
	for _, d := range docs {
		row := make([]string, len(t.Columns))
		for _, e := range d {
			row[index[e.Key]] = FormatValue(e.Value)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (t Table) Empty() bool { return len(t.Rows) == 0 }

// WriteCSV writes the header and rows as CSV.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// FormatValue renders a BSON value as cell text.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case primitive.Null:
		return ""
	case bson.D, bson.M:
		b, err := bson.MarshalExtJSON(x, false, false)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
