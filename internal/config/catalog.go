package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldType names the BSON type a form value is coerced to before it reaches the store.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldInt      FieldType = "int"
	FieldDouble   FieldType = "double"
	FieldBool     FieldType = "bool"
	FieldDate     FieldType = "date"
	FieldObjectID FieldType = "objectId"
)

type Field struct {
	Name string    `yaml:"name" json:"name"`
	Type FieldType `yaml:"type" json:"type"`
}

// Collection declares a browsable collection. Fields may be empty, in which
// case the attribute list is discovered from a sample document.
type Collection struct {
	Name   string  `yaml:"name" json:"name"`
	Fields []Field `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Catalog is the set of collections offered in the collection picker.
type Catalog struct {
	Collections []Collection `yaml:"collections" json:"collections"`
}

// DefaultCatalog lists the hospital datasets with no declared fields.
func DefaultCatalog() *Catalog {
	return &Catalog{Collections: []Collection{
		{Name: "Admissions Collection"},
		{Name: "MedicalRecords Collection"},
		{Name: "Patients Collection"},
	}}
}

// LoadCatalog reads a YAML catalog file and validates it.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog from %s: %w", path, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	return &cat, nil
}

func (c *Catalog) Validate() error {
	if c == nil || len(c.Collections) == 0 {
		return fmt.Errorf("at least one collection must be defined")
	}
	seen := map[string]bool{}
	for _, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("collection name cannot be empty")
		}
		if seen[col.Name] {
			return fmt.Errorf("collection '%s' is defined more than once", col.Name)
		}
		seen[col.Name] = true
		for _, f := range col.Fields {
			if f.Name == "" {
				return fmt.Errorf("field name in collection '%s' cannot be empty", col.Name)
			}
			if f.Name == "_id" {
				return fmt.Errorf("collection '%s' must not declare _id", col.Name)
			}
			switch f.Type {
			case FieldString, FieldInt, FieldDouble, FieldBool, FieldDate, FieldObjectID:
			default:
				return fmt.Errorf("field '%s' in collection '%s' has unsupported type %q", f.Name, col.Name, f.Type)
			}
		}
	}
	return nil
}

// Names returns the collection names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.Collections))
	for _, col := range c.Collections {
		out = append(out, col.Name)
	}
	return out
}

// Lookup returns the declared collection, if any.
func (c *Catalog) Lookup(name string) (*Collection, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Collections {
		if c.Collections[i].Name == name {
			return &c.Collections[i], true
		}
	}
	return nil, false
}

// FieldType reports the declared type of a field.
func (c *Collection) FieldType(name string) (FieldType, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}
