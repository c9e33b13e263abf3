package schema

import (
	"fmt"
)

// ForeignKey declares that a field's value must match the id of an existing
// record in another table. The referenced field is always the record id.
type ForeignKey struct {
	Field    string
	RefTable string
}

// Descriptor is the declarative table configuration the generic repository is
// parameterized by: the table name, its validation schema, which fields carry
// secondary indexes, and its foreign-key edges.
type Descriptor struct {
	Table       string
	Schema      Schema
	IndexFields []string
	ForeignKeys []ForeignKey
}

// Check verifies the descriptor is internally consistent. Called once at
// repository construction; a failure here is a programmer error.
func (d Descriptor) Check() error {
	if d.Table == "" {
		return fmt.Errorf("descriptor has empty table name")
	}
	if err := d.Schema.CheckDefinition(); err != nil {
		return fmt.Errorf("table %s: %w", d.Table, err)
	}
	for _, field := range d.IndexFields {
		if _, ok := d.Schema[field]; !ok {
			return fmt.Errorf("table %s: index field %q not declared in schema", d.Table, field)
		}
	}
	seen := make(map[string]bool, len(d.ForeignKeys))
	for _, fk := range d.ForeignKeys {
		if _, ok := d.Schema[fk.Field]; !ok {
			return fmt.Errorf("table %s: foreign key field %q not declared in schema", d.Table, fk.Field)
		}
		if fk.RefTable == "" {
			return fmt.Errorf("table %s: foreign key %q has empty target table", d.Table, fk.Field)
		}
		if seen[fk.Field] {
			return fmt.Errorf("table %s: duplicate foreign key on field %q", d.Table, fk.Field)
		}
		seen[fk.Field] = true
	}
	return nil
}

// Indexed reports whether a field carries a secondary index.
func (d Descriptor) Indexed(field string) bool {
	for _, f := range d.IndexFields {
		if f == field {
			return true
		}
	}
	return false
}
