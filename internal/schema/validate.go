package schema

import (
	"fmt"

	"github.com/roach88/objgraph/internal/ir"
)

// ValidateFields checks that every key of fields is declared on the entity
// and that its value fits the declared type. Null values always fit.
func ValidateFields(spec ir.EntitySpec, fields ir.IRObject) error {
	for _, key := range fields.SortedKeys() {
		f, ok := spec.Field(key)
		if !ok {
			return &FieldError{Entity: spec.Name, Field: key, Message: "unknown field"}
		}
		if v := fields[key]; !f.Type.Accepts(v) {
			return &FieldError{
				Entity:  spec.Name,
				Field:   key,
				Message: fmt.Sprintf("expected %s, got %s", f.Type, ir.Kind(v)),
			}
		}
	}
	return nil
}

// ValidateRecord checks fields like ValidateFields and also requires every
// non-optional field to hold a value. Records are checked this way before
// they are persisted.
func ValidateRecord(spec ir.EntitySpec, fields ir.IRObject) error {
	if err := ValidateFields(spec, fields); err != nil {
		return err
	}
	for _, f := range spec.Fields {
		if !f.Optional && ir.IsNull(fields[f.Name]) {
			return &FieldError{Entity: spec.Name, Field: f.Name, Message: "required field is missing"}
		}
	}
	return nil
}
