package queryir

import (
	"fmt"

	"github.com/roach88/objgraph/internal/ir"
)

// ValidationError reports a request that does not fit its entity.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("fetch %s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("fetch %s: field %q: %s", e.Entity, e.Field, e.Message)
}

// Validate checks req against the entity it reads. Every filtered or
// sorted field must exist, values must fit the field type, and ordering
// operators and sort keys need ordered fields. The same rules keep SQL and
// in-memory execution in agreement.
//
// Validate is a pure function with no side effects.
func Validate(req FetchRequest, spec ir.EntitySpec) error {
	if req.Entity != spec.Name {
		return &ValidationError{Entity: req.Entity, Message: fmt.Sprintf("request targets %q, schema is %q", req.Entity, spec.Name)}
	}
	for _, c := range req.Filter.Comparisons() {
		typ, ok := fieldType(spec, c.Field)
		if !ok {
			return &ValidationError{Entity: spec.Name, Field: c.Field, Message: "unknown field"}
		}
		switch {
		case c.Op == OpIsNull:
			continue
		case c.Op.Ordering() && !typ.Ordered():
			return &ValidationError{Entity: spec.Name, Field: c.Field, Message: fmt.Sprintf("operator %s needs an ordered field, field is %s", c.Op.Symbol(), typ)}
		case !typ.Accepts(c.Value):
			return &ValidationError{Entity: spec.Name, Field: c.Field, Message: fmt.Sprintf("expected %s value, got %s", typ, ir.Kind(c.Value))}
		}
	}
	for _, k := range req.Sort {
		typ, ok := fieldType(spec, k.Field)
		if !ok {
			return &ValidationError{Entity: spec.Name, Field: k.Field, Message: "unknown sort field"}
		}
		if !typ.Ordered() && typ != ir.TypeBool {
			return &ValidationError{Entity: spec.Name, Field: k.Field, Message: fmt.Sprintf("cannot sort by %s field", typ)}
		}
	}
	return nil
}

func fieldType(spec ir.EntitySpec, field string) (ir.FieldType, bool) {
	if field == IDField {
		return ir.TypeRef, true
	}
	f, ok := spec.Field(field)
	return f.Type, ok
}
