package schema

import (
	"fmt"
	"regexp"

	"cuelang.org/go/cue"

	"github.com/roach88/objgraph/internal/ir"
)

var identPattern = regexp.MustCompile(`^\w+$`)

// Compile builds a Registry from a CUE value holding a top-level "entity"
// struct. Entities are compiled in label order.
func Compile(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{
			Field:   "entity",
			Message: "model declares no entities",
			Pos:     v.Pos(),
		}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.EntitySpec
	for iter.Next() {
		spec, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return NewRegistry(specs...)
}

// CompileEntity parses a single entity struct, e.g. the value at
// "entity.Person".
func CompileEntity(v cue.Value) (ir.EntitySpec, error) {
	if err := v.Err(); err != nil {
		return ir.EntitySpec{}, formatCUEError(err)
	}

	var spec ir.EntitySpec
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}
	if !identPattern.MatchString(spec.Name) {
		return spec, &CompileError{
			Field:   "entity",
			Message: fmt.Sprintf("entity name %q must be an identifier", spec.Name),
			Pos:     v.Pos(),
		}
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return spec, &CompileError{
			Field:   "entity." + spec.Name + ".fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields(cue.Optional(true))
	if err != nil {
		return spec, formatCUEError(err)
	}
	for iter.Next() {
		field, err := compileField(spec.Name, iter)
		if err != nil {
			return spec, err
		}
		spec.Fields = append(spec.Fields, field)
	}
	if len(spec.Fields) == 0 {
		return spec, &CompileError{
			Field:   "entity." + spec.Name + ".fields",
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}
	spec.SortFields()
	return spec, nil
}

func compileField(entity string, iter *cue.Iterator) (ir.FieldSpec, error) {
	name := iter.Label()
	v := iter.Value()
	field := ir.FieldSpec{Name: name, Optional: iter.IsOptional()}

	if !identPattern.MatchString(name) || name == "id" {
		return field, &CompileError{
			Field:   "entity." + entity + ".fields." + name,
			Message: "field names must be identifiers other than \"id\"",
			Pos:     v.Pos(),
		}
	}

	typ, err := extractFieldType(v)
	if err != nil {
		return field, err
	}
	field.Type = typ

	if ref := v.Attribute("ref"); ref.Err() == nil {
		if typ != ir.TypeString {
			return field, &CompileError{
				Field:   "entity." + entity + ".fields." + name,
				Message: "@ref is only valid on string fields",
				Pos:     v.Pos(),
			}
		}
		field.Type = ir.TypeRef
	}

	if rename := v.Attribute("rename"); rename.Err() == nil {
		from, err := rename.String(0)
		if err != nil || !identPattern.MatchString(from) {
			return field, &CompileError{
				Field:   "entity." + entity + ".fields." + name,
				Message: "@rename takes the previous field name",
				Pos:     v.Pos(),
			}
		}
		field.RenamedFrom = from
	}
	return field, nil
}

// extractFieldType converts a CUE kind to a field type. Floats are
// forbidden.
func extractFieldType(v cue.Value) (ir.FieldType, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.TypeString, nil
	case cue.IntKind:
		return ir.TypeInt, nil
	case cue.BoolKind:
		return ir.TypeBool, nil
	case cue.ListKind:
		return ir.TypeList, nil
	case cue.StructKind:
		return ir.TypeObject, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
