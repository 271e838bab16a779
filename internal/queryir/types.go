package queryir

import (
	"fmt"

	"github.com/roach88/objgraph/internal/ir"
)

// Op is a comparison operator.
type Op string

const (
	OpLT     Op = "LT"
	OpLE     Op = "LE"
	OpEQ     Op = "EQ"
	OpGE     Op = "GE"
	OpGT     Op = "GT"
	OpIsNull Op = "IS_NULL"
)

// Symbol returns the SQL spelling of the operator.
func (op Op) Symbol() string {
	switch op {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpEQ:
		return "="
	case OpGE:
		return ">="
	case OpGT:
		return ">"
	case OpIsNull:
		return "IS NULL"
	default:
		return string(op)
	}
}

// Ordering reports whether the operator needs ordered operands.
func (op Op) Ordering() bool {
	switch op {
	case OpLT, OpLE, OpGE, OpGT:
		return true
	default:
		return false
	}
}

// IDField addresses the record identifier in filters and sort keys.
const IDField = "id"

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Comparison is one atomic clause: Field Op Value. Value is nil for
// OpIsNull.
type Comparison struct {
	Field string
	Op    Op
	Value ir.IRValue
}

func (Comparison) predicateNode() {}

func (c Comparison) String() string {
	if c.Op == OpIsNull {
		return fmt.Sprintf("(%s IS NULL)", c.Field)
	}
	data, err := ir.MarshalCanonical(c.Value)
	if err != nil {
		data = []byte("?")
	}
	return fmt.Sprintf("(%s %s %s)", c.Field, c.Op.Symbol(), data)
}

// And is a conjunction of predicates. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Comparisons flattens nested conjunctions into their atomic clauses.
func (a And) Comparisons() []Comparison {
	var out []Comparison
	for _, p := range a.Predicates {
		switch pred := p.(type) {
		case Comparison:
			out = append(out, pred)
		case And:
			out = append(out, pred.Comparisons()...)
		}
	}
	return out
}

// SortKey orders results by one field.
type SortKey struct {
	Field     string `json:"field" yaml:"field"`
	Ascending bool   `json:"ascending" yaml:"ascending"`
}

// FetchRequest is an entity query. Zero pagination values mean unset.
type FetchRequest struct {
	Entity   string
	Filter   And
	Sort     []SortKey
	Limit    int
	Offset   int
	Batch    int  // Store-side page size
	Fault    bool // Defer decoding field payloads until first access
	Distinct bool // Collapse records with identical payloads
}

// Paginated reports whether limit or offset restrict the result.
func (r FetchRequest) Paginated() bool {
	return r.Limit > 0 || r.Offset > 0
}

// Unpaginated returns a copy of r without limit and offset.
func (r FetchRequest) Unpaginated() FetchRequest {
	r.Limit, r.Offset = 0, 0
	return r
}

func (r FetchRequest) String() string {
	s := r.Entity
	for i, c := range r.Filter.Comparisons() {
		if i == 0 {
			s += " where "
		} else {
			s += " and "
		}
		s += c.String()
	}
	for i, k := range r.Sort {
		if i == 0 {
			s += " sort "
		} else {
			s += ", "
		}
		dir := "asc"
		if !k.Ascending {
			dir = "desc"
		}
		s += k.Field + " " + dir
	}
	if r.Limit > 0 {
		s += fmt.Sprintf(" limit %d", r.Limit)
	}
	if r.Offset > 0 {
		s += fmt.Sprintf(" offset %d", r.Offset)
	}
	return s
}
