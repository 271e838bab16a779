// Package querysql compiles fetch requests to parameterized SQL over the
// records table shared by the SQL backing stores.
//
// Every record is one row (id, entity, payload) with the canonical JSON
// payload in a TEXT (SQLite) or JSONB (PostgreSQL) column. Filters and sort
// keys read payload fields with the dialect's JSON operators.
//
// CRITICAL: every query ends with ORDER BY id so results are totally ordered.
// CRITICAL: values are always parameters, never interpolated. Field names
// are interpolated only after validation against the entity schema.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/queryir"
)

// Dialect selects SQL spelling.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Table is the name of the records table.
const Table = "records"

// Compiler compiles FetchRequests for one dialect.
type Compiler struct {
	Dialect Dialect
}

// NewCompiler creates a compiler for d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// Compile converts req to SQL selecting (id, payload) rows.
// Returns (sql, params, error) tuple.
//
// NULLs sort first ascending and last descending in both dialects, and
// strings compare byte-wise, matching queryir.Apply.
func (c *Compiler) Compile(req queryir.FetchRequest, spec ir.EntitySpec) (string, []any, error) {
	if err := queryir.Validate(req, spec); err != nil {
		return "", nil, err
	}

	b := &builder{dialect: c.Dialect, spec: spec, distinct: req.Distinct}

	var sb strings.Builder
	if req.Distinct {
		fmt.Fprintf(&sb, "SELECT %s, %s FROM %s", b.idExpr(), b.payloadColumn(), Table)
	} else {
		fmt.Fprintf(&sb, "SELECT id, %s FROM %s", b.payloadColumn(), Table)
	}

	where := []string{"entity = " + b.param(req.Entity)}
	for _, cmp := range req.Filter.Comparisons() {
		clause, err := b.comparison(cmp)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, clause)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(where, " AND "))

	if req.Distinct {
		sb.WriteString(" GROUP BY payload")
	}

	// MANDATORY: id tiebreaker last
	order := make([]string, 0, len(req.Sort)+1)
	for _, k := range req.Sort {
		order = append(order, b.orderTerm(k))
	}
	order = append(order, b.stableOrderKey())
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(order, ", "))

	switch {
	case req.Limit > 0:
		sb.WriteString(" LIMIT " + b.param(int64(req.Limit)))
	case req.Offset > 0 && c.Dialect == SQLite:
		// SQLite only accepts OFFSET after a LIMIT.
		sb.WriteString(" LIMIT -1")
	}
	if req.Offset > 0 {
		sb.WriteString(" OFFSET " + b.param(int64(req.Offset)))
	}

	return sb.String(), b.params, nil
}

type builder struct {
	dialect  Dialect
	spec     ir.EntitySpec
	distinct bool
	params   []any
}

func (b *builder) param(v any) string {
	b.params = append(b.params, v)
	if b.dialect == Postgres {
		return "$" + strconv.Itoa(len(b.params))
	}
	return "?"
}

func (b *builder) payloadColumn() string {
	if b.dialect == Postgres {
		return "payload::text"
	}
	return "payload"
}

// idExpr names the row id. Grouped queries report the smallest id of each
// group of identical payloads.
func (b *builder) idExpr() string {
	if b.distinct {
		return "MIN(id)"
	}
	return "id"
}

func (b *builder) stableOrderKey() string {
	if b.dialect == Postgres {
		// The id column is declared COLLATE "C".
		return b.idExpr() + " ASC"
	}
	return b.idExpr() + " COLLATE BINARY ASC"
}

func (b *builder) fieldType(field string) ir.FieldType {
	if field == queryir.IDField {
		return ir.TypeRef
	}
	f, _ := b.spec.Field(field)
	return f.Type
}

// fieldExpr reads a payload field as a value comparable with parameters of
// the field's type.
func (b *builder) fieldExpr(field string) string {
	if field == queryir.IDField {
		return b.idExpr()
	}
	if b.dialect == SQLite {
		return fmt.Sprintf("json_extract(payload, '$.%s')", field)
	}
	switch b.fieldType(field) {
	case ir.TypeString, ir.TypeRef:
		return fmt.Sprintf(`(payload->>'%s') COLLATE "C"`, field)
	case ir.TypeInt:
		return fmt.Sprintf("(payload->>'%s')::bigint", field)
	case ir.TypeBool:
		return fmt.Sprintf("(payload->>'%s')::boolean", field)
	default:
		return fmt.Sprintf("(payload->'%s')", field)
	}
}

func (b *builder) comparison(cmp queryir.Comparison) (string, error) {
	if cmp.Op == queryir.OpIsNull {
		if cmp.Field == queryir.IDField {
			return "(id IS NULL)", nil
		}
		if b.dialect == Postgres {
			return fmt.Sprintf("((payload->'%s') IS NULL)", cmp.Field), nil
		}
		return fmt.Sprintf("(%s IS NULL)", b.fieldExpr(cmp.Field)), nil
	}

	value, structured, err := b.paramValue(cmp.Value)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", cmp.Field, err)
	}
	placeholder := b.param(value)
	if structured {
		if b.dialect == Postgres {
			placeholder += "::jsonb"
		} else {
			placeholder = "json(" + placeholder + ")"
		}
	}
	return fmt.Sprintf("(%s %s %s)", b.fieldExpr(cmp.Field), cmp.Op.Symbol(), placeholder), nil
}

func (b *builder) orderTerm(k queryir.SortKey) string {
	expr := b.fieldExpr(k.Field)
	if b.dialect == SQLite {
		// SQLite already places NULLs first ascending and last descending.
		if k.Ascending {
			return expr + " ASC"
		}
		return expr + " DESC"
	}
	if k.Ascending {
		return expr + " ASC NULLS FIRST"
	}
	return expr + " DESC NULLS LAST"
}

// paramValue converts an IRValue to a driver parameter. Lists and objects
// travel as canonical JSON text; structured is true for them. SQLite's
// json_extract yields 1 and 0 for booleans, so booleans become integers
// there.
func (b *builder) paramValue(v ir.IRValue) (param any, structured bool, err error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), false, nil
	case ir.IRInt:
		return int64(val), false, nil
	case ir.IRBool:
		if b.dialect == SQLite {
			if val {
				return int64(1), false, nil
			}
			return int64(0), false, nil
		}
		return bool(val), false, nil
	case ir.IRArray, ir.IRObject:
		data, err := ir.MarshalCanonical(val)
		if err != nil {
			return nil, false, err
		}
		return string(data), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}

// Paged runs req through run, splitting it into pages of req.Batch rows
// when batching is requested. Pages respect the request's own offset and
// limit, so the concatenated result equals one unbatched run.
func Paged(req queryir.FetchRequest, run func(queryir.FetchRequest) ([]ir.Row, error)) ([]ir.Row, error) {
	if req.Batch <= 0 {
		return run(req)
	}
	out := []ir.Row{}
	for {
		page := req
		page.Offset = req.Offset + len(out)
		page.Limit = req.Batch
		if req.Limit > 0 {
			remaining := req.Limit - len(out)
			if remaining <= 0 {
				return out, nil
			}
			page.Limit = min(remaining, req.Batch)
		}
		rows, err := run(page)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if len(rows) < page.Limit {
			return out, nil
		}
	}
}
