package queryir

import (
	"sort"

	"github.com/roach88/objgraph/internal/ir"
)

// Candidate is a record offered to in-memory evaluation. Payload is the
// canonical encoding of Fields and is only consulted for distinct.
type Candidate struct {
	ID      ir.ObjectID
	Fields  ir.IRObject
	Payload []byte
}

func (c Candidate) value(field string) ir.IRValue {
	if field == IDField {
		return ir.IRString(c.ID)
	}
	return c.Fields[field]
}

// Match reports whether the candidate satisfies the predicate.
func Match(p Predicate, c Candidate) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case And:
		for _, sub := range pred.Predicates {
			if !Match(sub, c) {
				return false
			}
		}
		return true
	case Comparison:
		return matchComparison(pred, c.value(pred.Field))
	default:
		return false
	}
}

func matchComparison(cmp Comparison, v ir.IRValue) bool {
	if cmp.Op == OpIsNull {
		return ir.IsNull(v)
	}
	// Comparisons with NULL are never true, as in SQL.
	if ir.IsNull(v) || ir.IsNull(cmp.Value) {
		return false
	}
	if cmp.Op == OpEQ {
		return ir.Equal(v, cmp.Value)
	}
	order, ok := ir.Compare(v, cmp.Value)
	if !ok {
		return false
	}
	switch cmp.Op {
	case OpLT:
		return order < 0
	case OpLE:
		return order <= 0
	case OpGE:
		return order >= 0
	case OpGT:
		return order > 0
	default:
		return false
	}
}

// CompareBy orders two candidates by the sort keys, then by id.
func CompareBy(keys []SortKey, a, b Candidate) int {
	for _, k := range keys {
		c := compareNullsFirst(a.value(k.Field), b.value(k.Field))
		if !k.Ascending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}

func compareNullsFirst(a, b ir.IRValue) int {
	an, bn := ir.IsNull(a), ir.IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	c, _ := ir.Compare(a, b)
	return c
}

// Apply executes req over candidates in memory: filter, sort, distinct,
// then offset and limit. The input slice is not modified.
func Apply(req FetchRequest, candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if Match(req.Filter, c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return CompareBy(req.Sort, out[i], out[j]) < 0 })

	if req.Distinct {
		out = distinct(out)
	}
	return Page(out, req.Offset, req.Limit)
}

// distinct keeps the first of each group of identical payloads. Identical
// payloads share their sort values, so the survivor is the one with the
// smallest id, matching a GROUP BY payload with MIN(id).
func distinct(in []Candidate) []Candidate {
	out := in[:0]
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		if _, dup := seen[string(c.Payload)]; dup {
			continue
		}
		seen[string(c.Payload)] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Page applies offset and limit; non-positive values are ignored.
func Page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
