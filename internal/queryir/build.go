package queryir

import (
	"fmt"
	"regexp"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/objgraph/internal/ir"
)

// Term is one filter entry as callers write it: a key that may carry an
// operator and a value, nil meaning "is null".
type Term struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}

// Field names are Unicode word characters, not only ASCII ones.
var keyPattern = regexp.MustCompile(`^\s*([\p{L}\p{M}\p{N}_]+)\s*(<=|>=|=>|<|=|>)\s*$`)

type parsedKey struct {
	field string
	op    Op
}

// Filter keys repeat heavily across fetches; parse each spelling once.
var keyCache, _ = lru.New[string, parsedKey](1024)

// ParseKey splits a filter key into field name and operator. Keys that do
// not match "<field> <op>" are taken verbatim as the field name with OpEQ.
func ParseKey(key string) (field string, op Op) {
	if pk, ok := keyCache.Get(key); ok {
		return pk.field, pk.op
	}
	pk := parsedKey{field: key, op: OpEQ}
	if m := keyPattern.FindStringSubmatch(key); m != nil {
		pk.field = m[1]
		switch m[2] {
		case "<":
			pk.op = OpLT
		case "<=":
			pk.op = OpLE
		case ">=", "=>":
			pk.op = OpGE
		case ">":
			pk.op = OpGT
		default:
			pk.op = OpEQ
		}
	}
	keyCache.Add(key, pk)
	return pk.field, pk.op
}

// BuildPredicate turns terms into a conjunction, one comparison per term in
// input order. A nil value forces OpIsNull whatever operator the key names.
func BuildPredicate(terms []Term) (And, error) {
	and := And{Predicates: make([]Predicate, 0, len(terms))}
	for _, t := range terms {
		field, op := ParseKey(t.Key)
		value, err := ir.FromGo(t.Value)
		if err != nil {
			return And{}, fmt.Errorf("filter %q: %w", t.Key, err)
		}
		if ir.IsNull(value) {
			and.Predicates = append(and.Predicates, Comparison{Field: field, Op: OpIsNull})
			continue
		}
		and.Predicates = append(and.Predicates, Comparison{Field: field, Op: op, Value: value})
	}
	return and, nil
}

// TermsFromMap converts a map filter to terms ordered by key, so map-based
// callers still get a deterministic clause order.
func TermsFromMap(m map[string]any) []Term {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	terms := make([]Term, len(keys))
	for i, k := range keys {
		terms[i] = Term{Key: k, Value: m[k]}
	}
	return terms
}

// SortFromMap converts a field→ascending map to sort keys ordered by field.
func SortFromMap(m map[string]bool) []SortKey {
	keys := make([]SortKey, 0, len(m))
	for f, asc := range m {
		keys = append(keys, SortKey{Field: f, Ascending: asc})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Field < keys[j].Field })
	return keys
}

// Options collects fetch parameters before they are turned into a request.
type Options struct {
	Terms    []Term
	Sort     []SortKey
	Limit    int
	Offset   int
	Batch    int
	Fault    bool
	Distinct bool
}

// Option configures a fetch.
type Option func(*Options)

// Where appends one filter term.
func Where(key string, value any) Option {
	return func(o *Options) { o.Terms = append(o.Terms, Term{Key: key, Value: value}) }
}

// WhereTerms appends filter terms in order.
func WhereTerms(terms ...Term) Option {
	return func(o *Options) { o.Terms = append(o.Terms, terms...) }
}

// WhereMap appends a map filter, keys in lexical order.
func WhereMap(m map[string]any) Option {
	return WhereTerms(TermsFromMap(m)...)
}

// SortBy appends a sort key.
func SortBy(field string, ascending bool) Option {
	return func(o *Options) { o.Sort = append(o.Sort, SortKey{Field: field, Ascending: ascending}) }
}

// SortMap appends map sort keys, fields in lexical order.
func SortMap(m map[string]bool) Option {
	return func(o *Options) { o.Sort = append(o.Sort, SortFromMap(m)...) }
}

// Limit caps the number of results. n <= 0 leaves it unset.
func Limit(n int) Option { return func(o *Options) { o.Limit = n } }

// Offset skips results. n <= 0 leaves it unset.
func Offset(n int) Option { return func(o *Options) { o.Offset = n } }

// Batch sets the store page size. n <= 0 leaves it unset.
func Batch(n int) Option { return func(o *Options) { o.Batch = n } }

// Fault controls lazy payload decoding. It defaults to true.
func Fault(lazy bool) Option { return func(o *Options) { o.Fault = lazy } }

// Distinct collapses records with identical payloads.
func Distinct(on bool) Option { return func(o *Options) { o.Distinct = on } }

// Build assembles a FetchRequest for entity. Only strictly positive
// pagination values are kept.
func Build(entity string, opts ...Option) (FetchRequest, error) {
	o := Options{Fault: true}
	for _, opt := range opts {
		opt(&o)
	}
	filter, err := BuildPredicate(o.Terms)
	if err != nil {
		return FetchRequest{}, err
	}
	return FetchRequest{
		Entity:   entity,
		Filter:   filter,
		Sort:     append([]SortKey(nil), o.Sort...),
		Limit:    positive(o.Limit),
		Offset:   positive(o.Offset),
		Batch:    positive(o.Batch),
		Fault:    o.Fault,
		Distinct: o.Distinct,
	}, nil
}

func positive(n int) int {
	if n > 0 {
		return n
	}
	return 0
}
