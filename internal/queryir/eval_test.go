package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/ir"
)

func candidate(t *testing.T, id string, fields map[string]any) Candidate {
	t.Helper()
	obj, err := ir.ObjectFromGo(fields)
	require.NoError(t, err)
	payload, err := ir.EncodePayload(obj)
	require.NoError(t, err)
	return Candidate{ID: ir.ObjectID(id), Fields: obj, Payload: payload}
}

func people(t *testing.T) []Candidate {
	return []Candidate{
		candidate(t, "p3", map[string]any{"name": "cy", "age": 17}),
		candidate(t, "p1", map[string]any{"name": "ada", "age": 36, "email": "ada@example.com"}),
		candidate(t, "p2", map[string]any{"name": "bo"}),
		candidate(t, "p4", map[string]any{"name": "Di", "age": 36}),
	}
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c.ID)
	}
	return out
}

func TestMatch(t *testing.T) {
	c := candidate(t, "p1", map[string]any{"name": "ada", "age": 36})

	tests := []struct {
		name string
		pred Comparison
		want bool
	}{
		{"eq", Comparison{Field: "name", Op: OpEQ, Value: ir.IRString("ada")}, true},
		{"ge", Comparison{Field: "age", Op: OpGE, Value: ir.IRInt(36)}, true},
		{"gt", Comparison{Field: "age", Op: OpGT, Value: ir.IRInt(36)}, false},
		{"lt string", Comparison{Field: "name", Op: OpLT, Value: ir.IRString("b")}, true},
		{"missing never compares", Comparison{Field: "email", Op: OpLT, Value: ir.IRString("z")}, false},
		{"missing is null", Comparison{Field: "email", Op: OpIsNull}, true},
		{"present not null", Comparison{Field: "age", Op: OpIsNull}, false},
		{"kind mismatch", Comparison{Field: "age", Op: OpEQ, Value: ir.IRString("36")}, false},
		{"id", Comparison{Field: IDField, Op: OpEQ, Value: ir.IRString("p1")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pred, c))
		})
	}
	assert.True(t, Match(And{}, c))
	assert.True(t, Match(nil, c))
}

func TestApply_FilterAndSort(t *testing.T) {
	req, err := Build("Person", Where("age >=", 18), SortBy("name", true))
	require.NoError(t, err)

	// Byte-wise ordering puts "Di" before "ada".
	assert.Equal(t, []string{"p4", "p1"}, ids(Apply(req, people(t))))
}

func TestApply_NullOrdering(t *testing.T) {
	asc, err := Build("Person", SortBy("age", true))
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p1", "p4"}, ids(Apply(asc, people(t))))

	desc, err := Build("Person", SortBy("age", false))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p4", "p3", "p2"}, ids(Apply(desc, people(t))))
}

func TestApply_DefaultOrderIsID(t *testing.T) {
	req, err := Build("Person")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, ids(Apply(req, people(t))))
}

func TestApply_Pagination(t *testing.T) {
	base, err := Build("Person")
	require.NoError(t, err)
	zero, err := Build("Person", Limit(0), Offset(0), Batch(0))
	require.NoError(t, err)
	assert.Equal(t, ids(Apply(base, people(t))), ids(Apply(zero, people(t))))

	paged, err := Build("Person", Limit(2), Offset(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, ids(Apply(paged, people(t))))

	past, err := Build("Person", Offset(10))
	require.NoError(t, err)
	assert.Empty(t, Apply(past, people(t)))
}

func TestApply_Distinct(t *testing.T) {
	cands := []Candidate{
		candidate(t, "b", map[string]any{"name": "x"}),
		candidate(t, "a", map[string]any{"name": "x"}),
		candidate(t, "c", map[string]any{"name": "y"}),
	}
	req, err := Build("Tag", Distinct(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(Apply(req, cands)))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := people(t)
	before := ids(in)
	req, err := Build("Person", SortBy("name", false))
	require.NoError(t, err)
	Apply(req, in)
	assert.Equal(t, before, ids(in))
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4}
	assert.Equal(t, []int{1, 2, 3, 4}, Page(items, 0, 0))
	assert.Equal(t, []int{2, 3}, Page(items, 1, 2))
	assert.Equal(t, []int{4}, Page(items, 3, 10))
	assert.Empty(t, Page(items, 4, 0))
}
