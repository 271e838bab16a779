package querysql

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/queryir"
)

var personSpec = ir.EntitySpec{Name: "Person", Fields: []ir.FieldSpec{
	{Name: "active", Type: ir.TypeBool, Optional: true},
	{Name: "age", Type: ir.TypeInt, Optional: true},
	{Name: "email", Type: ir.TypeString, Optional: true},
	{Name: "name", Type: ir.TypeString},
	{Name: "tags", Type: ir.TypeList, Optional: true},
}}

// render formats compiled SQL and its parameters for golden comparison.
func render(sql string, params []any) []byte {
	var sb strings.Builder
	sb.WriteString(sql)
	sb.WriteString("\n")
	for _, p := range params {
		fmt.Fprintf(&sb, "%T %v\n", p, p)
	}
	return []byte(sb.String())
}

func TestCompile_Golden(t *testing.T) {
	cases := []struct {
		name string
		opts []queryir.Option
	}{
		{"all", nil},
		{"filter_sort_page", []queryir.Option{
			queryir.Where("age >= ", 18),
			queryir.Where("email", nil),
			queryir.SortBy("name", true),
			queryir.SortBy("age", false),
			queryir.Limit(10),
			queryir.Offset(20),
		}},
		{"offset_only", []queryir.Option{queryir.Offset(5)}},
		{"structured", []queryir.Option{
			queryir.Where("tags", []string{"b", "a"}),
			queryir.Where("active", true),
		}},
		{"distinct", []queryir.Option{
			queryir.Where("name <", "m"),
			queryir.SortBy("name", true),
			queryir.Distinct(true),
		}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, dialect := range []Dialect{SQLite, Postgres} {
		for _, tc := range cases {
			name := dialect.String() + "_" + tc.name
			t.Run(name, func(t *testing.T) {
				req, err := queryir.Build("Person", tc.opts...)
				require.NoError(t, err)
				sql, params, err := NewCompiler(dialect).Compile(req, personSpec)
				require.NoError(t, err)
				g.Assert(t, name, render(sql, params))
			})
		}
	}
}

func TestCompile_NeverInterpolatesValues(t *testing.T) {
	req, err := queryir.Build("Person", queryir.Where("name", "Robert'); DROP TABLE records;--"))
	require.NoError(t, err)

	for _, d := range []Dialect{SQLite, Postgres} {
		sql, params, err := NewCompiler(d).Compile(req, personSpec)
		require.NoError(t, err)
		assert.NotContains(t, sql, "DROP")
		assert.Contains(t, params, "Robert'); DROP TABLE records;--")
	}
}

func TestCompile_AlwaysOrdersByID(t *testing.T) {
	req, err := queryir.Build("Person", queryir.SortBy("age", true))
	require.NoError(t, err)

	sql, _, err := NewCompiler(SQLite).Compile(req, personSpec)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "id COLLATE BINARY ASC"))
}

func TestCompile_RejectsInvalid(t *testing.T) {
	req, err := queryir.Build("Person", queryir.Where("height >", 3))
	require.NoError(t, err)

	_, _, err = NewCompiler(SQLite).Compile(req, personSpec)
	var verr *queryir.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "height", verr.Field)
}

func TestPaged(t *testing.T) {
	all := make([]ir.Row, 7)
	for i := range all {
		all[i] = ir.Row{ID: ir.ObjectID(fmt.Sprintf("r%d", i))}
	}
	var calls int
	run := func(req queryir.FetchRequest) ([]ir.Row, error) {
		calls++
		return queryir.Page(all, req.Offset, req.Limit), nil
	}

	tests := []struct {
		name      string
		req       queryir.FetchRequest
		want      int
		wantCalls int
	}{
		{"unbatched", queryir.FetchRequest{}, 7, 1},
		{"batches", queryir.FetchRequest{Batch: 3}, 7, 3},
		{"exact multiple", queryir.FetchRequest{Batch: 7}, 7, 2},
		{"limit caps pages", queryir.FetchRequest{Batch: 3, Limit: 4}, 4, 2},
		{"offset", queryir.FetchRequest{Batch: 2, Offset: 5}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = 0
			rows, err := Paged(tt.req, run)
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, queryir.Page(all, tt.req.Offset, tt.req.Limit), rows)
		})
	}
}
