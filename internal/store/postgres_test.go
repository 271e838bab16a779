package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/queryir"
)

// TestPostgres runs against a live server named by OBJGRAPH_TEST_POSTGRES_DSN.
// The records and meta tables are dropped first.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("OBJGRAPH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("OBJGRAPH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn, testRegistry(t, testModel), autoMigrate)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `TRUNCATE records`)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "postgres", s.Driver())

	require.NoError(t, s.Persist(ctx, ir.ChangeSet{Changes: []ir.Change{
		insertChange("p1", "Person", map[string]any{"name": "ada", "age": 36}),
		insertChange("p2", "Person", map[string]any{"name": "bo"}),
		insertChange("p3", "Person", map[string]any{"name": "Di", "age": 36}),
	}}))

	req, err := queryir.Build("Person", queryir.Where("age >=", 18), queryir.SortBy("name", true))
	require.NoError(t, err)
	rows, err := s.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, rowIDs(rows))
	assert.Equal(t, `{"age":36,"name":"Di"}`, string(rows[0].Payload))

	asc, err := queryir.Build("Person", queryir.SortBy("age", true))
	require.NoError(t, err)
	rows, err = s.Fetch(ctx, asc)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1", "p3"}, rowIDs(rows))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ir.ErrRecordNotFound)
}
