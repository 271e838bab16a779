package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/schema"
)

func TestOpen_MigratesRenamedField(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.sqlite")

	v1 := testRegistry(t, `
entity: Person: fields: {name: string, full: string, nick?: string}
entity: Legacy: fields: x: int
`)
	s, err := Open(path, v1, autoMigrate)
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx, ir.ChangeSet{Changes: []ir.Change{
		insertChange("p1", "Person", map[string]any{"name": "ada", "full": "Ada L", "nick": "a"}),
		insertChange("l1", "Legacy", map[string]any{"x": 1}),
	}}))
	require.NoError(t, s.Close())

	v2 := testRegistry(t, `entity: Person: fields: {name: string, fullname: string @rename(full)}`)
	s, err = Open(path, v2, autoMigrate)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.Plan().NeedsMapping())
	assert.Len(t, s.Plan().Steps, 3)

	row, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, `{"fullname":"Ada L","name":"ada"}`, string(row.Payload))

	_, err = s.Get(ctx, "l1")
	assert.ErrorIs(t, err, ir.ErrRecordNotFound)
}

func TestOpen_MigrationOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	v1 := testRegistry(t, `entity: A: fields: x: int`)
	s, err := Open(path, v1, schema.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	lossy := testRegistry(t, `entity: A: fields: y: int`)

	_, err = Open(path, lossy, schema.Options{})
	assert.ErrorContains(t, err, "automatic migration is disabled")

	_, err = Open(path, lossy, schema.Options{Automatic: true})
	assert.ErrorContains(t, err, "requires mapping inference")

	// The refused migrations left the stored model untouched.
	s, err = Open(path, v1, schema.Options{})
	require.NoError(t, err)
	assert.True(t, s.Plan().Empty())
	require.NoError(t, s.Close())
}
