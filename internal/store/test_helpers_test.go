package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/schema"
)

const testModel = `
entity: Person: fields: {
	name:   string
	age?:   int
	email?: string
}
entity: Pet: fields: name: string
`

var autoMigrate = schema.Options{Automatic: true, InferMapping: true}

func testRegistry(t *testing.T, src string) *schema.Registry {
	t.Helper()
	reg, err := schema.CompileString(src)
	require.NoError(t, err)
	return reg
}

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(path, testRegistry(t, testModel), autoMigrate)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertChange(id, entity string, fields map[string]any) ir.Change {
	obj, err := ir.ObjectFromGo(fields)
	if err != nil {
		panic(err)
	}
	return ir.Change{Op: ir.OpInsert, ID: ir.ObjectID(id), Entity: entity, Fields: obj}
}

func rowIDs(rows []ir.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r.ID)
	}
	return out
}
