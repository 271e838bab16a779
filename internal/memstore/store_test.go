package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/queryir"
	"github.com/roach88/objgraph/internal/schema"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	reg, err := schema.CompileString(`entity: Person: fields: {name: string, age?: int}`)
	require.NoError(t, err)
	return New(reg)
}

func insert(id string, fields ir.IRObject) ir.Change {
	return ir.Change{Op: ir.OpInsert, ID: ir.ObjectID(id), Entity: "Person", Fields: fields}
}

func TestPersist(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Persist(ctx, ir.ChangeSet{Changes: []ir.Change{
		insert("p1", ir.IRObject{"name": ir.IRString("ada")}),
		{Op: ir.OpUpdate, ID: "p1", Entity: "Person", Fields: ir.IRObject{"age": ir.IRInt(36)}, Changed: []string{"age"}},
	}}))
	row, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, `{"age":36,"name":"ada"}`, string(row.Payload))

	err = s.Persist(ctx, ir.ChangeSet{Changes: []ir.Change{
		insert("p2", ir.IRObject{"name": ir.IRString("bo")}),
		insert("p1", ir.IRObject{"name": ir.IRString("dup")}),
	}})
	assert.ErrorIs(t, err, ir.ErrRecordConflict)
	assert.Equal(t, 1, s.Len(), "conflicting set must not write")

	require.NoError(t, s.Persist(ctx, ir.ChangeSet{Changes: []ir.Change{{Op: ir.OpDelete, ID: "p1"}}}))
	_, err = s.Get(ctx, "p1")
	assert.ErrorIs(t, err, ir.ErrRecordNotFound)

	err = s.Persist(ctx, ir.ChangeSet{Changes: []ir.Change{
		{Op: ir.OpUpdate, ID: "p1", Entity: "Person", Fields: ir.IRObject{"age": ir.IRInt(1)}},
	}})
	assert.ErrorIs(t, err, ir.ErrRecordConflict)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Persist(ctx, ir.ChangeSet{Changes: []ir.Change{
		insert("c", ir.IRObject{"name": ir.IRString("cy"), "age": ir.IRInt(17)}),
		insert("a", ir.IRObject{"name": ir.IRString("ada"), "age": ir.IRInt(36)}),
		insert("b", ir.IRObject{"name": ir.IRString("bo")}),
	}}))

	req, err := queryir.Build("Person", queryir.SortBy("age", true))
	require.NoError(t, err)
	rows, err := s.Fetch(ctx, req)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []ir.ObjectID{"b", "c", "a"}, []ir.ObjectID{rows[0].ID, rows[1].ID, rows[2].ID})

	_, err = s.Fetch(ctx, queryir.FetchRequest{Entity: "Robot"})
	assert.Error(t, err)

	// Without a registry any entity name is accepted.
	rows, err = New(nil).Fetch(ctx, queryir.FetchRequest{Entity: "Robot"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPersist_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Persist(ctx, ir.ChangeSet{Changes: []ir.Change{
				insert("same", ir.IRObject{"name": ir.IRString("x")}),
			}})
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ir.ErrRecordConflict)
		}
	}
	assert.Equal(t, 1, ok)
}
