package managed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(recs []*Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = string(r.ID())
	}
	return out
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ppl := seed(t, f, map[string]any{"name": "ada"})
	c := f.root.SubManager()

	fresh := mustInsert(t, c, map[string]any{"name": "tmp"})
	c.Delete(fresh.Record(), nil)
	assert.Empty(t, c.Registered(), "an unsaved insert is dropped")
	assert.False(t, c.HasChanges())

	ada := assign(t, c, ppl[0])
	var ran bool
	c.Delete(ada.Record(), func() { ran = true }).Delete(ada.Record(), nil)
	flush(c)
	assert.True(t, ran)
	assert.True(t, ada.Record().IsDeleted())
	assert.Empty(t, Fetch[Person](c))
	_, err := c.AssignRecord(ada.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, Fetch[Person](f.root), 1)

	require.NoError(t, wait(t, c.Save(nil)))
	assert.Equal(t, 0, f.mem.Len())
	assert.Empty(t, c.Registered())
	assert.Empty(t, f.logs.Lines())
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	c := f.root.SubManager()
	p := mustInsert(t, c, map[string]any{"name": "ada"})

	errs := make(chan error, 1)
	c.Update(p.Record(), map[string]any{"age": "old"}, func(err error) { errs <- err })
	assert.True(t, IsResolution(<-errs))
	assert.Empty(t, f.logs.Lines(), "a delivered error is not logged")

	c.Update(p.Record(), map[string]any{"nope": 1}, nil)
	flush(c)
	assert.Equal(t, []string{"update"}, f.logs.Ops())

	c.Update(p.Record(), map[string]any{"age": 3}, func(err error) { errs <- err })
	assert.NoError(t, <-errs)
	assert.Equal(t, int64(3), p.Record().GetInt("age"))

	// A record owned elsewhere is resolved in c first.
	require.NoError(t, wait(t, c.Save(nil)))
	other := f.root.SubManager()
	other.Update(p.Record(), map[string]any{"age": 4}, func(err error) { errs <- err })
	require.NoError(t, <-errs)
	assert.Equal(t, int64(3), p.Record().GetInt("age"))
	mine := assign(t, other, p)
	assert.Equal(t, int64(4), mine.Record().GetInt("age"))
}

func TestRollback(t *testing.T) {
	f := newFixture(t)
	ppl := seed(t, f,
		map[string]any{"name": "ada", "age": 36},
		map[string]any{"name": "cy"},
	)
	c := f.root.SubManager()
	ada, cy := assign(t, c, ppl[0]), assign(t, c, ppl[1])

	c.Update(ada.Record(), map[string]any{"age": 37, "email": "ada@x"}, nil)
	c.Delete(cy.Record(), nil)
	mustInsert(t, c, map[string]any{"name": "bob"})
	require.True(t, c.HasChanges())

	c.Rollback(nil)
	assert.False(t, c.HasChanges())
	assert.False(t, c.CanUndo())
	assert.Equal(t, int64(36), ada.Record().GetInt("age"))
	assert.Nil(t, ada.Record().Value("email"))
	assert.False(t, cy.Record().IsDeleted())
	assert.ElementsMatch(t, []string{string(ada.ID()), string(cy.ID())}, ids(c.Registered()))
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	seed(t, f, map[string]any{"name": "ada"})
	c := f.root.SubManager()
	Fetch[Person](c)
	mustInsert(t, c, map[string]any{"name": "bob"})

	done := make(chan struct{})
	c.Reset(func() { close(done) })
	<-done
	assert.Empty(t, c.Registered())
	assert.False(t, c.CanUndo())
	assert.Equal(t, []string{"ada"}, names(Fetch[Person](c)))
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ppl := seed(t, f,
		map[string]any{"name": "ada", "age": 1},
		map[string]any{"name": "cy"},
	)
	c := f.root.SubManager()
	ada, _ := assign(t, c, ppl[0]), assign(t, c, ppl[1])
	c.Update(ada.Record(), map[string]any{"email": "mine@x"}, nil)

	w := f.root.SubManager()
	w.Update(assign(t, w, ppl[0]).Record(), map[string]any{"age": 2}, nil)
	w.Delete(assign(t, w, ppl[1]).Record(), nil)
	require.NoError(t, wait(t, w.Save(nil)))

	// Without a refresh the context keeps what it saw.
	assert.Equal(t, int64(1), ada.Record().GetInt("age"))

	c.Refresh(ada.Record(), nil)
	flush(c)
	assert.Equal(t, int64(2), ada.Record().GetInt("age"))
	assert.Equal(t, "mine@x", ada.Record().GetString("email"))

	c.Refresh(nil, nil)
	flush(c)
	assert.Equal(t, []string{string(ada.ID())}, ids(c.Registered()), "clean records gone upstream are dropped")

	// The refreshed values are what a rollback returns to.
	c.Rollback(nil)
	flush(c)
	assert.Equal(t, int64(2), ada.Record().GetInt("age"))
	assert.Nil(t, ada.Record().Value("email"))
	assert.Empty(t, f.logs.Lines())
}

func TestUndoRedo(t *testing.T) {
	f := newFixture(t)
	c := f.root.SubManager()
	assert.False(t, c.CanUndo())

	p := mustInsert(t, c, map[string]any{"name": "ada"})
	c.Update(p.Record(), map[string]any{"name": "ada2"}, nil)
	assert.True(t, c.CanUndo())

	c.Undo(nil)
	flush(c)
	assert.Equal(t, "ada", p.Name())
	assert.True(t, c.CanRedo())

	c.Undo(nil)
	assert.Empty(t, c.Registered(), "undoing the insert unregisters the record")
	assert.False(t, c.CanUndo())

	flush(c.Redo(nil).Redo(nil))
	assert.Equal(t, "ada2", p.Name())
	assert.Len(t, c.Registered(), 1)
	assert.False(t, c.CanRedo())

	c.Undo(nil)
	c.Update(p.Record(), map[string]any{"age": 9}, nil)
	assert.False(t, c.CanRedo(), "a new edit clears redo")

	require.NoError(t, wait(t, c.Save(nil)))
	assert.False(t, c.CanUndo(), "a save clears history")
	flush(c.Undo(nil))
	assert.Equal(t, "ada", p.Name())
	assert.Equal(t, int64(9), p.Record().GetInt("age"))
}

func TestUndo_DeleteRestoresRecord(t *testing.T) {
	f := newFixture(t)
	ppl := seed(t, f, map[string]any{"name": "ada"})
	c := f.root.SubManager()
	ada := assign(t, c, ppl[0])

	flush(c.Delete(ada.Record(), nil).Undo(nil))
	assert.False(t, ada.Record().IsDeleted())
	assert.False(t, c.HasChanges())
	assert.Len(t, Fetch[Person](c), 1)
}
