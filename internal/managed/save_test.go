package managed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommit_PropagatesOneLevelPerHop(t *testing.T) {
	f := newFixture(t)
	a := f.root.SubManager()
	b := a.SubManager()

	mustInsert(t, b, map[string]any{"name": "ada"})
	assert.Len(t, Fetch[Person](b), 1)
	assert.Empty(t, Fetch[Person](a))

	require.NoError(t, wait(t, b.Commit(nil)))
	assert.Len(t, Fetch[Person](a), 1)
	assert.Empty(t, Fetch[Person](f.root), "root must not see edits A has not saved")
	assert.False(t, b.HasChanges())
	assert.True(t, a.HasChanges())

	require.NoError(t, wait(t, a.Commit(nil)))
	assert.Equal(t, []string{"ada"}, names(Fetch[Person](f.root)))
	assert.Equal(t, 0, f.mem.Len(), "the root has not persisted yet")

	require.NoError(t, wait(t, f.root.Commit(nil)))
	assert.Equal(t, 1, f.mem.Len())
	assert.False(t, f.root.HasChanges())
}

func TestSave_RecursesToStore(t *testing.T) {
	f := newFixture(t)
	a := f.root.SubManager()
	b := a.SubManager()

	p := mustInsert(t, b, map[string]any{"name": "ada"})
	var calls atomic.Int32
	fut := b.Save(func(err error) {
		assert.NoError(t, err)
		calls.Add(1)
	})
	require.NoError(t, wait(t, fut))
	assert.Equal(t, int32(1), calls.Load())
	assert.NoError(t, fut.Err())

	assert.Equal(t, 1, f.mem.Len())
	require.Len(t, f.store.Persisted(), 1)
	assert.False(t, a.HasChanges())
	assert.False(t, f.root.HasChanges())
	assert.False(t, p.Record().IsInserted())
	assert.Empty(t, f.logs.Lines())

	// Nothing pending still walks to the root and succeeds.
	require.NoError(t, wait(t, b.Save(nil)))
	assert.Len(t, f.store.Persisted(), 1)
}

func TestSave_ErrorSwallowedOrDelivered(t *testing.T) {
	f := newFixture(t)
	c := f.root.SubManager()
	mustInsert(t, c, map[string]any{"name": "ada"})

	boom := errors.New("disk full")
	f.store.FailPersist(boom)

	err := wait(t, c.Save(nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, CodeStoreIO, CodeOf(err))
	require.Len(t, f.logs.Lines(), 1)
	assert.Equal(t, []string{"save"}, f.logs.Ops())

	// The root kept the change set, so a retry fails the same way.
	var calls atomic.Int32
	var got error
	err = wait(t, c.Save(func(err error) {
		calls.Add(1)
		got = err
	}))
	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, got, boom)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, f.logs.Lines(), 1, "a delivered error is not logged")

	f.store.FailPersist(nil)
	require.NoError(t, wait(t, c.Save(nil)))
	assert.Equal(t, 1, f.mem.Len())
}

func TestSave_StopsAtFailingHop(t *testing.T) {
	f := newFixture(t)
	a := f.root.SubManager()
	b := a.SubManager()
	mustInsert(t, b, map[string]any{"age": 3})

	err := wait(t, b.Save(nil))
	assert.True(t, IsValidation(err))
	assert.True(t, b.HasChanges(), "failed hop keeps its edits")
	assert.False(t, a.HasChanges())
	assert.Empty(t, f.store.Persisted())
}

func TestSave_ConflictWithParentDelete(t *testing.T) {
	f := newFixture(t)
	seed := f.root.SubManager()
	p := mustInsert(t, seed, map[string]any{"name": "ada"})
	require.NoError(t, wait(t, seed.Save(nil)))

	deleter := f.root.SubManager()
	editor := f.root.SubManager()
	mine, ok := AssignObject[Person](editor, p)
	require.True(t, ok)
	editor.Update(mine.Record(), map[string]any{"age": 37}, nil)

	theirs, ok := AssignObject[Person](deleter, p)
	require.True(t, ok)
	deleter.Delete(theirs.Record(), nil)
	require.NoError(t, wait(t, deleter.Commit(nil)))

	// The root holds the deletion: the update conflicts there.
	err := wait(t, editor.Commit(nil))
	assert.True(t, IsConflict(err))

	// Once persisted, the record is gone from the store instead.
	require.NoError(t, wait(t, f.root.Commit(nil)))
	err = wait(t, editor.Commit(nil))
	assert.True(t, IsConflict(err))
	assert.Equal(t, 0, f.mem.Len())
}

func TestSave_LastCommittedWinsPerField(t *testing.T) {
	f := newFixture(t)
	seed := f.root.SubManager()
	p := mustInsert(t, seed, map[string]any{"name": "ada", "age": 1})
	require.NoError(t, wait(t, seed.Save(nil)))

	x, y := f.root.SubManager(), f.root.SubManager()
	px, _ := AssignObject[Person](x, p)
	py, _ := AssignObject[Person](y, p)
	x.Update(px.Record(), map[string]any{"age": 2, "email": "x@x"}, nil)
	y.Update(py.Record(), map[string]any{"age": 3}, nil)

	require.NoError(t, wait(t, x.Save(nil)))
	require.NoError(t, wait(t, y.Save(nil)))

	row, err := f.mem.Get(context.Background(), p.ID())
	require.NoError(t, err)
	assert.Equal(t, `{"age":3,"email":"x@x","name":"ada"}`, string(row.Payload))
}

func TestSave_DegradedRoot(t *testing.T) {
	cause := errors.New("cannot open store")
	root := NewRoot(testRegistry(t), nil,
		WithStoreError(cause),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	c := root.SubManager()

	mustInsert(t, c, map[string]any{"name": "ada"})
	assert.Len(t, Fetch[Person](c), 1, "pending records stay visible")

	err := wait(t, c.Save(nil))
	assert.ErrorIs(t, err, ErrNoStore)
	assert.ErrorIs(t, err, cause)

	_, err = root.AssignRecord("missing")
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestSave_Closed(t *testing.T) {
	f := newFixture(t)
	c := f.root.SubManager()
	mustInsert(t, c, map[string]any{"name": "ada"})
	f.root.Close()

	err := wait(t, c.Save(func(error) {}))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Fetch("Person")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFuture(t *testing.T) {
	f := newFuture()
	assert.NoError(t, f.Err())
	select {
	case <-f.Done():
		t.Fatal("done before fulfilled")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.Canceled)

	boom := errors.New("boom")
	f.fulfill(boom)
	f.fulfill(nil)
	<-f.Done()
	assert.Equal(t, boom, f.Err())
	assert.Equal(t, boom, f.Wait(context.Background()))
}
