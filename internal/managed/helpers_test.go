package managed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/memstore"
	"github.com/roach88/objgraph/internal/schema"
	"github.com/roach88/objgraph/internal/testutil"
)

const testModel = `
entity: Person: fields: {
	name:   string
	age?:   int
	email?: string
}
entity: Pet: fields: {
	name:   string
	owner?: string @ref(Person)
}
`

type Person struct{ Base }

func (*Person) EntityName() string { return "Person" }

func (p *Person) Name() string { return p.Record().GetString("name") }

type Pet struct{ Base }

func (*Pet) EntityName() string { return "Pet" }

// Robot is not in the model.
type Robot struct{ Base }

func (*Robot) EntityName() string { return "Robot" }

type fixture struct {
	root  *Context
	store *testutil.FaultyStore
	mem   *memstore.Store
	logs  *testutil.LogBuffer
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.CompileString(testModel)
	require.NoError(t, err)
	return reg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := testRegistry(t)
	mem := memstore.New(reg)
	f := &fixture{
		store: testutil.NewFaultyStore(mem),
		mem:   mem,
		logs:  &testutil.LogBuffer{},
	}
	f.root = NewRoot(reg, f.store,
		WithIDs(testutil.NewIDSequence("r").Next),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithErrorLog(f.logs.Logger()),
	)
	return f
}

// flush waits until every task queued on c so far has run.
func flush(c *Context) { c.Sync(func() {}) }

func wait(t *testing.T, f *Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}

func names(people []*Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.Name()
	}
	return out
}

func mustInsert(t *testing.T, c *Context, fields map[string]any) *Person {
	t.Helper()
	p, ok := Insert[Person](c, fields)
	require.True(t, ok)
	return p
}
