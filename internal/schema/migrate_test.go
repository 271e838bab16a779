package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/ir"
)

func mustCompile(t *testing.T, src string) *Registry {
	t.Helper()
	reg, err := CompileString(src)
	require.NoError(t, err)
	return reg
}

func TestDiff_Identical(t *testing.T) {
	a := mustCompile(t, personModel)
	b := mustCompile(t, personModel)
	plan := Diff(a, b)
	assert.True(t, plan.Empty())
	assert.NoError(t, plan.Check(Options{}))
	assert.Equal(t, "no changes", plan.String())
}

func TestDiff_FreshStore(t *testing.T) {
	plan := Diff(nil, mustCompile(t, personModel))
	assert.True(t, plan.Empty())
	assert.Empty(t, plan.From)
}

func TestDiff_Steps(t *testing.T) {
	old := mustCompile(t, `
entity: Person: fields: {
	name:  string
	full:  string
	nick?: string
	age?:  int
}
entity: Legacy: fields: x: int
`)
	next := mustCompile(t, `
entity: Person: fields: {
	name:     string
	fullname: string @rename(full)
	age?:     string
	email?:   string
}
entity: Pet: fields: name: string
`)
	plan := Diff(old, next)

	assert.Equal(t, []Step{
		{Kind: StepDropEntity, Entity: "Legacy"},
		{Kind: StepRetypeField, Entity: "Person", Field: "age", Type: ir.TypeString},
		{Kind: StepAddField, Entity: "Person", Field: "email", Type: ir.TypeString},
		{Kind: StepRenameField, Entity: "Person", Field: "fullname", From: "full"},
		{Kind: StepDropField, Entity: "Person", Field: "nick"},
		{Kind: StepAddEntity, Entity: "Pet"},
	}, plan.Steps)
	assert.True(t, plan.NeedsMapping())
}

func TestPlan_Check(t *testing.T) {
	old := mustCompile(t, `entity: A: fields: x: int`)
	additive := mustCompile(t, `entity: A: fields: {x: int, y?: int}`)
	lossy := mustCompile(t, `entity: A: fields: y: int`)

	add := Diff(old, additive)
	assert.False(t, add.NeedsMapping())
	assert.NoError(t, add.Check(Options{Automatic: true}))
	assert.Error(t, add.Check(Options{}))

	drop := Diff(old, lossy)
	assert.True(t, drop.NeedsMapping())
	assert.Error(t, drop.Check(Options{Automatic: true}))
	assert.NoError(t, drop.Check(Options{Automatic: true, InferMapping: true}))
}

func TestPlan_Rewrite(t *testing.T) {
	old := mustCompile(t, `
entity: Person: fields: {name: string, full: string, nick?: string}
entity: Legacy: fields: x: int
`)
	next := mustCompile(t, `
entity: Person: fields: {name: string, fullname: string @rename(full)}
`)
	plan := Diff(old, next)

	row := ir.Row{ID: "p1", Entity: "Person", Payload: []byte(`{"full":"Ada L","name":"ada","nick":"a"}`)}
	out, keep, err := plan.Rewrite(row)
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Equal(t, `{"fullname":"Ada L","name":"ada"}`, string(out.Payload))

	_, keep, err = plan.Rewrite(ir.Row{ID: "l1", Entity: "Legacy", Payload: []byte(`{"x":1}`)})
	require.NoError(t, err)
	assert.False(t, keep)
}
