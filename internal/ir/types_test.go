package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntitySpec_Field(t *testing.T) {
	e := EntitySpec{Name: "Person", Fields: []FieldSpec{
		{Name: "name", Type: TypeString},
		{Name: "age", Type: TypeInt},
	}}
	e.SortFields()

	f, ok := e.Field("age")
	assert.True(t, ok)
	assert.Equal(t, TypeInt, f.Type)

	_, ok = e.Field("missing")
	assert.False(t, ok)
}

func TestFieldType_Accepts(t *testing.T) {
	assert.True(t, TypeInt.Accepts(IRInt(1)))
	assert.True(t, TypeInt.Accepts(IRNull{}))
	assert.False(t, TypeInt.Accepts(IRString("1")))
	assert.True(t, TypeRef.Accepts(IRString("id-1")))
	assert.True(t, TypeList.Accepts(IRArray{}))
	assert.False(t, TypeBool.Accepts(IRObject{}))
}

func TestFieldType_Ordered(t *testing.T) {
	assert.True(t, TypeInt.Ordered())
	assert.True(t, TypeString.Ordered())
	assert.False(t, TypeBool.Ordered())
	assert.False(t, TypeList.Ordered())
}

func TestChangeSet_Sort(t *testing.T) {
	cs := ChangeSet{Changes: []Change{
		{Op: OpDelete, ID: "a"},
		{Op: OpUpdate, ID: "c"},
		{Op: OpInsert, ID: "z"},
		{Op: OpUpdate, ID: "b"},
		{Op: OpInsert, ID: "y"},
	}}
	cs.Sort()

	var got []string
	for _, c := range cs.Changes {
		got = append(got, string(c.Op)+":"+string(c.ID))
	}
	assert.Equal(t, []string{"insert:y", "insert:z", "update:b", "update:c", "delete:a"}, got)
	assert.Equal(t, 5, cs.Len())
	assert.False(t, cs.IsEmpty())
}

func TestChange_Apply(t *testing.T) {
	base := IRObject{"name": IRString("ada"), "age": IRInt(36), "email": IRString("a@x")}

	upd := Change{Op: OpUpdate, Fields: IRObject{"name": IRString("bo"), "age": IRInt(1), "email": IRNull{}}, Changed: []string{"age", "email"}}
	assert.Equal(t, IRObject{"name": IRString("ada"), "age": IRInt(1)}, upd.Apply(base))
	assert.Equal(t, IRInt(36), base["age"], "base must not change")

	full := Change{Op: OpUpdate, Fields: IRObject{"name": IRString("cy")}}
	assert.Equal(t, IRObject{"name": IRString("cy")}, full.Apply(base))

	ins := Change{Op: OpInsert, Fields: IRObject{"name": IRString("di")}, Changed: []string{"name"}}
	assert.Equal(t, IRObject{"name": IRString("di")}, ins.Apply(base))
}
