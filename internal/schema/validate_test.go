package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/ir"
)

func personSpec(t *testing.T) ir.EntitySpec {
	t.Helper()
	reg, err := CompileString(personModel)
	require.NoError(t, err)
	spec, ok := reg.Lookup("Person")
	require.True(t, ok)
	return spec
}

func TestValidateFields(t *testing.T) {
	spec := personSpec(t)

	tests := []struct {
		name    string
		fields  ir.IRObject
		wantErr string
	}{
		{"ok", ir.IRObject{"name": ir.IRString("ada"), "age": ir.IRInt(36)}, ""},
		{"null fits", ir.IRObject{"age": ir.IRNull{}}, ""},
		{"unknown", ir.IRObject{"height": ir.IRInt(1)}, "Person.height: unknown field"},
		{"mismatch", ir.IRObject{"age": ir.IRString("old")}, "Person.age: expected int, got string"},
		{"ref takes string", ir.IRObject{"friend": ir.IRString("id-1")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFields(spec, tt.fields)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidateRecord_Required(t *testing.T) {
	spec := personSpec(t)

	err := ValidateRecord(spec, ir.IRObject{"name": ir.IRString("ada")})
	require.Error(t, err)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "fullname", fe.Field)

	assert.NoError(t, ValidateRecord(spec, ir.IRObject{
		"name":     ir.IRString("ada"),
		"fullname": ir.IRString("Ada Lovelace"),
	}))
}
