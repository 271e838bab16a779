package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/objgraph/internal/ir"
)

// Registry maps entity names to their field descriptors. A Registry is
// immutable once built and safe for concurrent use.
type Registry struct {
	entities map[string]ir.EntitySpec
	names    []string
	hash     string
}

// NewRegistry builds a registry from already compiled entity specs.
func NewRegistry(specs ...ir.EntitySpec) (*Registry, error) {
	r := &Registry{entities: make(map[string]ir.EntitySpec, len(specs))}
	for _, spec := range specs {
		if _, dup := r.entities[spec.Name]; dup {
			return nil, fmt.Errorf("entity %q declared twice", spec.Name)
		}
		spec.Fields = append([]ir.FieldSpec(nil), spec.Fields...)
		spec.SortFields()
		for i := 1; i < len(spec.Fields); i++ {
			if spec.Fields[i].Name == spec.Fields[i-1].Name {
				return nil, fmt.Errorf("entity %q declares field %q twice", spec.Name, spec.Fields[i].Name)
			}
		}
		r.entities[spec.Name] = spec
		r.names = append(r.names, spec.Name)
	}
	sort.Strings(r.names)

	hash, err := ir.SchemaHash(r.Entities())
	if err != nil {
		return nil, err
	}
	r.hash = hash
	return r, nil
}

// Lookup returns the entity with the given name.
func (r *Registry) Lookup(name string) (ir.EntitySpec, bool) {
	if r == nil {
		return ir.EntitySpec{}, false
	}
	spec, ok := r.entities[name]
	return spec, ok
}

// Names returns entity names in lexical order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Entities returns every entity in name order.
func (r *Registry) Entities() []ir.EntitySpec {
	if r == nil {
		return nil
	}
	out := make([]ir.EntitySpec, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.entities[name])
	}
	return out
}

// Hash fingerprints the model. Equal models have equal hashes.
func (r *Registry) Hash() string {
	if r == nil {
		return ""
	}
	return r.hash
}

// MarshalJSON encodes the registry as its entity list. Stores persist this
// form to compare models across opens.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Entities())
}

// UnmarshalRegistry decodes the form written by MarshalJSON.
func UnmarshalRegistry(data []byte) (*Registry, error) {
	var specs []ir.EntitySpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return NewRegistry(specs...)
}
