package ir

import (
	"errors"
	"sort"
)

// Errors shared by every backing store.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordConflict = errors.New("record conflict")
)

// ObjectID is the store-wide identifier of a record. It is assigned once,
// when the record is inserted, and never changes afterwards.
type ObjectID string

// IsZero reports whether id is unset.
func (id ObjectID) IsZero() bool { return id == "" }

func (id ObjectID) String() string { return string(id) }

// FieldType names the declared type of an entity field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeBool   FieldType = "bool"
	TypeList   FieldType = "list"
	TypeObject FieldType = "object"
	// TypeRef holds the ObjectID of another record, stored as a string.
	TypeRef FieldType = "ref"
)

// Ordered reports whether values of this type support <, <=, >= and >.
func (t FieldType) Ordered() bool {
	switch t {
	case TypeString, TypeInt, TypeRef:
		return true
	default:
		return false
	}
}

// Accepts reports whether v is a legal value for a field of type t.
// Null is always accepted; required-ness is checked separately.
func (t FieldType) Accepts(v IRValue) bool {
	if IsNull(v) {
		return true
	}
	switch t {
	case TypeRef:
		return Kind(v) == TypeString
	default:
		return Kind(v) == t
	}
}

// FieldSpec describes one field of an entity.
type FieldSpec struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Optional    bool      `json:"optional,omitempty"`
	RenamedFrom string    `json:"renamed_from,omitempty"` // Mapping hint for migrations
}

// EntitySpec describes a named record type with a fixed field set.
// Fields are kept sorted by name.
type EntitySpec struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields"`
}

// Field returns the named field.
func (e EntitySpec) Field(name string) (FieldSpec, bool) {
	i := sort.Search(len(e.Fields), func(i int) bool { return e.Fields[i].Name >= name })
	if i < len(e.Fields) && e.Fields[i].Name == name {
		return e.Fields[i], true
	}
	return FieldSpec{}, false
}

// SortFields orders Fields by name so Field can binary-search.
func (e *EntitySpec) SortFields() {
	sort.Slice(e.Fields, func(i, j int) bool { return e.Fields[i].Name < e.Fields[j].Name })
}

// Row is one record as stored or as handed between contexts: identity plus
// the canonical payload. Passing payload bytes rather than maps gives every
// receiving context its own copy.
type Row struct {
	ID      ObjectID `json:"id"`
	Entity  string   `json:"entity"`
	Payload []byte   `json:"payload"`
}

// ChangeOp identifies the kind of a pending change.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

func (op ChangeOp) rank() int {
	switch op {
	case OpInsert:
		return 0
	case OpUpdate:
		return 1
	default:
		return 2
	}
}

// Change is one entry of a change set. Fields carries the full field map
// for inserts and updates and is nil for deletes. Changed lists the keys an
// update touched.
type Change struct {
	Op      ChangeOp `json:"op"`
	ID      ObjectID `json:"id"`
	Entity  string   `json:"entity"`
	Fields  IRObject `json:"fields,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Apply returns the field map that results from applying an update to
// base. Only the Changed keys are taken from c.Fields, so concurrent updates
// of different fields do not overwrite each other; an update with no
// Changed list replaces every field. Inserts ignore base.
func (c Change) Apply(base IRObject) IRObject {
	if c.Op == OpInsert || len(c.Changed) == 0 {
		return c.Fields.Clone()
	}
	out := base.Clone()
	for _, k := range c.Changed {
		v, ok := c.Fields[k]
		if !ok || IsNull(v) {
			delete(out, k)
			continue
		}
		out[k] = CloneValue(v)
	}
	return out
}

// ChangeSet is the unit a context hands to its parent, or the root hands to
// the backing store.
type ChangeSet struct {
	Changes []Change `json:"changes"`
}

// Len returns the number of changes.
func (cs ChangeSet) Len() int { return len(cs.Changes) }

// IsEmpty reports whether there is nothing to save.
func (cs ChangeSet) IsEmpty() bool { return len(cs.Changes) == 0 }

// Sort orders changes inserts first, then updates, then deletes, each group
// by identifier, so stores apply them deterministically.
func (cs ChangeSet) Sort() {
	sort.Slice(cs.Changes, func(i, j int) bool {
		a, b := cs.Changes[i], cs.Changes[j]
		if a.Op.rank() != b.Op.rank() {
			return a.Op.rank() < b.Op.rank()
		}
		return a.ID < b.ID
	})
}
