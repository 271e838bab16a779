package managed

import (
	"sort"
	"sync"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/schema"
)

type recordState int

const (
	stateClean recordState = iota
	stateInserted
	stateDeleted
)

// Record is one entity instance as a context sees it.
//
// A record belongs to the context that produced it. Its pending state may
// only be changed from that context's queue: call Set inside Sync or Async,
// or use Context.Update from elsewhere. Reads are safe from any goroutine.
type Record struct {
	entity string
	id     ir.ObjectID
	owner  *Context

	mu      sync.RWMutex
	fields  ir.IRObject
	payload []byte // Undecoded fields while faulted
	faulted bool
	state   recordState
	changed map[string]bool
	orig    ir.IRObject // Values of changed keys before the first change
}

func newRecord(owner *Context, entity string, id ir.ObjectID, fields ir.IRObject) *Record {
	return &Record{entity: entity, id: id, owner: owner, fields: fields}
}

// newFault returns a clean record whose fields decode on first access.
func newFault(owner *Context, entity string, id ir.ObjectID, payload []byte) *Record {
	return &Record{entity: entity, id: id, owner: owner, payload: payload, faulted: true}
}

// Entity returns the entity name.
func (r *Record) Entity() string { return r.entity }

// ID returns the object identifier. It never changes.
func (r *Record) ID() ir.ObjectID { return r.id }

// Context returns the owning context.
func (r *Record) Context() *Context { return r.owner }

// IsFault reports whether the fields have not been decoded yet.
func (r *Record) IsFault() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.faulted
}

// IsInserted reports whether the record was inserted in its context and not
// saved yet.
func (r *Record) IsInserted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == stateInserted
}

// IsDeleted reports whether the record is marked for deletion.
func (r *Record) IsDeleted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == stateDeleted
}

// HasChanges reports whether the record has unsaved edits.
func (r *Record) HasChanges() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pendingLocked()
}

func (r *Record) pendingLocked() bool {
	return r.state != stateClean || len(r.changed) > 0
}

// ChangedKeys returns the keys edited since the record was last saved,
// sorted.
func (r *Record) ChangedKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changedKeysLocked()
}

func (r *Record) changedKeysLocked() []string {
	keys := make([]string, 0, len(r.changed))
	for k := range r.changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// loadLocked decodes a faulted payload. The caller holds the write lock.
func (r *Record) loadLocked() {
	if !r.faulted {
		return
	}
	fields, err := ir.DecodePayload(r.payload)
	if err != nil {
		// Payloads come from a store that encoded them; keep the record
		// usable and say why it is empty.
		r.owner.env.log.Warn("undecodable payload", "entity", r.entity, "id", r.id, "err", err)
		fields = ir.IRObject{}
	}
	r.fields, r.payload, r.faulted = fields, nil, false
}

func (r *Record) load() {
	r.mu.RLock()
	faulted := r.faulted
	r.mu.RUnlock()
	if faulted {
		r.mu.Lock()
		r.loadLocked()
		r.mu.Unlock()
	}
}

// Get returns the value of a field, IRNull when unset.
func (r *Record) Get(key string) ir.IRValue {
	r.load()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.fields[key]; ok {
		return v
	}
	return ir.IRNull{}
}

// Value returns a field as a plain Go value (nil, string, int64, bool,
// []any or map[string]any).
func (r *Record) Value(key string) any { return ir.ToGo(r.Get(key)) }

// GetString returns a string field, "" when unset or of another type.
func (r *Record) GetString(key string) string {
	s, _ := r.Get(key).(ir.IRString)
	return string(s)
}

// GetInt returns an int field, 0 when unset or of another type.
func (r *Record) GetInt(key string) int64 {
	n, _ := r.Get(key).(ir.IRInt)
	return int64(n)
}

// GetBool returns a bool field, false when unset or of another type.
func (r *Record) GetBool(key string) bool {
	b, _ := r.Get(key).(ir.IRBool)
	return bool(b)
}

// Fields returns a copy of every set field.
func (r *Record) Fields() ir.IRObject {
	r.load()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fields.Clone()
}

// Set assigns one field. It must run on the owning context's queue.
func (r *Record) Set(key string, value any) error {
	return r.SetValues(map[string]any{key: value})
}

// SetValues assigns several fields as one undoable edit. It must run on the
// owning context's queue. Nil values clear a field.
func (r *Record) SetValues(values map[string]any) error {
	if r.owner == nil {
		return newError(CodeResolution, "set", "record has no context")
	}
	return r.owner.update(r, values)
}

// convertFields turns caller values into field values checked against the
// entity's declared fields.
func convertFields(spec ir.EntitySpec, values map[string]any) (ir.IRObject, error) {
	obj, err := ir.ObjectFromGo(values)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateFields(spec, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// assignLocked applies converted values and tracks which keys differ from
// the last saved state. The caller holds the write lock.
func (r *Record) assignLocked(values ir.IRObject) {
	r.loadLocked()
	if r.fields == nil {
		r.fields = ir.IRObject{}
	}
	for k, v := range values {
		old := r.fields[k]
		if r.state != stateInserted {
			if r.changed == nil {
				r.changed = map[string]bool{}
				r.orig = ir.IRObject{}
			}
			if !r.changed[k] {
				r.changed[k] = true
				r.orig[k] = ir.CloneValue(old)
			}
		}
		if ir.IsNull(v) {
			delete(r.fields, k)
			continue
		}
		r.fields[k] = ir.CloneValue(v)
	}
	// Restoring the saved value undoes the change.
	for k := range values {
		if r.changed[k] && ir.Equal(r.orig[k], r.fields[k]) {
			delete(r.changed, k)
			delete(r.orig, k)
		}
	}
}

// merge takes fresh upstream fields for every key without a local edit.
// With rebase, the upstream values also become the rollback target of the
// edited keys.
func (r *Record) merge(upstream ir.IRObject, rebase bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	next := upstream.Clone()
	for k := range r.changed {
		if rebase {
			r.orig[k] = ir.CloneValue(upstream[k])
		}
		if v, ok := r.fields[k]; ok {
			next[k] = v
		} else {
			delete(next, k)
		}
	}
	r.fields = next
	// An upstream value equal to the local edit leaves nothing to save.
	for k := range r.changed {
		if rebase && ir.Equal(r.orig[k], r.fields[k]) {
			delete(r.changed, k)
			delete(r.orig, k)
		}
	}
}

// reload replaces a clean record's state with a fresh payload.
func (r *Record) reload(fields ir.IRObject, payload []byte, fault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fault && fields == nil {
		r.fields, r.payload, r.faulted = nil, payload, true
		return
	}
	r.fields, r.payload, r.faulted = fields.Clone(), nil, false
}

// change returns the pending change of the record, if any.
func (r *Record) change() (ir.Change, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	c := ir.Change{ID: r.id, Entity: r.entity}
	switch {
	case r.state == stateInserted:
		c.Op, c.Fields = ir.OpInsert, r.fields.Clone()
	case r.state == stateDeleted:
		c.Op = ir.OpDelete
	case len(r.changed) > 0:
		c.Op, c.Fields, c.Changed = ir.OpUpdate, r.fields.Clone(), r.changedKeysLocked()
	default:
		return ir.Change{}, false
	}
	return c, true
}

// markSaved makes the current fields the saved state.
func (r *Record) markSaved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = stateClean
	r.changed, r.orig = nil, nil
}

// revert drops local edits, restoring the values they replaced.
func (r *Record) revert() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.changed {
		if v := r.orig[k]; !ir.IsNull(v) {
			r.fields[k] = v
		} else {
			delete(r.fields, k)
		}
	}
	r.changed, r.orig = nil, nil
	if r.state == stateDeleted {
		r.state = stateClean
	}
}
