package managed

import "github.com/roach88/objgraph/internal/ir"

// snapshot is a record's complete local state at one point.
type snapshot struct {
	registered bool
	fields     ir.IRObject
	payload    []byte
	faulted    bool
	state      recordState
	changed    map[string]bool
	orig       ir.IRObject
}

func (c *Context) snapshot(r *Record) snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := snapshot{
		registered: c.records[r.id] == r,
		payload:    r.payload,
		faulted:    r.faulted,
		state:      r.state,
		orig:       r.orig.Clone(),
	}
	if r.fields != nil {
		s.fields = r.fields.Clone()
	}
	if r.changed != nil {
		s.changed = make(map[string]bool, len(r.changed))
		for k := range r.changed {
			s.changed[k] = true
		}
	}
	return s
}

func (c *Context) restore(r *Record, s snapshot) {
	r.mu.Lock()
	r.fields = nil
	if s.fields != nil {
		r.fields = s.fields.Clone()
	}
	r.payload, r.faulted, r.state = s.payload, s.faulted, s.state
	r.changed, r.orig = nil, nil
	if len(s.changed) > 0 {
		r.changed = make(map[string]bool, len(s.changed))
		for k := range s.changed {
			r.changed[k] = true
		}
		r.orig = s.orig.Clone()
	}
	r.mu.Unlock()

	if s.registered {
		c.records[r.id] = r
	} else if c.records[r.id] == r {
		delete(c.records, r.id)
	}
}

// edit is one undoable step: the states of the records it touched before
// and after.
type edit struct {
	c      *Context
	recs   []*Record
	before []snapshot
	after  []snapshot
}

func (c *Context) beginEdit() *edit { return &edit{c: c} }

// track records r's state before the edit changes it.
func (ed *edit) track(r *Record) {
	ed.recs = append(ed.recs, r)
	ed.before = append(ed.before, ed.c.snapshot(r))
}

func (c *Context) commitEdit(ed *edit) {
	if len(ed.recs) == 0 {
		return
	}
	ed.after = make([]snapshot, len(ed.recs))
	for i, r := range ed.recs {
		ed.after[i] = c.snapshot(r)
	}
	c.undo = append(c.undo, *ed)
	c.redo = nil
}

// clearHistory forgets every undoable step.
func (c *Context) clearHistory() {
	c.undo, c.redo = nil, nil
}

// Undo reverts the most recent edit. done, if not nil, runs afterwards on
// the queue.
func (c *Context) Undo(done func()) *Context {
	c.Async(func() {
		if n := len(c.undo); n > 0 {
			ed := c.undo[n-1]
			c.undo = c.undo[:n-1]
			for i := len(ed.recs) - 1; i >= 0; i-- {
				c.restore(ed.recs[i], ed.before[i])
			}
			c.redo = append(c.redo, ed)
		}
		if done != nil {
			done()
		}
	})
	return c
}

// Redo reapplies the most recently undone edit.
func (c *Context) Redo(done func()) *Context {
	c.Async(func() {
		if n := len(c.redo); n > 0 {
			ed := c.redo[n-1]
			c.redo = c.redo[:n-1]
			for i, r := range ed.recs {
				c.restore(r, ed.after[i])
			}
			c.undo = append(c.undo, ed)
		}
		if done != nil {
			done()
		}
	})
	return c
}

// CanUndo reports whether Undo has an edit to revert.
func (c *Context) CanUndo() (ok bool) {
	c.Sync(func() { ok = len(c.undo) > 0 })
	return ok
}

// CanRedo reports whether Redo has an edit to reapply.
func (c *Context) CanRedo() (ok bool) {
	c.Sync(func() { ok = len(c.redo) > 0 })
	return ok
}
