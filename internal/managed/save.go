package managed

import (
	"context"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/metrics"
	"github.com/roach88/objgraph/internal/schema"
)

// Save moves the context's pending changes into its parent and repeats the
// step on each ancestor, persisting at the root. Every hop runs on its own
// context's queue and starts only after the hop below succeeded; the first
// failure ends the chain.
//
// done, if not nil, receives the outcome exactly once and the error is not
// logged. With a nil done, a failure is written to the error log. The
// returned future is fulfilled either way.
func (c *Context) Save(done func(error)) *Future {
	f := newFuture()
	c.Async(func() { c.saveHop(f, done, true) })
	return f
}

// Commit is the single-hop form of Save: it moves the pending changes one
// level up, or into the store at the root, and stops.
func (c *Context) Commit(done func(error)) *Future {
	f := newFuture()
	c.Async(func() { c.saveHop(f, done, false) })
	return f
}

func (c *Context) saveHop(f *Future, done func(error), recursive bool) {
	err := c.pushUp()

	level, result := "child", "ok"
	if c.parent == nil {
		level = "root"
	}
	if err != nil {
		result = "error"
	}
	metrics.SaveHops.WithLabelValues(level, result).Inc()

	if err != nil || c.parent == nil || !recursive {
		c.finish("save", f, done, err)
		return
	}
	p := c.parent
	p.Async(func() { p.saveHop(f, done, true) })
}

// finish reports a save outcome to done, or logs a failure when there is
// no done, then fulfills the future.
func (c *Context) finish(op string, f *Future, done func(error), err error) {
	switch {
	case done != nil:
		done(err)
	case err != nil:
		c.logError(op, err)
	}
	f.fulfill(err)
}

// pushUp hands the pending change set to the parent, or the store at the
// root, and marks the records saved. Runs on c's queue.
func (c *Context) pushUp() error {
	cs, recs, err := c.changeSet()
	if err != nil || cs.IsEmpty() {
		return err
	}

	if c.parent != nil {
		c.parent.Sync(func() { err = c.parent.absorb(cs) })
	} else {
		var st BackingStore
		if st, err = c.store("save"); err == nil {
			if perr := st.Persist(context.Background(), cs); perr != nil {
				err = storeError("save", perr)
			}
		}
	}
	if err != nil {
		return err
	}

	for _, r := range recs {
		if r.IsDeleted() {
			delete(c.records, r.id)
			continue
		}
		r.markSaved()
	}
	c.clearHistory()
	c.env.log.Debug("save hop", "ctx", c.name, "hop", c.depth, "changes", cs.Len())
	return nil
}

// changeSet collects and validates the pending changes.
func (c *Context) changeSet() (ir.ChangeSet, []*Record, error) {
	var cs ir.ChangeSet
	var recs []*Record
	for _, r := range c.sortedRecords() {
		ch, ok := r.change()
		if !ok {
			continue
		}
		if ch.Op != ir.OpDelete {
			spec, err := c.spec("save", ch.Entity)
			if err != nil {
				return ir.ChangeSet{}, nil, err
			}
			if err := schema.ValidateRecord(spec, ch.Fields); err != nil {
				return ir.ChangeSet{}, nil, &Error{Code: CodeValidation, Op: "save", Entity: ch.Entity, ID: ch.ID, Err: err}
			}
		}
		cs.Changes = append(cs.Changes, ch)
		recs = append(recs, r)
	}
	cs.Sort()
	return cs, recs, nil
}

// absorb takes a child's change set into c's pending state. Either every
// change applies or none does. Runs on c's queue.
func (c *Context) absorb(cs ir.ChangeSet) error {
	bases := make(map[ir.ObjectID]ir.IRObject)
	for _, ch := range cs.Changes {
		held, ok := c.records[ch.ID]
		switch ch.Op {
		case ir.OpInsert:
			if ok {
				return &Error{Code: CodeConflict, Op: "save", Entity: ch.Entity, ID: ch.ID, Message: "identifier already in use"}
			}
		case ir.OpUpdate:
			if ok {
				if held.IsDeleted() {
					return &Error{Code: CodeConflict, Op: "save", Entity: ch.Entity, ID: ch.ID, Message: "record was deleted in the parent"}
				}
				continue
			}
			v, err := c.resolveUp(ch.ID)
			if IsNotFound(err) {
				return &Error{Code: CodeConflict, Op: "save", Entity: ch.Entity, ID: ch.ID, Message: "record no longer exists", Err: err}
			}
			if err != nil {
				return err
			}
			bases[ch.ID] = v.fields
		}
	}

	for _, ch := range cs.Changes {
		held, ok := c.records[ch.ID]
		switch ch.Op {
		case ir.OpInsert:
			rec := newRecord(c, ch.Entity, ch.ID, ch.Fields.Clone())
			rec.state = stateInserted
			c.records[ch.ID] = rec
		case ir.OpUpdate:
			if !ok {
				held = newRecord(c, ch.Entity, ch.ID, bases[ch.ID])
				c.records[ch.ID] = held
			}
			values := make(ir.IRObject, len(ch.Changed))
			for _, k := range ch.Changed {
				values[k] = ir.IRNull{}
				if v, set := ch.Fields[k]; set {
					values[k] = v
				}
			}
			held.mu.Lock()
			held.assignLocked(values)
			held.mu.Unlock()
		case ir.OpDelete:
			switch {
			case ok && held.IsInserted():
				delete(c.records, ch.ID)
			case ok:
				held.mu.Lock()
				held.state = stateDeleted
				held.mu.Unlock()
			default:
				tomb := newRecord(c, ch.Entity, ch.ID, nil)
				tomb.state = stateDeleted
				c.records[ch.ID] = tomb
			}
		}
	}
	c.clearHistory()
	return nil
}
