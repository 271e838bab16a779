package managed

import "github.com/roach88/objgraph/internal/ir"

// Delete marks rec for deletion in this context. A record inserted here and
// never saved is simply dropped. done, if not nil, runs afterwards on the
// queue. Failures are logged.
func (c *Context) Delete(rec *Record, done func()) *Context {
	c.Async(func() {
		if err := c.delete(rec); err != nil {
			c.logError("delete", err)
		}
		if done != nil {
			done()
		}
	})
	return c
}

func (c *Context) delete(rec *Record) error {
	own, err := c.own(rec)
	if err != nil {
		return err
	}
	if own.IsDeleted() {
		return nil
	}
	ed := c.beginEdit()
	ed.track(own)
	if own.IsInserted() {
		delete(c.records, own.id)
	} else {
		own.mu.Lock()
		own.state = stateDeleted
		own.mu.Unlock()
	}
	c.commitEdit(ed)
	return nil
}

// Update assigns field values to rec from outside the queue, as one
// undoable edit. done receives the outcome; with a nil done a failure is
// logged.
func (c *Context) Update(rec *Record, values map[string]any, done func(error)) *Context {
	c.Async(func() {
		err := c.update(rec, values)
		switch {
		case done != nil:
			done(err)
		case err != nil:
			c.logError("update", err)
		}
	})
	return c
}

// Rollback discards every unsaved edit: inserted records are dropped,
// deletions cancelled and edited fields restored. Undo history is cleared.
func (c *Context) Rollback(done func()) *Context {
	c.Async(func() {
		for id, r := range c.records {
			if r.IsInserted() {
				delete(c.records, id)
				continue
			}
			r.revert()
		}
		c.clearHistory()
		if done != nil {
			done()
		}
	})
	return c
}

// Reset forgets every record the context holds, saved or not, and clears
// undo history.
func (c *Context) Reset(done func()) *Context {
	c.Async(func() {
		c.records = map[ir.ObjectID]*Record{}
		c.clearHistory()
		if done != nil {
			done()
		}
	})
	return c
}

// Refresh reloads rec, or every held record when rec is nil, from the
// parent's view. Fields with local edits keep them. A clean record that no
// longer exists upstream is dropped.
func (c *Context) Refresh(rec *Record, done func()) *Context {
	c.Async(func() {
		var targets []*Record
		if rec != nil {
			if own, ok := c.records[rec.id]; ok {
				targets = append(targets, own)
			} else if _, err := c.assign(rec.id); err != nil {
				c.logError("refresh", err)
			}
		} else {
			targets = c.sortedRecords()
		}
		for _, r := range targets {
			c.refresh(r)
		}
		if done != nil {
			done()
		}
	})
	return c
}

func (c *Context) refresh(r *Record) {
	if r.IsInserted() {
		return
	}
	v, err := c.resolveUp(r.id)
	switch {
	case IsNotFound(err):
		if !r.HasChanges() {
			delete(c.records, r.id)
		}
		c.env.log.Debug("refreshed record is gone", "ctx", c.name, "id", r.id)
	case err != nil:
		c.logError("refresh", err)
	default:
		r.merge(v.fields, true)
	}
}
