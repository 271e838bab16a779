package managed

import (
	"context"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/metrics"
	"github.com/roach88/objgraph/internal/queryir"
)

// A context's view of a record is its parent's view with the context's own
// pending edits on top; the root's parent is the backing store. Views are
// computed by calling Sync on the parent from the child's queue, so waits
// only ever point toward the root.

type recordView struct {
	entity string
	fields ir.IRObject
}

// resolve returns c's view of the record. Runs on c's queue.
func (c *Context) resolve(id ir.ObjectID) (recordView, error) {
	rec, ok := c.records[id]
	if ok {
		rec.mu.RLock()
		state := rec.state
		rec.mu.RUnlock()
		switch state {
		case stateDeleted:
			return recordView{}, &Error{Code: CodeNotFound, Op: "resolve", Entity: rec.entity, ID: id, Message: "record is deleted"}
		case stateInserted:
			return recordView{entity: rec.entity, fields: rec.Fields()}, nil
		}
	}
	v, err := c.resolveUp(id)
	if err != nil || !ok {
		return v, err
	}
	if ch, pending := rec.change(); pending {
		v.fields = ch.Apply(v.fields)
	}
	return v, nil
}

// resolveUp returns the parent's view, or the stored row at the root.
func (c *Context) resolveUp(id ir.ObjectID) (v recordView, err error) {
	if c.parent != nil {
		c.parent.Sync(func() { v, err = c.parent.resolve(id) })
		return v, err
	}
	st, err := c.store("resolve")
	if err != nil {
		return recordView{}, err
	}
	row, err := st.Get(context.Background(), id)
	if err != nil {
		return recordView{}, storeError("resolve", err)
	}
	fields, err := ir.DecodePayload(row.Payload)
	if err != nil {
		return recordView{}, &Error{Code: CodeStoreIO, Op: "resolve", Entity: row.Entity, ID: id, Err: err}
	}
	return recordView{entity: row.Entity, fields: fields}, nil
}

// pendingFor returns c's records of entity with unsaved edits.
func (c *Context) pendingFor(entity string) []*Record {
	var out []*Record
	for _, r := range c.records {
		if r.entity == entity && r.HasChanges() {
			out = append(out, r)
		}
	}
	return out
}

// loose strips the parts of a request that only the top of a view can
// apply once every level's edits are in.
func loose(req queryir.FetchRequest) queryir.FetchRequest {
	req = req.Unpaginated()
	req.Distinct = false
	return req
}

// view returns the candidates matching req as c sees them. When push is
// set and no level holds edits to the entity, pagination and distinct run
// in the store and final reports it. Runs on c's queue.
func (c *Context) view(req queryir.FetchRequest, push bool) (cands []queryir.Candidate, final bool, err error) {
	pending := c.pendingFor(req.Entity)
	push = push && len(pending) == 0

	if c.parent != nil {
		c.parent.Sync(func() { cands, final, err = c.parent.view(req, push) })
	} else {
		cands, final, err = c.storeView(req, push)
	}
	if err != nil || len(pending) == 0 {
		return cands, final, err
	}

	byID := make(map[ir.ObjectID]int, len(cands))
	for i := range cands {
		decode(&cands[i])
		byID[cands[i].ID] = i
	}
	removed := map[ir.ObjectID]bool{}
	for _, rec := range pending {
		ch, _ := rec.change()
		i, seen := byID[rec.id]
		switch {
		case ch.Op == ir.OpDelete:
			removed[rec.id] = true
			continue
		case ch.Op == ir.OpUpdate && seen:
			cands[i].Fields = ch.Apply(cands[i].Fields)
		case seen:
			cands[i].Fields = ch.Fields
		default:
			// Not visible upstream under this filter; the edited copy may
			// match now. Unedited fields come from the current upstream
			// view, not from the possibly stale local copy.
			fields := ch.Fields
			if ch.Op == ir.OpUpdate {
				v, err := c.resolveUp(rec.id)
				switch {
				case IsNotFound(err):
					continue
				case err != nil:
					return nil, false, err
				}
				fields = ch.Apply(v.fields)
			}
			cands = append(cands, queryir.Candidate{ID: rec.id, Fields: fields})
			byID[rec.id] = len(cands) - 1
			continue
		}
		cands[i].Payload = nil
	}
	if len(removed) > 0 {
		kept := cands[:0]
		for _, cand := range cands {
			if !removed[cand.ID] {
				kept = append(kept, cand)
			}
		}
		cands = kept
	}
	return queryir.Apply(loose(req), cands), false, nil
}

func (c *Context) storeView(req queryir.FetchRequest, push bool) ([]queryir.Candidate, bool, error) {
	st, err := c.store("fetch")
	if err != nil {
		if CodeOf(err) == CodeStoreUnavailable {
			c.env.log.Debug("fetch without store", "entity", req.Entity)
			return nil, false, nil
		}
		return nil, false, err
	}
	if !push {
		req = loose(req)
	}
	rows, err := st.Fetch(context.Background(), req)
	if err != nil {
		return nil, false, storeError("fetch", err)
	}
	path := "overlay"
	if push {
		path = "store"
	}
	metrics.Fetches.WithLabelValues(req.Entity, path).Inc()

	cands := make([]queryir.Candidate, len(rows))
	for i, row := range rows {
		cands[i] = queryir.Candidate{ID: row.ID, Payload: row.Payload}
	}
	return cands, push, nil
}

// decode fills Fields from Payload when a candidate was left undecoded.
func decode(cand *queryir.Candidate) {
	if cand.Fields != nil {
		return
	}
	fields, err := ir.DecodePayload(cand.Payload)
	if err != nil {
		fields = ir.IRObject{}
	}
	cand.Fields = fields
}
