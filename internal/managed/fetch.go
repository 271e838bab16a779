package managed

import (
	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/queryir"
)

// FetchRecords runs req against this context's view: its own edits over
// every ancestor's edits over the store.
func (c *Context) FetchRecords(req queryir.FetchRequest) (recs []*Record, err error) {
	c.Sync(func() { recs, err = c.fetch(req) })
	return recs, err
}

// Fetch builds a request from opts and runs it like FetchRecords.
func (c *Context) Fetch(entity string, opts ...queryir.Option) ([]*Record, error) {
	req, err := queryir.Build(entity, opts...)
	if err != nil {
		return nil, &Error{Code: CodeResolution, Op: "fetch", Entity: entity, Err: err}
	}
	return c.FetchRecords(req)
}

func (c *Context) fetch(req queryir.FetchRequest) ([]*Record, error) {
	spec, err := c.spec("fetch", req.Entity)
	if err != nil {
		return nil, err
	}
	if err := queryir.Validate(req, spec); err != nil {
		return nil, &Error{Code: CodeResolution, Op: "fetch", Entity: req.Entity, Err: err}
	}

	cands, final, err := c.view(req, true)
	if err != nil {
		return nil, err
	}
	if !final {
		for i := range cands {
			decode(&cands[i])
			if cands[i].Payload == nil {
				if cands[i].Payload, err = ir.EncodePayload(cands[i].Fields); err != nil {
					return nil, &Error{Code: CodeStoreIO, Op: "fetch", Entity: req.Entity, ID: cands[i].ID, Err: err}
				}
			}
		}
		cands = queryir.Apply(req, cands)
	}

	recs := make([]*Record, len(cands))
	for i, cand := range cands {
		recs[i] = c.register(req.Entity, cand, req.Fault)
	}
	c.env.log.Debug("fetched", "ctx", c.name, "request", req.String(), "count", len(recs))
	return recs, nil
}

// register returns c's record for a fetched candidate, refreshing the
// unedited fields of a record c already holds.
func (c *Context) register(entity string, cand queryir.Candidate, fault bool) *Record {
	rec, ok := c.records[cand.ID]
	if !ok {
		if fault && cand.Fields == nil {
			rec = newFault(c, entity, cand.ID, cand.Payload)
		} else {
			decode(&cand)
			rec = newRecord(c, entity, cand.ID, cand.Fields.Clone())
		}
		c.records[cand.ID] = rec
		return rec
	}
	if rec.HasChanges() {
		decode(&cand)
		rec.merge(cand.Fields, false)
		return rec
	}
	if !fault {
		decode(&cand)
	}
	rec.reload(cand.Fields, cand.Payload, fault)
	return rec
}
