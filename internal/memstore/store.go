// Package memstore is a backing store that keeps rows in process memory.
// Nothing survives Close.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/metrics"
	"github.com/roach88/objgraph/internal/queryir"
	"github.com/roach88/objgraph/internal/schema"
)

const driver = "memory"

// Store holds rows keyed by id. Reads never block; writers are serialized.
// A reader running during Persist may see part of the change set.
type Store struct {
	registry *schema.Registry
	rows     *xsync.MapOf[ir.ObjectID, ir.Row]
	mu       sync.Mutex
}

// New returns an empty store. With a nil registry fetches skip request
// validation.
func New(reg *schema.Registry) *Store {
	return &Store{
		registry: reg,
		rows:     xsync.NewMapOf[ir.ObjectID, ir.Row](),
	}
}

// Driver names the engine.
func (s *Store) Driver() string { return driver }

// Len reports the number of stored rows.
func (s *Store) Len() int { return s.rows.Size() }

// Close drops every row.
func (s *Store) Close() error {
	s.rows.Clear()
	return nil
}

// Persist applies cs after checking every change against the current rows
// and the changes before it, so a conflicting set writes nothing.
func (s *Store) Persist(ctx context.Context, cs ir.ChangeSet) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(driver, "persist", start, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	cs.Sort()

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[ir.ObjectID]*ir.Row)
	current := func(id ir.ObjectID) (*ir.Row, bool) {
		if r, ok := staged[id]; ok {
			return r, r != nil
		}
		r, ok := s.rows.Load(id)
		return &r, ok
	}

	for _, c := range cs.Changes {
		switch c.Op {
		case ir.OpInsert:
			if _, ok := current(c.ID); ok {
				return fmt.Errorf("persist insert %s %s: id already stored: %w", c.Entity, c.ID, ir.ErrRecordConflict)
			}
			payload, err := ir.EncodePayload(c.Fields)
			if err != nil {
				return fmt.Errorf("persist insert %s %s: %w", c.Entity, c.ID, err)
			}
			staged[c.ID] = &ir.Row{ID: c.ID, Entity: c.Entity, Payload: payload}
		case ir.OpUpdate:
			row, ok := current(c.ID)
			if !ok {
				return fmt.Errorf("persist update %s %s: record no longer stored: %w", c.Entity, c.ID, ir.ErrRecordConflict)
			}
			base, err := ir.DecodePayload(row.Payload)
			if err != nil {
				return err
			}
			payload, err := ir.EncodePayload(c.Apply(base))
			if err != nil {
				return fmt.Errorf("persist update %s %s: %w", c.Entity, c.ID, err)
			}
			staged[c.ID] = &ir.Row{ID: c.ID, Entity: row.Entity, Payload: payload}
		case ir.OpDelete:
			staged[c.ID] = nil
		default:
			return fmt.Errorf("persist: unknown change op %q", c.Op)
		}
	}

	for id, row := range staged {
		if row == nil {
			s.rows.Delete(id)
			continue
		}
		s.rows.Store(id, *row)
	}
	return nil
}

// Get returns the row with the given id, or an error wrapping
// ir.ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, id ir.ObjectID) (ir.Row, error) {
	row, ok := s.rows.Load(id)
	if !ok {
		return ir.Row{}, fmt.Errorf("get %s: %w", id, ir.ErrRecordNotFound)
	}
	return row, nil
}

// Fetch evaluates req over the entity's rows.
func (s *Store) Fetch(ctx context.Context, req queryir.FetchRequest) (rows []ir.Row, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(driver, "fetch", start, err) }()

	if s.registry != nil {
		spec, ok := s.registry.Lookup(req.Entity)
		if !ok {
			return nil, fmt.Errorf("fetch: unknown entity %q", req.Entity)
		}
		if err := queryir.Validate(req, spec); err != nil {
			return nil, err
		}
	}

	var cands []queryir.Candidate
	s.rows.Range(func(id ir.ObjectID, row ir.Row) bool {
		if row.Entity != req.Entity {
			return true
		}
		fields, derr := ir.DecodePayload(row.Payload)
		if derr != nil {
			err = fmt.Errorf("fetch %s: record %s: %w", req.Entity, id, derr)
			return false
		}
		cands = append(cands, queryir.Candidate{ID: id, Fields: fields, Payload: row.Payload})
		return true
	})
	if err != nil {
		return nil, err
	}

	matched := queryir.Apply(req, cands)
	rows = make([]ir.Row, len(matched))
	for i, c := range matched {
		rows[i] = ir.Row{ID: c.ID, Entity: req.Entity, Payload: c.Payload}
	}
	return rows, nil
}
