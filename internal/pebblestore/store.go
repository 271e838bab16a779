package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/metrics"
	"github.com/roach88/objgraph/internal/queryir"
	"github.com/roach88/objgraph/internal/schema"
)

const driver = "pebble"

// Store persists records in a Pebble database.
type Store struct {
	db       *pebble.DB
	registry *schema.Registry
	plan     schema.Plan

	// Persist reads before it writes; one writer at a time keeps the
	// existence checks valid until commit.
	mu sync.Mutex
}

// Open opens or creates the Pebble database in dir and migrates stored
// rows to the registry's model as opts allow. A nil popts uses defaults.
func Open(dir string, reg *schema.Registry, opts schema.Options, popts *pebble.Options) (*Store, error) {
	if popts == nil {
		popts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	s := &Store{db: db, registry: reg}
	if s.plan, err = s.migrateModel(opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate model: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Plan returns the model migration applied when the store was opened.
func (s *Store) Plan() schema.Plan { return s.plan }

// Driver names the engine.
func (s *Store) Driver() string { return driver }

// DB exposes the underlying database, for metrics collection.
func (s *Store) DB() *pebble.DB { return s.db }

// Persist applies a change set as one atomic batch. Inserts of an existing
// id and updates of a missing record fail with ir.ErrRecordConflict;
// deleting a missing record is a no-op.
func (s *Store) Persist(ctx context.Context, cs ir.ChangeSet) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(driver, "persist", start, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	cs.Sort()

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewIndexedBatch()
	defer b.Close()

	for _, c := range cs.Changes {
		if err := s.apply(b, c); err != nil {
			return fmt.Errorf("persist %s %s %s: %w", c.Op, c.Entity, c.ID, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	return nil
}

func (s *Store) apply(b *pebble.Batch, c ir.Change) error {
	switch c.Op {
	case ir.OpInsert:
		if _, ok, err := lookup(b, recordKey(c.ID)); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("id already stored: %w", ir.ErrRecordConflict)
		}
		payload, err := ir.EncodePayload(c.Fields)
		if err != nil {
			return err
		}
		if err := b.Set(recordKey(c.ID), []byte(c.Entity), nil); err != nil {
			return err
		}
		return b.Set(payloadKey(c.Entity, c.ID), payload, nil)

	case ir.OpUpdate:
		entity, ok, err := lookup(b, recordKey(c.ID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("record no longer stored: %w", ir.ErrRecordConflict)
		}
		raw, _, err := lookup(b, payloadKey(string(entity), c.ID))
		if err != nil {
			return err
		}
		base, err := ir.DecodePayload(raw)
		if err != nil {
			return err
		}
		payload, err := ir.EncodePayload(c.Apply(base))
		if err != nil {
			return err
		}
		return b.Set(payloadKey(string(entity), c.ID), payload, nil)

	case ir.OpDelete:
		entity, ok, err := lookup(b, recordKey(c.ID))
		if err != nil || !ok {
			return err
		}
		if err := b.Delete(recordKey(c.ID), nil); err != nil {
			return err
		}
		return b.Delete(payloadKey(string(entity), c.ID), nil)

	default:
		return fmt.Errorf("unknown change op %q", c.Op)
	}
}

// lookup copies the value at key out of r. ok is false when absent.
func lookup(r pebble.Reader, key []byte) (value []byte, ok bool, err error) {
	v, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), true, nil
}

// Get returns the stored row with the given id, or an error wrapping
// ir.ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, id ir.ObjectID) (row ir.Row, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(driver, "get", start, err) }()

	entity, ok, err := lookup(s.db, recordKey(id))
	if err != nil {
		return ir.Row{}, fmt.Errorf("get %s: %w", id, err)
	}
	if !ok {
		return ir.Row{}, fmt.Errorf("get %s: %w", id, ir.ErrRecordNotFound)
	}
	payload, ok, err := lookup(s.db, payloadKey(string(entity), id))
	if err != nil {
		return ir.Row{}, fmt.Errorf("get %s: %w", id, err)
	}
	if !ok {
		return ir.Row{}, fmt.Errorf("get %s: payload missing: %w", id, ir.ErrRecordNotFound)
	}
	return ir.Row{ID: id, Entity: string(entity), Payload: payload}, nil
}

// Fetch scans the request's entity and evaluates the request in memory.
// Batch has no effect: the scan already streams from the iterator.
func (s *Store) Fetch(ctx context.Context, req queryir.FetchRequest) (rows []ir.Row, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(driver, "fetch", start, err) }()

	spec, ok := s.registry.Lookup(req.Entity)
	if !ok {
		return nil, fmt.Errorf("fetch: unknown entity %q", req.Entity)
	}
	if err := queryir.Validate(req, spec); err != nil {
		return nil, err
	}

	var cands []queryir.Candidate
	err = s.scan(s.db, req.Entity, func(id ir.ObjectID, payload []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := ir.DecodePayload(payload)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		cands = append(cands, queryir.Candidate{ID: id, Fields: fields, Payload: payload})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
	}

	matched := queryir.Apply(req, cands)
	rows = make([]ir.Row, len(matched))
	for i, c := range matched {
		rows[i] = ir.Row{ID: c.ID, Entity: req.Entity, Payload: c.Payload}
	}
	return rows, nil
}

// scan calls fn for every record of entity in id order. Payloads are
// copied, so fn may retain them.
func (s *Store) scan(r pebble.Reader, entity string, fn func(ir.ObjectID, []byte) error) error {
	it, err := r.NewIter(&pebble.IterOptions{
		LowerBound: entityLower(entity),
		UpperBound: entityUpper(entity),
	})
	if err != nil {
		return err
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		_, id, ok := splitPayloadKey(it.Key())
		if !ok {
			slog.Warn("skipping malformed key", "driver", driver, "key", string(it.Key()))
			continue
		}
		if err := fn(id, append([]byte(nil), it.Value()...)); err != nil {
			return err
		}
	}
	return it.Error()
}
