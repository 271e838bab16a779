package pebblestore

import (
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/schema"
)

// migrateModel compares the stored model with the registry and rewrites
// every stored row in one batch when opts allow it.
func (s *Store) migrateModel(opts schema.Options) (schema.Plan, error) {
	var stored *schema.Registry
	raw, ok, err := lookup(s.db, modelKey)
	if err != nil {
		return schema.Plan{}, fmt.Errorf("read stored model: %w", err)
	}
	if ok {
		if stored, err = schema.UnmarshalRegistry(raw); err != nil {
			return schema.Plan{}, err
		}
	}

	plan := schema.Diff(stored, s.registry)
	if err := plan.Check(opts); err != nil {
		return plan, err
	}
	if ok && plan.Empty() {
		return plan, nil
	}

	b := s.db.NewBatch()
	defer b.Close()

	if !plan.Empty() {
		for _, name := range stored.Names() {
			if err := s.rewriteEntity(b, plan, name); err != nil {
				return plan, err
			}
		}
	}
	model, err := s.registry.MarshalJSON()
	if err != nil {
		return plan, fmt.Errorf("encode model: %w", err)
	}
	if err := b.Set(modelKey, model, nil); err != nil {
		return plan, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return plan, fmt.Errorf("commit migration: %w", err)
	}
	if !plan.Empty() {
		slog.Info("store model migrated", "driver", driver, "from", plan.From, "to", plan.To, "steps", len(plan.Steps))
	}
	return plan, nil
}

func (s *Store) rewriteEntity(b *pebble.Batch, plan schema.Plan, entity string) error {
	return s.scan(s.db, entity, func(id ir.ObjectID, payload []byte) error {
		out, keep, err := plan.Rewrite(ir.Row{ID: id, Entity: entity, Payload: payload})
		if err != nil {
			return err
		}
		if !keep {
			if err := b.Delete(recordKey(id), nil); err != nil {
				return err
			}
			return b.Delete(payloadKey(entity, id), nil)
		}
		if string(out.Payload) == string(payload) {
			return nil
		}
		return b.Set(payloadKey(entity, id), out.Payload, nil)
	})
}
