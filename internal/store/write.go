package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/metrics"
)

// Persist applies a change set in one transaction. Inserts of an existing
// id and updates of a missing record fail with ir.ErrRecordConflict;
// deleting a missing record is a no-op.
func (s *Store) Persist(ctx context.Context, cs ir.ChangeSet) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(s.Driver(), "persist", start, err) }()

	cs.Sort()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, c := range cs.Changes {
		var err error
		switch c.Op {
		case ir.OpInsert:
			err = s.insert(ctx, tx, c)
		case ir.OpUpdate:
			err = s.update(ctx, tx, c)
		case ir.OpDelete:
			_, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM records WHERE id = ?`), c.ID)
		default:
			err = fmt.Errorf("unknown change op %q", c.Op)
		}
		if err != nil {
			return fmt.Errorf("persist %s %s %s: %w", c.Op, c.Entity, c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	return nil
}

// insert uses ON CONFLICT(id) DO NOTHING and reports a conflict when no
// row was written, so constraint errors stay distinguishable.
func (s *Store) insert(ctx context.Context, tx *sql.Tx, c ir.Change) error {
	payload, err := ir.EncodePayload(c.Fields)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO records (id, entity, payload)
		VALUES (?, ?, `+s.payloadParam()+`)
		ON CONFLICT(id) DO NOTHING
	`), c.ID, c.Entity, string(payload))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("id already stored: %w", ir.ErrRecordConflict)
	}
	return nil
}

// update merges the changed keys into the stored payload.
func (s *Store) update(ctx context.Context, tx *sql.Tx, c ir.Change) error {
	var raw string
	err := tx.QueryRowContext(ctx, s.rebind(fmt.Sprintf(
		`SELECT %s FROM records WHERE id = ?`, s.payloadColumn())), c.ID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record no longer stored: %w", ir.ErrRecordConflict)
	}
	if err != nil {
		return err
	}
	base, err := ir.DecodePayload([]byte(raw))
	if err != nil {
		return err
	}
	payload, err := ir.EncodePayload(c.Apply(base))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.rebind(`UPDATE records SET payload = `+s.payloadParam()+` WHERE id = ?`), string(payload), c.ID)
	return err
}
