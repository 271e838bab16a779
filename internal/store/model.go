package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/querysql"
	"github.com/roach88/objgraph/internal/schema"
)

const metaModelKey = "model"

// migrateModel compares the stored model with the registry and rewrites
// stored rows in one transaction when opts allow it.
func (s *Store) migrateModel(ctx context.Context, opts schema.Options) (schema.Plan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.Plan{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var stored *schema.Registry
	var raw string
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT value FROM meta WHERE key = ?`), metaModelKey).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return schema.Plan{}, fmt.Errorf("read stored model: %w", err)
	default:
		stored, err = schema.UnmarshalRegistry([]byte(raw))
		if err != nil {
			return schema.Plan{}, err
		}
	}

	plan := schema.Diff(stored, s.registry)
	if err := plan.Check(opts); err != nil {
		return plan, err
	}
	if !plan.Empty() {
		if err := s.rewriteRows(ctx, tx, plan); err != nil {
			return plan, err
		}
		slog.Info("store model migrated", "driver", s.Driver(), "from", plan.From, "to", plan.To, "steps", len(plan.Steps))
	}

	if stored == nil || !plan.Empty() {
		model, err := s.registry.MarshalJSON()
		if err != nil {
			return plan, fmt.Errorf("encode model: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`), metaModelKey, string(model)); err != nil {
			return plan, fmt.Errorf("write model: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return plan, fmt.Errorf("commit migration: %w", err)
	}
	return plan, nil
}

func (s *Store) rewriteRows(ctx context.Context, tx *sql.Tx, plan schema.Plan) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, entity, %s FROM records ORDER BY id ASC", s.payloadColumn()))
	if err != nil {
		return fmt.Errorf("scan rows: %w", err)
	}
	var all []ir.Row
	for rows.Next() {
		var row ir.Row
		var payload string
		if err := rows.Scan(&row.ID, &row.Entity, &payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan row: %w", err)
		}
		row.Payload = []byte(payload)
		all = append(all, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate rows: %w", err)
	}
	rows.Close()

	for _, row := range all {
		out, keep, err := plan.Rewrite(row)
		if err != nil {
			return err
		}
		if !keep {
			if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM records WHERE id = ?`), row.ID); err != nil {
				return fmt.Errorf("drop row %s: %w", row.ID, err)
			}
			continue
		}
		if string(out.Payload) == string(row.Payload) {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE records SET payload = `+s.payloadParam()+` WHERE id = ?`), string(out.Payload), row.ID); err != nil {
			return fmt.Errorf("rewrite row %s: %w", row.ID, err)
		}
	}
	return nil
}

// payloadColumn selects the payload as text in both dialects.
func (s *Store) payloadColumn() string {
	if s.dialect == querysql.Postgres {
		return "payload::text"
	}
	return "payload"
}
