package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/metrics"
	"github.com/roach88/objgraph/internal/queryir"
	"github.com/roach88/objgraph/internal/querysql"
)

// Fetch runs req against the stored rows. A positive req.Batch reads the
// result in pages of that size.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Fetch(ctx context.Context, req queryir.FetchRequest) (rows []ir.Row, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(s.Driver(), "fetch", start, err) }()

	spec, ok := s.registry.Lookup(req.Entity)
	if !ok {
		return nil, fmt.Errorf("fetch: unknown entity %q", req.Entity)
	}
	rows, err = querysql.Paged(req, func(page queryir.FetchRequest) ([]ir.Row, error) {
		query, params, err := s.compiler.Compile(page, spec)
		if err != nil {
			return nil, err
		}
		return s.query(ctx, req.Entity, query, params)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
	}
	return rows, nil
}

func (s *Store) query(ctx context.Context, entity, query string, params []any) ([]ir.Row, error) {
	rs, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rs.Close()

	out := []ir.Row{}
	for rs.Next() {
		row := ir.Row{Entity: entity}
		var payload string
		if err := rs.Scan(&row.ID, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if row.Payload, err = s.canonical(payload); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Get returns the stored row with the given id, or an error wrapping
// ir.ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, id ir.ObjectID) (row ir.Row, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(s.Driver(), "get", start, err) }()

	var payload string
	row.ID = id
	err = s.db.QueryRowContext(ctx, s.rebind(fmt.Sprintf(
		`SELECT entity, %s FROM records WHERE id = ?`, s.payloadColumn())), id).Scan(&row.Entity, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Row{}, fmt.Errorf("get %s: %w", id, ir.ErrRecordNotFound)
	}
	if err != nil {
		return ir.Row{}, fmt.Errorf("get %s: %w", id, err)
	}
	if row.Payload, err = s.canonical(payload); err != nil {
		return ir.Row{}, err
	}
	return row, nil
}

// canonical re-encodes payloads PostgreSQL reformatted on the way out.
func (s *Store) canonical(payload string) ([]byte, error) {
	if s.dialect != querysql.Postgres {
		return []byte(payload), nil
	}
	fields, err := ir.DecodePayload([]byte(payload))
	if err != nil {
		return nil, err
	}
	return ir.EncodePayload(fields)
}
