// Package store provides the SQL backing stores: SQLite (the default, via
// mattn/go-sqlite3) and PostgreSQL (via pgx's database/sql driver).
//
// Both keep one row per record in a records table:
//   - id: the record's ObjectID, primary key, byte-wise collation
//   - entity: the entity name
//   - payload: canonical JSON of the record's fields (TEXT in SQLite,
//     JSONB in PostgreSQL)
//
// and the compiled model in a meta table, so a reopened store can diff the
// stored model against the current one and migrate rows.
//
// # Critical Patterns
//
// Deterministic query results
//   - Every fetch ends with ORDER BY id (see internal/querysql)
//   - Payloads read back are re-encoded canonically, so equal records are
//     byte-identical whichever dialect stored them
//
// Atomic persistence
//   - Persist applies a whole change set in one transaction
//   - Updates merge only the keys the change touched into the stored row
//   - An update or insert that collides with the stored state fails the
//     transaction with ir.ErrRecordConflict
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// A Store is safe for concurrent use, though the managed contexts only ever
// call it from the root context's queue.
package store
