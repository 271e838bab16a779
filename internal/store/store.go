package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/objgraph/internal/querysql"
	"github.com/roach88/objgraph/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

//go:embed schema_postgres.sql
var schemaPostgresSQL string

// Schema version tracking (SQLite user_version):
// 0 - Empty database
// 1 - records and meta tables
const currentSchemaVersion = 1

// Store persists records in a SQL database.
type Store struct {
	db       *sql.DB
	dialect  querysql.Dialect
	compiler *querysql.Compiler
	registry *schema.Registry
	plan     schema.Plan
}

// Open creates or opens a SQLite database at the given path and migrates
// stored rows to the registry's model as opts allow.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, reg *schema.Registry, opts schema.Options) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return finishOpen(db, querysql.SQLite, reg, opts)
}

// OpenPostgres connects to PostgreSQL with the given DSN, creates the
// tables if needed and migrates stored rows like Open.
func OpenPostgres(ctx context.Context, dsn string, reg *schema.Registry, opts schema.Options) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaPostgresSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return finishOpen(db, querysql.Postgres, reg, opts)
}

func finishOpen(db *sql.DB, dialect querysql.Dialect, reg *schema.Registry, opts schema.Options) (*Store, error) {
	s := &Store{
		db:       db,
		dialect:  dialect,
		compiler: querysql.NewCompiler(dialect),
		registry: reg,
	}
	plan, err := s.migrateModel(context.Background(), opts)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate model: %w", err)
	}
	s.plan = plan
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Plan returns the model migration applied when the store was opened.
func (s *Store) Plan() schema.Plan {
	return s.plan
}

// Driver names the SQL dialect in use.
func (s *Store) Driver() string {
	return s.dialect.String()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the layout
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database layout version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL. Queries passed here
// contain no string literals with question marks.
func (s *Store) rebind(query string) string {
	if s.dialect != querysql.Postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// payloadParam is the placeholder for a canonical JSON payload parameter.
func (s *Store) payloadParam() string {
	if s.dialect == querysql.Postgres {
		return "?::text::jsonb"
	}
	return "?"
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
