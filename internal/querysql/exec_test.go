package querysql

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/queryir"
)

// openRecords creates an in-memory records table holding fixed Person rows.
func openRecords(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE records (
		id      TEXT NOT NULL PRIMARY KEY COLLATE BINARY,
		entity  TEXT NOT NULL,
		payload TEXT NOT NULL
	)`)
	require.NoError(t, err)

	rows := []struct{ id, entity, payload string }{
		{"p1", "Person", `{"age":30,"name":"carol"}`},
		{"p2", "Person", `{"age":17,"name":"alice"}`},
		{"p3", "Person", `{"age":40,"email":"b@x","name":"bob"}`},
		{"p4", "Person", `{"age":22,"name":"alice"}`},
		{"p5", "Person", `{"active":true,"name":"dave","tags":["b","a"]}`},
		{"p6", "Person", `{"age":30,"name":"carol"}`},
		{"x1", "Pet", `{"name":"rex"}`},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO records (id, entity, payload) VALUES (?, ?, ?)`, r.id, r.entity, r.payload)
		require.NoError(t, err)
	}
	return db
}

func queryIDs(t *testing.T, db *sql.DB, opts ...queryir.Option) []string {
	t.Helper()
	req, err := queryir.Build("Person", opts...)
	require.NoError(t, err)
	query, params, err := NewCompiler(SQLite).Compile(req, personSpec)
	require.NoError(t, err)

	rows, err := db.Query(query, params...)
	require.NoError(t, err, query)
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id, payload string
		require.NoError(t, rows.Scan(&id, &payload))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

func TestCompile_SQLiteExecutes(t *testing.T) {
	db := openRecords(t)

	tests := []struct {
		name string
		opts []queryir.Option
		want []string
	}{
		{"all", nil, []string{"p1", "p2", "p3", "p4", "p5", "p6"}},
		{"filter sort page", []queryir.Option{
			queryir.Where("age >= ", 18),
			queryir.Where("email", nil),
			queryir.SortBy("name", true),
			queryir.SortBy("age", false),
			queryir.Limit(2),
			queryir.Offset(1),
		}, []string{"p1", "p6"}},
		{"offset only", []queryir.Option{queryir.Offset(4)}, []string{"p5", "p6"}},
		{"structured", []queryir.Option{
			queryir.Where("tags", []string{"b", "a"}),
			queryir.Where("active", true),
		}, []string{"p5"}},
		{"distinct", []queryir.Option{
			queryir.Where("name <", "d"),
			queryir.SortBy("name", true),
			queryir.Distinct(true),
		}, []string{"p2", "p4", "p3", "p1"}},
		{"zero pagination", []queryir.Option{
			queryir.Limit(0), queryir.Offset(0), queryir.Batch(0),
		}, []string{"p1", "p2", "p3", "p4", "p5", "p6"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryIDs(t, db, tt.opts...))
		})
	}
}
