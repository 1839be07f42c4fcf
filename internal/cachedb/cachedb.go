// Package cachedb reads and writes the per-architecture index cache
// (.cache/cache.db), a sqlite database shared with conda-index.
//
// Each artifact has a row in the stat table per stage. Stage "fs" marks an
// artifact the indexer still has to fold into its output; stage "indexed"
// marks one it has already processed in the current run. The descriptor of
// every known artifact is kept in index_json.
//
// A DB wraps a single connection and is not safe for concurrent use.
package cachedb

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Stage values of the stat table.
const (
	StageFS      = "fs"
	StageIndexed = "indexed"
)

// RelPath is the location of the cache inside an architecture directory.
const RelPath = ".cache/cache.db"

const schema = `
CREATE TABLE IF NOT EXISTS stat (
	stage TEXT NOT NULL DEFAULT 'indexed',
	path TEXT NOT NULL,
	mtime NUMBER,
	size INTEGER,
	sha256 TEXT,
	md5 TEXT,
	last_modified TEXT,
	etag TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_stat ON stat (path, stage);
CREATE TABLE IF NOT EXISTS index_json (
	path TEXT PRIMARY KEY,
	index_json BLOB
);
`

// Row is one stat table entry.
type Row struct {
	Stage        string
	Path         string
	Mtime        float64
	Size         int64
	SHA256       string
	MD5          string
	LastModified string
	ETag         string
}

// HasDigests reports whether the row carries size and both hashes.
func (r Row) HasDigests() bool {
	return r.Size > 0 && r.SHA256 != "" && r.MD5 != ""
}

// Matches reports whether the row describes a file with the given mtime
// and size. Mtimes written by other tools may differ in the last float bits.
func (r Row) Matches(mtime float64, size int64) bool {
	return r.Size == size && math.Abs(r.Mtime-mtime) < 1e-3
}

// DB is an open cache database.
type DB struct {
	conn *sqlite.Conn
	path string
}

// Open opens or creates the cache at path and ensures the schema exists.
// The rollback journal is used rather than WAL so that the database is a
// single self-contained file ready for upload once closed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("cachedb: creating directory for %s: %w", path, err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("cachedb: opening %s: %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode = DELETE", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cachedb: setting journal mode on %s: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cachedb: creating schema in %s: %w", path, err)
	}
	return &DB{conn: conn, path: path}, nil
}

// OpenReadOnly opens an existing cache without modifying it.
func OpenReadOnly(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cachedb: %w", err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("cachedb: opening %s read-only: %w", path, err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Close releases the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Transaction runs fn inside an immediate transaction, committing when fn
// returns nil and rolling back otherwise.
func (db *DB) Transaction(fn func() error) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(db.conn)
	if err != nil {
		return fmt.Errorf("cachedb: begin transaction: %w", err)
	}
	defer endFn(&err)
	return fn()
}

const rowColumns = "stage, path, mtime, size, sha256, md5, last_modified, etag"

func scanRow(stmt *sqlite.Stmt) Row {
	return Row{
		Stage:        stmt.ColumnText(0),
		Path:         stmt.ColumnText(1),
		Mtime:        stmt.ColumnFloat(2),
		Size:         stmt.ColumnInt64(3),
		SHA256:       stmt.ColumnText(4),
		MD5:          stmt.ColumnText(5),
		LastModified: stmt.ColumnText(6),
		ETag:         stmt.ColumnText(7),
	}
}

// Rows returns every row of the given stage, ordered by path.
func (db *DB) Rows(stage string) ([]Row, error) {
	var rows []Row
	err := sqlitex.Execute(db.conn, "SELECT "+rowColumns+" FROM stat WHERE stage = ? ORDER BY path", &sqlitex.ExecOptions{
		Args: []any{stage},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, scanRow(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cachedb: listing %s rows: %w", stage, err)
	}
	return rows, nil
}

// Lookup returns the row for path in stage.
func (db *DB) Lookup(path, stage string) (Row, bool, error) {
	var (
		row   Row
		found bool
	)
	err := sqlitex.Execute(db.conn, "SELECT "+rowColumns+" FROM stat WHERE path = ? AND stage = ?", &sqlitex.ExecOptions{
		Args: []any{path, stage},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row = scanRow(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return Row{}, false, fmt.Errorf("cachedb: looking up %s: %w", path, err)
	}
	return row, found, nil
}

// Upsert inserts row, replacing any existing row with the same path and stage.
func (db *DB) Upsert(row Row) error {
	err := sqlitex.Execute(db.conn,
		"INSERT OR REPLACE INTO stat ("+rowColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{row.Stage, row.Path, row.Mtime, row.Size, row.SHA256, row.MD5, nullable(row.LastModified), nullable(row.ETag)},
		})
	if err != nil {
		return fmt.Errorf("cachedb: writing %s row for %s: %w", row.Stage, row.Path, err)
	}
	return nil
}

// Delete removes the row for path in stage, if any.
func (db *DB) Delete(path, stage string) error {
	err := sqlitex.Execute(db.conn, "DELETE FROM stat WHERE path = ? AND stage = ?", &sqlitex.ExecOptions{
		Args: []any{path, stage},
	})
	if err != nil {
		return fmt.Errorf("cachedb: deleting %s row for %s: %w", stage, path, err)
	}
	return nil
}

// Promote moves the row for path from stage fs to indexed.
func (db *DB) Promote(path string) error {
	err := sqlitex.Execute(db.conn,
		"UPDATE OR REPLACE stat SET stage = ? WHERE path = ? AND stage = ?",
		&sqlitex.ExecOptions{Args: []any{StageIndexed, path, StageFS}})
	if err != nil {
		return fmt.Errorf("cachedb: promoting %s: %w", path, err)
	}
	return nil
}

// ResetIndexed moves every indexed row back to stage fs in one statement.
// A path holding both stages keeps a single fs row carrying the indexed
// values. It returns the number of rows changed.
func (db *DB) ResetIndexed() (int, error) {
	err := sqlitex.Execute(db.conn,
		"UPDATE OR REPLACE stat SET stage = ? WHERE stage = ?",
		&sqlitex.ExecOptions{Args: []any{StageFS, StageIndexed}})
	if err != nil {
		return 0, fmt.Errorf("cachedb: resetting indexed rows: %w", err)
	}
	return db.conn.Changes(), nil
}

// CountStage returns how many rows are in stage.
func (db *DB) CountStage(stage string) (int, error) {
	var n int
	err := sqlitex.Execute(db.conn, "SELECT count(*) FROM stat WHERE stage = ?", &sqlitex.ExecOptions{
		Args: []any{stage},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("cachedb: counting %s rows: %w", stage, err)
	}
	return n, nil
}

// ErrNoDescriptor is returned by Descriptor when index_json has no entry.
var ErrNoDescriptor = errors.New("cachedb: no descriptor")

// Descriptor returns the stored info/index.json for path.
func (db *DB) Descriptor(path string) ([]byte, error) {
	var (
		data  []byte
		found bool
	)
	err := sqlitex.Execute(db.conn, "SELECT index_json FROM index_json WHERE path = ?", &sqlitex.ExecOptions{
		Args: []any{path},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = !stmt.ColumnIsNull(0)
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cachedb: reading descriptor for %s: %w", path, err)
	}
	if !found {
		return nil, fmt.Errorf("%w for %s", ErrNoDescriptor, path)
	}
	return data, nil
}

// PutDescriptor stores the info/index.json for path.
func (db *DB) PutDescriptor(path string, data []byte) error {
	err := sqlitex.Execute(db.conn, "INSERT OR REPLACE INTO index_json (path, index_json) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{path, data},
	})
	if err != nil {
		return fmt.Errorf("cachedb: writing descriptor for %s: %w", path, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
