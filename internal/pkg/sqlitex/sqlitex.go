// Package sqlitex holds the shared SQLite plumbing: opening a database with
// the right pragmas, passing a transaction through a context, and the
// timestamp encoding used across tables.
//
// We use modernc.org/sqlite instead of mattn/go-sqlite3 to avoid CGO
// requirements, making it easier to build and run in Docker (Alpine).
package sqlitex

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Register the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the SQLite database at the given path. WAL mode is
// enabled so readers never block writers; busy_timeout waits for locks
// instead of failing immediately.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3" for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection; this also
	// serialises racing transactions instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return db, nil
}

type txKey struct{}

// WithTx returns a context carrying tx, so repositories called inside a
// transactional unit of work join it instead of opening their own.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// From returns the transaction carried by ctx, or db when there is none.
func From(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// FormatTime encodes a timestamp as the RFC3339 TEXT stored in SQLite.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999999Z")
}

// ParseTime decodes the timestamp strings stored in SQLite.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
