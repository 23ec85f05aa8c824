package idempotency

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emezadev/ordering-sagas/internal/pkg/sqlitex"
)

// schema is applied once on startup. Rows are never mutated after the result
// is recorded and never deleted; created_at lets an external retention job
// trim old rows.
const schema = `
CREATE TABLE IF NOT EXISTS idempotent_requests (
    -- Client-supplied request id. The PRIMARY KEY is the uniqueness
    -- constraint the whole gate hangs on: a concurrent duplicate insert
    -- fails here and falls back to reading the winner's result.
    id            TEXT PRIMARY KEY,

    -- Name of the command the request guarded (diagnostics only).
    command_name  TEXT NOT NULL,

    -- JSON result of the first successful execution. NULL only while the
    -- claiming transaction is still open.
    result        BLOB,

    created_at    TEXT NOT NULL
);
`

// SQLiteStore implements Store on a SQLite database shared with the command's
// own writes, so the request record and the side effects commit atomically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore applies the schema and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("idempotency: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Run implements Store. The claim insert, the command's writes (joined via
// the transaction in the context) and the result update are one transaction:
// if fn fails everything rolls back and the request id stays unclaimed.
func (s *SQLiteStore) Run(ctx context.Context, requestID uuid.UUID, commandName string, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency: begin: %w", err)
	}

	const claim = `INSERT INTO idempotent_requests (id, command_name, result, created_at) VALUES (?, ?, NULL, ?)`
	if _, err := tx.ExecContext(ctx, claim, requestID.String(), commandName, sqlitex.FormatTime(time.Now())); err != nil {
		_ = tx.Rollback()
		// Either the id is already claimed or the insert genuinely failed;
		// a stored result for the id decides which.
		return s.awaitResult(ctx, requestID, err)
	}

	result, err := fn(sqlitex.WithTx(ctx, tx))
	if err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}
	if result == nil {
		// A committed NULL would be indistinguishable from an open claim
		// and leave awaitResult polling forever.
		result = []byte{}
	}

	const record = `UPDATE idempotent_requests SET result = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, record, result, requestID.String()); err != nil {
		_ = tx.Rollback()
		return nil, false, fmt.Errorf("idempotency: record result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("idempotency: commit: %w", err)
	}
	return result, false, nil
}

// awaitResult resolves an insert conflict: the first writer either commits a
// result we can return, or rolls back and frees the id again. insertErr is
// surfaced when the conflict turns out not to be a duplicate at all.
func (s *SQLiteStore) awaitResult(ctx context.Context, requestID uuid.UUID, insertErr error) ([]byte, bool, error) {
	const lookup = `SELECT result FROM idempotent_requests WHERE id = ?`

	for {
		var result []byte
		err := s.db.QueryRowContext(ctx, lookup, requestID.String()).Scan(&result)
		switch {
		case err == sql.ErrNoRows:
			// The first writer rolled back; the caller's insert error was a
			// transient conflict. Report it so the client can retry.
			return nil, false, fmt.Errorf("idempotency: claim request %s: %w", requestID, insertErr)
		case err != nil:
			return nil, false, fmt.Errorf("idempotency: read request %s: %w", requestID, err)
		case result != nil:
			return result, true, nil
		}

		// Claimed but not yet recorded: the first writer's transaction is
		// still open. Wait briefly and look again.
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}
