package idempotency

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emezadev/ordering-sagas/internal/pkg/sqlitex"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sqlitex.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE side_effects (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	return store
}

func TestSQLiteStoreRun(t *testing.T) {
	ctx := context.Background()

	t.Run("records and returns the result", func(t *testing.T) {
		store := newSQLiteStore(t)

		result, replayed, err := store.Run(ctx, uuid.New(), "create_order", func(context.Context) ([]byte, error) {
			return []byte(`{"ok":true}`), nil
		})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, []byte(`{"ok":true}`), result)
	})

	t.Run("duplicate id replays without executing", func(t *testing.T) {
		store := newSQLiteStore(t)
		requestID := uuid.New()

		_, _, err := store.Run(ctx, requestID, "create_order", func(context.Context) ([]byte, error) {
			return []byte(`"first"`), nil
		})
		require.NoError(t, err)

		result, replayed, err := store.Run(ctx, requestID, "create_order", func(context.Context) ([]byte, error) {
			t.Error("duplicate must not execute")
			return nil, nil
		})
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, []byte(`"first"`), result)
	})

	t.Run("nil result replays as an empty one", func(t *testing.T) {
		store := newSQLiteStore(t)
		requestID := uuid.New()

		result, replayed, err := store.Run(ctx, requestID, "noop", func(context.Context) ([]byte, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Empty(t, result)

		// The duplicate must see a recorded result, not an open claim.
		result, replayed, err = store.Run(ctx, requestID, "noop", func(context.Context) ([]byte, error) {
			t.Error("duplicate must not execute")
			return nil, nil
		})
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Empty(t, result)
	})

	t.Run("failed execution rolls everything back", func(t *testing.T) {
		store := newSQLiteStore(t)
		requestID := uuid.New()
		boom := errors.New("downstream failed")

		_, _, err := store.Run(ctx, requestID, "create_order", func(ctx context.Context) ([]byte, error) {
			// A write joined to the claiming transaction must vanish with it.
			_, err := sqlitex.From(ctx, store.db).ExecContext(ctx, `INSERT INTO side_effects (id) VALUES ('a')`)
			require.NoError(t, err)
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		var count int
		require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM side_effects`).Scan(&count))
		assert.Equal(t, 0, count)

		// The id is unclaimed again: a retry executes and commits.
		result, replayed, err := store.Run(ctx, requestID, "create_order", func(ctx context.Context) ([]byte, error) {
			_, err := sqlitex.From(ctx, store.db).ExecContext(ctx, `INSERT INTO side_effects (id) VALUES ('a')`)
			require.NoError(t, err)
			return []byte(`"retried"`), nil
		})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, []byte(`"retried"`), result)

		require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM side_effects`).Scan(&count))
		assert.Equal(t, 1, count)
	})
}

func TestSQLiteStoreConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	requestID := uuid.New()

	var executions int32
	const workers = 16

	var wg sync.WaitGroup
	results := make([][]byte, workers)
	replays := make([]bool, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], replays[i], errs[i] = store.Run(ctx, requestID, "create_order", func(context.Context) ([]byte, error) {
				atomic.AddInt32(&executions, 1)
				// Hold the claiming transaction open so the duplicates pile
				// up on the primary-key conflict.
				time.Sleep(20 * time.Millisecond)
				return []byte(`"winner"`), nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), executions)
	winners := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte(`"winner"`), results[i])
		if !replays[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
