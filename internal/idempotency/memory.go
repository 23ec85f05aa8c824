package idempotency

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRecord struct {
	commandName string
	result      []byte
	err         error
	done        chan struct{}
}

// MemoryStore is an in-process Store for tests and single-process runs.
// It reproduces the storage-layer semantics: the first claim on a request id
// wins, concurrent duplicates block until the winner finishes and then return
// the winner's result, and a failed execution releases the claim.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*memoryRecord)}
}

// Run implements Store.
func (s *MemoryStore) Run(ctx context.Context, requestID uuid.UUID, commandName string, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	for {
		s.mu.Lock()
		rec, exists := s.records[requestID]
		if !exists {
			rec = &memoryRecord{commandName: commandName, done: make(chan struct{})}
			s.records[requestID] = rec
			s.mu.Unlock()

			result, err := fn(ctx)

			s.mu.Lock()
			if err != nil {
				// Release the claim so the same request id stays retryable.
				delete(s.records, requestID)
			} else {
				rec.result = result
			}
			rec.err = err
			s.mu.Unlock()
			close(rec.done)

			return result, false, err
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-rec.done:
		}

		s.mu.Lock()
		result, err := rec.result, rec.err
		s.mu.Unlock()
		if err != nil {
			// The winner failed and released the claim; race for it again.
			continue
		}
		return result, true, nil
	}
}
