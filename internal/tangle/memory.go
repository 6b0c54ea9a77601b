package tangle

import (
	"context"
	"sync"
	"time"
)

// MemoryTangle is an in-memory, thread-safe Client implementation.
// It is primarily useful for testing and for single-process deployments
// that do not require durable persistence across restarts.
type MemoryTangle struct {
	mu        sync.RWMutex
	txs       []*Transaction
	byHash    map[string]*Transaction
	byAddress map[string][]*Transaction
}

// NewMemoryTangle creates an empty MemoryTangle.
func NewMemoryTangle() *MemoryTangle {
	return &MemoryTangle{
		byHash:    make(map[string]*Transaction),
		byAddress: make(map[string][]*Transaction),
	}
}

// Submit implements Submitter.
func (m *MemoryTangle) Submit(_ context.Context, address, payload string) (*Transaction, error) {
	if err := validateSubmit(address, payload); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	payload = normalizePayload(payload)
	tx := &Transaction{
		Hash:       hashTransaction(address, payload, uint64(len(m.txs))),
		Address:    address,
		Payload:    payload,
		AttachedAt: time.Now().UTC(),
	}
	m.txs = append(m.txs, tx)
	m.byHash[tx.Hash] = tx
	m.byAddress[address] = append(m.byAddress[address], tx)

	out := *tx
	return &out, nil
}

// Insert stores a transaction verbatim, trusting its hash. Tests use it to
// stage adversarial batches that a well-behaved publisher would never attach.
func (m *MemoryTangle) Insert(tx Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := tx
	m.txs = append(m.txs, &stored)
	m.byHash[stored.Hash] = &stored
	m.byAddress[stored.Address] = append(m.byAddress[stored.Address], &stored)
}

// FindByAddress implements Fetcher. Transactions are returned in attach order.
func (m *MemoryTangle) FindByAddress(_ context.Context, address string) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.byAddress[address]
	out := make([]Transaction, 0, len(stored))
	for _, tx := range stored {
		out = append(out, *tx)
	}
	return out, nil
}

// Get returns the transaction with the given hash.
func (m *MemoryTangle) Get(_ context.Context, hash string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	out := *tx
	return &out, nil
}

// Len returns the total number of attached transactions.
func (m *MemoryTangle) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs), nil
}

// Ping always succeeds; the store lives in process.
func (m *MemoryTangle) Ping(_ context.Context) error { return nil }
