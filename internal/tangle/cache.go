package tangle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// cacheEntry holds the transactions fetched for one address.
type cacheEntry struct {
	txs       []Transaction
	expiresAt time.Time
}

func (e *cacheEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// CachedFetcher is a thread-safe TTL cache in front of a Fetcher. Errors are
// never cached. A background goroutine started with StartEviction removes
// stale entries.
type CachedFetcher struct {
	next   Fetcher
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// NewCachedFetcher wraps next with a cache whose entries live for ttl.
func NewCachedFetcher(next Fetcher, ttl time.Duration, logger *zap.Logger) *CachedFetcher {
	return &CachedFetcher{
		next:    next,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]*cacheEntry),
	}
}

// FindByAddress implements Fetcher.
func (c *CachedFetcher) FindByAddress(ctx context.Context, address string) ([]Transaction, error) {
	if txs, ok := c.get(address); ok {
		c.logger.Debug("cache hit", zap.String("address", address))
		return txs, nil
	}
	txs, err := c.next.FindByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	c.set(address, txs)
	return clone(txs), nil
}

// Invalidate drops the cached batch for address. Publishers call it after
// attaching new transactions.
func (c *CachedFetcher) Invalidate(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, address)
}

// StartEviction removes expired entries every interval until ctx is done.
func (c *CachedFetcher) StartEviction(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.evict(); n > 0 {
					c.logger.Debug("evicted stale cache entries", zap.Int("count", n))
				}
			}
		}
	}()
}

// Len returns the number of cached addresses (including expired).
func (c *CachedFetcher) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CachedFetcher) get(address string) ([]Transaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[address]
	if !ok || e.expired() {
		return nil, false
	}
	return clone(e.txs), true
}

func (c *CachedFetcher) set(address string, txs []Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = &cacheEntry{
		txs:       clone(txs),
		expiresAt: time.Now().Add(c.ttl),
	}
}

// evict removes all expired entries.
func (c *CachedFetcher) evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.expired() {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// clone copies a batch so callers never share the cached slice.
func clone(txs []Transaction) []Transaction {
	if txs == nil {
		return nil
	}
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}
