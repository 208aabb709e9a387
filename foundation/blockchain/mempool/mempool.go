// Package mempool maintains the pending transactions waiting to be mined.
package mempool

import (
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// Mempool represents the pending pool of transactions kept in the order
// they were accepted.
type Mempool struct {
	mu   sync.RWMutex
	pool []database.Tx
}

// New constructs a new empty mempool.
func New() *Mempool {
	return &Mempool{}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add appends a transaction to the end of the pool and returns the new
// size of the pool. Validation is the caller's job.
func (mp *Mempool) Add(tx database.Tx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = append(mp.pool, tx)

	return len(mp.pool)
}

// Copy returns the transactions in insertion order.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return append([]database.Tx(nil), mp.pool...)
}

// Remove drops the first pending match for each of the transactions, keeping
// the order of what is left, and returns the number removed.
func (mp *Mempool) Remove(txs []database.Tx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	pending := make(map[database.Tx]int, len(txs))
	for _, tx := range txs {
		pending[tx]++
	}

	var removed int
	pool := mp.pool[:0]
	for _, tx := range mp.pool {
		if pending[tx] > 0 {
			pending[tx]--
			removed++
			continue
		}
		pool = append(pool, tx)
	}

	// Release the references held past the new end.
	clear(mp.pool[len(pool):])
	mp.pool = pool

	return removed
}
