package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	cache "github.com/patrickmn/go-cache"
)

// ErrSeen is returned when a transaction or block has already been
// processed within the seen window.
var ErrSeen = errors.New("already seen")

// DefaultSeenWindow is how long a message is remembered when no window is
// configured.
const DefaultSeenWindow = 10 * time.Minute

// seen remembers the transactions and blocks this node has processed so a
// gossiped message is only acted on and forwarded once.
type seen struct {
	cache *cache.Cache
}

func newSeen(window time.Duration) *seen {
	if window <= 0 {
		window = DefaultSeenWindow
	}

	return &seen{
		cache: cache.New(window, 2*window),
	}
}

// markTx records the transaction and reports false if it was already known.
func (s *seen) markTx(tx database.Tx) bool {
	sum := sha256.Sum256([]byte(tx.String()))
	return s.cache.Add("tx:"+hex.EncodeToString(sum[:]), struct{}{}, cache.DefaultExpiration) == nil
}

// markBlock records the block and reports false if it was already known.
func (s *seen) markBlock(block database.Block) bool {
	return s.cache.Add("blk:"+block.Hash, struct{}{}, cache.DefaultExpiration) == nil
}

// forgetBlock removes the block so it can be processed again.
func (s *seen) forgetBlock(block database.Block) {
	s.cache.Delete("blk:" + block.Hash)
}
