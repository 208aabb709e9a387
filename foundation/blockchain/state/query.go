package state

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryChainLength returns the number of blocks in the chain, genesis included.
func (s *State) QueryChainLength() int {
	return s.db.Len()
}

// QueryBlockByIndex returns the block at the specified index.
func (s *State) QueryBlockByIndex(index uint64) (database.Block, error) {
	return s.db.GetBlock(index)
}

// QueryBlocksByAddress returns the set of blocks holding a transaction sent
// or received by the address, or mined by it. If the address is empty, all
// blocks are returned.
func (s *State) QueryBlocksByAddress(address string) []database.Block {
	chain := s.db.Copy()
	if address == "" {
		return chain
	}

	var out []database.Block
	for _, block := range chain {
		if block.MinerAddress == address {
			out = append(out, block)
			continue
		}

		for _, tx := range block.Transactions {
			if tx.Sender == address || tx.Recipient == address {
				out = append(out, block)
				break
			}
		}
	}

	return out
}
