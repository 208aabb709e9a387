package state

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// ReplaceChain adopts the candidate chain when it is strictly longer than
// the local chain and valid end to end. Otherwise nothing changes and false
// is returned. The mempool is left alone.
func (s *State) ReplaceChain(chain []database.Block) bool {
	s.evHandler("state: ReplaceChain: started: candidate[%d]", len(chain))
	defer s.evHandler("state: ReplaceChain: completed")

	if !s.replaceChain(chain) {
		return false
	}

	// Any block being mined was built on the old chain.
	done := s.Worker.SignalCancelMining()
	done()

	return true
}

// IsChainValid reports whether every block in the chain links to the one
// before it with a correct and solved hash.
func (s *State) IsChainValid(chain []database.Block) bool {
	return database.ValidateChain(chain, s.evHandler) == nil
}

// =============================================================================

func (s *State) replaceChain(chain []database.Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Replace(chain, s.evHandler); err != nil {
		s.evHandler("state: ReplaceChain: rejected: %s", err)
		return false
	}

	s.difficulty = s.controller.Replay(chain, s.genesis.Difficulty)

	latest := chain[len(chain)-1]
	s.evHandler("state: ReplaceChain: accepted: latest[%s]: difficulty[%d]", latest, s.difficulty)
	s.blockEvent(latest)

	return true
}
