package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Take a snapshot of what is needed to build the candidate. The lock is
	// not held while the POW runs.
	s.mu.Lock()
	trans := s.mempool.Copy()
	prevBlock := s.db.LatestBlock()
	difficulty := s.difficulty
	s.mu.Unlock()

	// Are there enough transactions in the pool.
	if len(trans) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		MinerAddress: s.minerAddress,
		Difficulty:   difficulty,
		MiningReward: s.genesis.MiningReward,
		PrevBlock:    prevBlock,
		Trans:        trans,
		Now:          time.Now(),
		EvHandler:    s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	// Validate the block and then update the blockchain database. If a peer
	// block was accepted in the meantime this fails on the previous hash.
	if err := s.AppendBlock(block); err != nil {
		return database.Block{}, err
	}

	s.seen.markBlock(block)

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain. A block seen
// before returns ErrSeen.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.PrevHash, block.Hash, len(block.Transactions))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash)

	// Only a block whose hash matches its contents is remembered, so a
	// forged copy carrying a real hash cannot shadow the real block.
	if block.Hash == block.CalculateHash() && !s.seen.markBlock(block) {
		return ErrSeen
	}

	if err := s.AppendBlock(block); err != nil {

		// The peer is ahead of us. Ask the network for its chain.
		if errors.Is(err, database.ErrPreviousHashMismatch) && block.Index > s.RetrieveLatestBlock().Index {
			s.evHandler("state: ProcessProposedBlock: blk[%d] is ahead of the local chain: signal sync", block.Index)
			s.seen.forgetBlock(block)
			s.Worker.SignalSync()
		}

		return err
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called.
	done := s.Worker.SignalCancelMining()
	s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
	done()

	s.Worker.SignalShareBlock(block)

	return nil
}

// AppendBlock validates the block against the latest block and when it
// passes, writes it to the chain, removes the transactions it carries from
// the mempool and retargets the difficulty. Validation and the write happen
// under the same lock.
func (s *State) AppendBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: AppendBlock: validate block")

	if err := block.ValidateBlock(s.db.LatestBlock(), s.evHandler); err != nil {
		return fmt.Errorf("blk[%d]: %w", block.Index, err)
	}

	s.evHandler("state: AppendBlock: write to storage")

	if err := s.db.Append(block); err != nil {
		return err
	}

	// Transactions accepted while the block was being mined stay pending.
	n := s.mempool.Remove(block.Transactions)
	s.evHandler("state: AppendBlock: removed from mempool: Txs[%d]", n)

	prev := s.difficulty
	s.difficulty = s.controller.Retarget(s.db.Copy(), s.difficulty)
	if s.difficulty != prev {
		s.evHandler("state: AppendBlock: difficulty retarget: from[%d] to[%d]", prev, s.difficulty)
	}

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// =============================================================================

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"block":%s}`, block.Hash, string(blockJSON))
}
