// Package database handles all the lower level support for maintaining the
// blockchain in storage and an in memory copy of the chain for fast access.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// Set of error variables for chain level validation.
var (
	ErrEmptyChain       = errors.New("chain is empty")
	ErrInvalidGenesis   = errors.New("genesis block is not well formed")
	ErrGenesisMismatch  = errors.New("genesis block does not match this network")
	ErrBlockOutOfOrder  = errors.New("block is out of order")
	ErrBlockNotFound    = errors.New("block does not exist")
	ErrChainNotStronger = errors.New("chain is not longer than the current chain")
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(block Block) error
	GetBlock(num uint64) (Block, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (Block, error)
	Done() bool
}

// =============================================================================

// Database manages the chain of blocks for the node.
type Database struct {
	mu sync.RWMutex

	genesis genesis.Genesis
	blocks  []Block

	storage Storage
}

// New constructs a new database and reads the blockchain from storage. When
// storage is empty the genesis block is written.
func New(gen genesis.Genesis, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis: gen,
		storage: storage,
	}

	genesisBlock := NewGenesisBlock(gen)

	// Read all the blocks from storage.
	var blocks []Block
	iter := storage.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	if len(blocks) == 0 {
		evHandler("database: New: writing genesis block: %s", genesisBlock)

		if err := storage.Write(genesisBlock); err != nil {
			return nil, fmt.Errorf("writing genesis: %w", err)
		}
		db.blocks = []Block{genesisBlock}

		return &db, nil
	}

	if blocks[0].Hash != genesisBlock.Hash {
		return nil, fmt.Errorf("%w: got %s, exp %s", ErrGenesisMismatch, blocks[0].Hash, genesisBlock.Hash)
	}

	if err := ValidateChain(blocks, evHandler); err != nil {
		return nil, fmt.Errorf("stored chain: %w", err)
	}

	evHandler("database: New: loaded chain: blocks[%d]", len(blocks))

	db.blocks = blocks
	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Genesis returns the genesis information the chain was built from.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// GenesisBlock returns the first block of the chain.
func (db *Database) GenesisBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[0].Copy()
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1].Copy()
}

// Len returns the number of blocks in the chain, genesis included.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// Copy returns a copy of the full chain.
func (db *Database) Copy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return copyBlocks(db.blocks)
}

// GetBlock returns the block at the specified index.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("%w: %d", ErrBlockNotFound, num)
	}

	return db.blocks[num].Copy(), nil
}

// Append writes the block to storage and adds it to the end of the chain.
// The caller is expected to have validated the block.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if block.Index != uint64(len(db.blocks)) {
		return fmt.Errorf("%w: got %d, exp %d", ErrBlockOutOfOrder, block.Index, len(db.blocks))
	}

	if err := db.storage.Write(block); err != nil {
		return err
	}

	db.blocks = append(db.blocks, block.Copy())
	return nil
}

// Replace swaps the current chain for the specified chain. The chain must be
// strictly longer than the current chain, start from the same genesis block
// and be valid end to end.
func (db *Database) Replace(chain []Block, evHandler func(v string, args ...any)) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(chain) <= len(db.blocks) {
		return fmt.Errorf("%w: got %d, have %d", ErrChainNotStronger, len(chain), len(db.blocks))
	}

	if chain[0].Hash != db.blocks[0].Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrGenesisMismatch, chain[0].Hash, db.blocks[0].Hash)
	}

	if err := ValidateChain(chain, evHandler); err != nil {
		return err
	}

	if err := db.rewrite(chain); err != nil {

		// Storage must keep matching the chain held in memory.
		if rerr := db.rewrite(db.blocks); rerr != nil {
			evHandler("database: Replace: ERROR: restore previous chain: %s", rerr)
			return fmt.Errorf("%w: restore: %v", err, rerr)
		}

		return err
	}

	db.blocks = copyBlocks(chain)
	return nil
}

// rewrite resets the storage and writes the chain from genesis.
func (db *Database) rewrite(chain []Block) error {
	if err := db.storage.Reset(); err != nil {
		return fmt.Errorf("reset storage: %w", err)
	}

	for _, block := range chain {
		if err := db.storage.Write(block); err != nil {
			return fmt.Errorf("write blk[%d]: %w", block.Index, err)
		}
	}

	return nil
}

// =============================================================================

// ValidateChain walks the chain and validates every block against its
// predecessor. The first block must be a well formed genesis block.
func ValidateChain(chain []Block, evHandler func(v string, args ...any)) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}

	root := chain[0]
	if root.Index != 0 || root.PrevHash != GenesisPrevHash || root.Hash != root.CalculateHash() {
		return fmt.Errorf("%w: %s", ErrInvalidGenesis, root)
	}

	for i := 1; i < len(chain); i++ {
		if chain[i].Index != chain[i-1].Index+1 {
			return fmt.Errorf("%w: got %d, exp %d", ErrBlockOutOfOrder, chain[i].Index, chain[i-1].Index+1)
		}

		if err := chain[i].ValidateBlock(chain[i-1], evHandler); err != nil {
			return fmt.Errorf("blk[%d]: %w", chain[i].Index, err)
		}
	}

	return nil
}

// copyBlocks returns a deep copy of the blocks.
func copyBlocks(blocks []Block) []Block {
	cpy := make([]Block, len(blocks))
	for i, block := range blocks {
		cpy[i] = block.Copy()
	}
	return cpy
}
