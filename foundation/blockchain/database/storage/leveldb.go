package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/syndtr/goleveldb/leveldb"
	ldb_iterator "github.com/syndtr/goleveldb/leveldb/iterator"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// blockPrefix is the key prefix for every block record. The block number
// follows as a big endian uint64 so keys sort in chain order.
var blockPrefix = []byte("B")

// LevelDB represents the serialization implementation for storing blocks
// in a leveldb database. This implements the database.Storage interface.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens or creates the leveldb database at the specified path.
func NewLevelDB(dbPath string) (*LevelDB, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	}

	db, err := leveldb.OpenFile(dbPath, opt)
	if err != nil {
		return nil, err
	}

	return &LevelDB{db: db}, nil
}

// Close closes the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Write stores the block under its number.
func (l *LevelDB) Write(block database.Block) error {
	if l.exists(block.Index) || block.Index > 0 && !l.exists(block.Index-1) {
		return fmt.Errorf("%w: blk[%d]", database.ErrBlockOutOfOrder, block.Index)
	}

	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	return l.db.Put(blockKey(block.Index), data, nil)
}

// GetBlock returns the block stored under the specified number.
func (l *LevelDB) GetBlock(num uint64) (database.Block, error) {
	data, err := l.db.Get(blockKey(num), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.Block{}, fmt.Errorf("%w: %d", database.ErrBlockNotFound, num)
		}
		return database.Block{}, err
	}

	var block database.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return database.Block{}, fmt.Errorf("decode blk[%d]: %w", num, err)
	}

	return block, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with the genesis block.
func (l *LevelDB) ForEach() database.Iterator {
	iter := l.db.NewIterator(ldb_util.BytesPrefix(blockPrefix), nil)
	return &levelDBIterator{iter: iter}
}

// Reset removes every block in a single batch.
func (l *LevelDB) Reset() error {
	batch := new(leveldb.Batch)

	iter := l.db.NewIterator(ldb_util.BytesPrefix(blockPrefix), nil)
	for iter.Next() {

		// Contents of the returned slice are only valid until the next
		// call to Next.
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	iter.Release()

	if err := iter.Error(); err != nil {
		return err
	}

	return l.db.Write(batch, nil)
}

// exists reports whether a block is stored under the number.
func (l *LevelDB) exists(num uint64) bool {
	ok, err := l.db.Has(blockKey(num), nil)
	return err == nil && ok
}

// blockKey forms the key for the specified block number.
func blockKey(num uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], num)
	return key
}

// =============================================================================

// levelDBIterator walks the block keys in order. This implements the
// database Iterator interface.
type levelDBIterator struct {
	iter ldb_iterator.Iterator
	eoc  bool
}

// Next decodes the next block in the database.
func (li *levelDBIterator) Next() (database.Block, error) {
	if li.eoc {
		return database.Block{}, ErrEndOfChain
	}

	if !li.iter.Next() {
		li.eoc = true
		err := li.iter.Error()
		li.iter.Release()

		if err != nil {
			return database.Block{}, err
		}
		return database.Block{}, ErrEndOfChain
	}

	var block database.Block
	if err := json.Unmarshal(li.iter.Value(), &block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// Done returns the end of chain value.
func (li *levelDBIterator) Done() bool {
	return li.eoc
}
