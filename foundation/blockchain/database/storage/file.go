package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// maxLineSize bounds the size of a single encoded block in the file.
const maxLineSize = 16 << 20

// File represents the serialization implementation for storing the chain
// in a single append only file with one JSON encoded block per line. This
// implements the database.Storage interface.
type File struct {
	mu     sync.Mutex
	dbPath string
	dbFile *os.File
	count  uint64
}

// NewFile opens or creates the file at the specified path.
func NewFile(dbPath string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	dbFile, err := os.OpenFile(dbPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	f := File{
		dbPath: dbPath,
		dbFile: dbFile,
	}

	// Count the blocks already on disk so writes can be checked for order.
	iter := f.ForEach()
	for _, err := iter.Next(); !iter.Done(); _, err = iter.Next() {
		if err != nil {
			dbFile.Close()
			return nil, err
		}
		f.count++
	}

	return &f, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.dbFile.Close()
}

// Write appends the block as a new line in the file.
func (f *File) Write(block database.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if block.Index != f.count {
		return fmt.Errorf("%w: got %d, exp %d", database.ErrBlockOutOfOrder, block.Index, f.count)
	}

	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	if _, err := f.dbFile.Write(append(data, '\n')); err != nil {
		return err
	}

	f.count++
	return nil
}

// GetBlock scans the file to locate the specified block by number.
func (f *File) GetBlock(num uint64) (database.Block, error) {
	iter := f.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return database.Block{}, err
		}
		if block.Index == num {
			return block, nil
		}
	}

	return database.Block{}, fmt.Errorf("%w: %d", database.ErrBlockNotFound, num)
}

// ForEach returns an iterator to walk through all the blocks
// starting with the genesis block.
func (f *File) ForEach() database.Iterator {
	rf, err := os.Open(f.dbPath)
	if err != nil {
		return &fileIterator{pending: err}
	}

	scanner := bufio.NewScanner(rf)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &fileIterator{file: rf, scanner: scanner}
}

// Reset truncates the file so the chain can be rewritten.
func (f *File) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.dbFile.Truncate(0); err != nil {
		return err
	}

	f.count = 0
	return nil
}

// =============================================================================

// fileIterator walks the lines of the file. This implements the database
// Iterator interface.
type fileIterator struct {
	file    *os.File
	scanner *bufio.Scanner
	pending error // Failure to report on the first call to Next.
	err     error
	eoc     bool
}

// Next decodes the next line of the file. A failure is reported once
// before the iterator reports it is done.
func (fi *fileIterator) Next() (database.Block, error) {
	if fi.eoc {
		return database.Block{}, ErrEndOfChain
	}

	if fi.pending != nil {
		fi.err, fi.pending = fi.pending, nil
		return database.Block{}, fi.err
	}

	if fi.err != nil {
		fi.eoc = true
		fi.close()
		return database.Block{}, ErrEndOfChain
	}

	if !fi.scanner.Scan() {
		if err := fi.scanner.Err(); err != nil {
			fi.err = err
			return database.Block{}, err
		}

		fi.eoc = true
		fi.close()
		return database.Block{}, ErrEndOfChain
	}

	var block database.Block
	if err := json.Unmarshal(fi.scanner.Bytes(), &block); err != nil {
		fi.err = err
		return database.Block{}, err
	}

	return block, nil
}

func (fi *fileIterator) close() {
	if fi.file != nil {
		fi.file.Close()
	}
}

// Done returns the end of chain value.
func (fi *fileIterator) Done() bool {
	return fi.eoc
}
