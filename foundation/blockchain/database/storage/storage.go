package storage

import (
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// Set of storage kinds a node can be configured with.
const (
	KindMemory  = "memory"
	KindDisk    = "disk"
	KindFile    = "file"
	KindLevelDB = "leveldb"
)

// Open constructs the storage of the specified kind rooted at path. The
// path is ignored for memory storage.
func Open(kind string, path string) (database.Storage, error) {
	switch kind {
	case KindMemory, "":
		return NewMemory(), nil

	case KindDisk:
		return NewDisk(path)

	case KindFile:
		return NewFile(path)

	case KindLevelDB:
		return NewLevelDB(path)
	}

	return nil, fmt.Errorf("unknown storage kind %q", kind)
}
