// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// ErrHelp provides context that help was given.
var ErrHelp = errors.New("provided help")

// Genesis writes the default genesis file unless one already exists.
func Genesis(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("genesis file %s already exists", path)
	}

	data, err := json.MarshalIndent(genesis.Default(), "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	fmt.Printf("genesis written to %s\n", path)
	return nil
}

// Chain prints every block in the chain.
func Chain(db *database.Database) error {
	for _, block := range db.Copy() {
		fmt.Printf("%s prev[%s] difficulty[%d] nonce[%d] miner[%s]\n", block, block.PrevHash, block.Difficulty, block.Nonce, block.MinerAddress)
		for _, tx := range block.Transactions {
			fmt.Printf("    %s\n", tx)
		}
	}

	return nil
}

// Verify validates the chain from the genesis block to the tip.
func Verify(db *database.Database) error {
	chain := db.Copy()
	if err := database.ValidateChain(chain, func(string, ...any) {}); err != nil {
		return err
	}

	fmt.Printf("chain is valid: blocks[%d] latest[%s]\n", len(chain), db.LatestBlock().Hash)
	return nil
}
