package commands

import (
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// Transactions prints the transactions in the chain. When an address is
// provided only the transactions sent or received by it are printed.
func Transactions(address string, db *database.Database) error {
	fmt.Printf("Latest: %s\n\n", db.LatestBlock().Hash)

	var total float64
	for _, block := range db.Copy() {
		for _, tx := range block.Transactions {
			if address != "" && tx.Sender != address && tx.Recipient != address {
				continue
			}

			fmt.Printf("Block: %d  From: %s  To: %s  Amount: %v\n", block.Index, tx.Sender, tx.Recipient, tx.Amount)

			switch address {
			case tx.Recipient:
				total += tx.Amount
			case tx.Sender:
				total -= tx.Amount
			}
		}
	}

	if address != "" {
		fmt.Printf("\nNet for %s: %v\n", address, total)
	}

	return nil
}
