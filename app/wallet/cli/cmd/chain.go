package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"github.com/spf13/cobra"
)

var (
	chainNode string
	verbose   bool
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the chain held by a node",
	RunE:  chainRun,
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.Flags().StringVarP(&chainNode, "node", "n", "", "Address host:port of the node.")
	chainCmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "Print every block as JSON.")
	chainCmd.MarkFlagRequired("node")
}

func chainRun(cmd *cobra.Command, args []string) error {
	pr, err := peer.Parse(chainNode)
	if err != nil {
		return err
	}

	ctx, cancel := netContext(cmd)
	defer cancel()

	var chain []database.Block
	if err := client().Request(ctx, pr.Addr(), wire.TypeChainRequest, nil, &chain); err != nil {
		return fmt.Errorf("requesting chain from %s: %w", pr, err)
	}

	if verbose {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(chain)
	}

	for _, block := range chain {
		fmt.Printf("%s prev[%s] txs[%d] difficulty[%d] nonce[%d]\n", block, block.PrevHash, len(block.Transactions), block.Difficulty, block.Nonce)
	}

	if err := database.ValidateChain(chain, func(string, ...any) {}); err != nil {
		fmt.Printf("chain is NOT valid: %s\n", err)
		return nil
	}
	fmt.Printf("chain is valid: blocks[%d]\n", len(chain))

	return nil
}
