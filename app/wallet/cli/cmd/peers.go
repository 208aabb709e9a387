package cmd

import (
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"github.com/spf13/cobra"
)

var peersBootstrap string

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List the nodes registered with the bootstrap",
	RunE:  peersRun,
}

func init() {
	rootCmd.AddCommand(peersCmd)
	peersCmd.Flags().StringVarP(&peersBootstrap, "bootstrap", "b", "127.0.0.1:4000", "Address of the bootstrap.")
}

func peersRun(cmd *cobra.Command, args []string) error {
	peers, err := requestPeers(cmd, peersBootstrap)
	if err != nil {
		return err
	}

	for _, pr := range peers {
		fmt.Println(pr)
	}

	return nil
}

func requestPeers(cmd *cobra.Command, addr string) ([]peer.Peer, error) {
	bs, err := peer.Parse(addr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := netContext(cmd)
	defer cancel()

	var peers []peer.Peer
	if err := client().Request(ctx, bs.Addr(), wire.TypeGetPeers, nil, &peers); err != nil {
		return nil, fmt.Errorf("requesting peers from %s: %w", bs, err)
	}

	return peers, nil
}
