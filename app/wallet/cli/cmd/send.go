package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"github.com/spf13/cobra"
)

var (
	nodes     []string
	bootstrap string
	sender    string
	recipient string
	amount    float64
)

// sendCmd represents the send command.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transaction to one or more nodes",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringSliceVarP(&nodes, "node", "n", nil, "Address host:port of a node. Can be repeated.")
	sendCmd.Flags().StringVarP(&bootstrap, "bootstrap", "b", "", "Address of the bootstrap to learn the nodes from.")
	sendCmd.Flags().StringVarP(&sender, "sender", "s", "", "Sender of the transaction. Defaults to the account address.")
	sendCmd.Flags().StringVarP(&recipient, "recipient", "r", "", "Recipient of the transaction.")
	sendCmd.Flags().Float64VarP(&amount, "amount", "v", 0, "Amount to send.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	if sender == "" {
		address, err := accountAddress()
		if err != nil {
			return err
		}
		sender = address
	}

	tx := database.NewTx(sender, recipient, amount)
	if err := tx.Validate(); err != nil {
		return err
	}

	targets, err := sendTargets(cmd)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no nodes to send to: use --node or --bootstrap")
	}

	c := client()

	var sent int
	for _, pr := range targets {
		ctx, cancel := netContext(cmd)
		err := c.Send(ctx, pr.Addr(), wire.TypeTransaction, tx)
		cancel()

		if err != nil {
			fmt.Printf("Failed to send transaction to %s: %s\n", pr, err)
			continue
		}

		sent++
		fmt.Printf("Transaction %s sent to %s\n", tx, pr)
	}

	if sent == 0 {
		return errors.New("transaction was not delivered to any node")
	}

	return nil
}

func sendTargets(cmd *cobra.Command) ([]peer.Peer, error) {
	var targets []peer.Peer
	for _, n := range nodes {
		pr, err := peer.Parse(n)
		if err != nil {
			return nil, err
		}
		targets = append(targets, pr)
	}

	if len(targets) > 0 || bootstrap == "" {
		return targets, nil
	}

	return requestPeers(cmd, bootstrap)
}
