// Package cmd contains the wallet app commands.
package cmd

import (
	"context"
	"os"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	timeout     time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Deadline for each network call.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Thin client for the proof of work ledger",
}

// Execute runs the wallet command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func netContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func client() wire.Client {
	c := wire.DefaultClient
	c.IOTimeout = timeout
	return c
}
