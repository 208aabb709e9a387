package cmd

import (
	"fmt"

	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the address for the specific wallet",
	RunE:  accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	address, err := accountAddress()
	if err != nil {
		return err
	}

	fmt.Println(address)
	return nil
}

func accountAddress() (string, error) {
	privateKey, err := nameservice.LoadOrCreateKey(accountPath, accountName)
	if err != nil {
		return "", err
	}

	return nameservice.Address(privateKey), nil
}
