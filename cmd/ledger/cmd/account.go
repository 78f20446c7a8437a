package cmd

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var openingBalance string

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Open and inspect accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create <accountNum>",
	Short: "Open an account",
	Long: `Open an account with an optional opening balance.

Example:
  ledger account create A-1 --balance 100.00`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		balance, err := decimal.NewFromString(openingBalance)
		exitOnError(err, "invalid balance")

		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		account, err := c.CreateAccount(context.Background(), args[0], balance)
		exitOnError(err, "failed to create account")
		printJSON(account)
	},
}

var accountGetCmd = &cobra.Command{
	Use:   "get <accountNum>",
	Short: "Show an account and its balance",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		account, err := c.GetAccount(context.Background(), args[0])
		exitOnError(err, "failed to get account")
		printJSON(account)
	},
}

func init() {
	accountCreateCmd.Flags().StringVar(&openingBalance, "balance", "0", "Opening balance")

	accountCmd.AddCommand(accountCreateCmd, accountGetCmd)
}
