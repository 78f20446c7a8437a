package cmd

import (
	"context"
	"fmt"

	"github.com/pigeonworks-llc/txn-ledger/pkg/client"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/seed"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Open the accounts listed in a yaml fixture",
	Long: `Open the accounts listed in a yaml fixture. Accounts that already exist are
skipped, so the same fixture can be applied repeatedly.

Example:
  ledger seed config/accounts.example.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fixture, err := seed.Load(args[0])
		exitOnError(err, "failed to load fixture")

		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		res, err := seed.Apply(context.Background(), c, fixture, func(err error) bool {
			return client.IsReason(err, ledger.ReasonDuplicateAccount)
		})
		if res != nil {
			for _, num := range res.Created {
				logger.Infow("account created", "account_num", num)
			}
			for _, num := range res.Skipped {
				logger.Debugw("account exists, skipped", "account_num", num)
			}
		}
		exitOnError(err, "failed to seed accounts")

		fmt.Printf("Created %d accounts, skipped %d existing\n", len(res.Created), len(res.Skipped))
	},
}
