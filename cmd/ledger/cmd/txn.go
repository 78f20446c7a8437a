package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pigeonworks-llc/txn-ledger/pkg/client"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	idempotencyKey string
	statusFilter   string
	entryFlags     []string
)

var debitCmd = &cobra.Command{
	Use:   "debit <accountNum> <amount>",
	Short: "Take an amount out of an account",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		amount := parseAmount(args[1])
		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		printTxn(c.Debit(context.Background(), args[0], amount, client.WithIdempotencyKey(idempotencyKey)))
	},
}

var creditCmd = &cobra.Command{
	Use:   "credit <accountNum> <amount>",
	Short: "Add an amount to an account",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		amount := parseAmount(args[1])
		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		printTxn(c.Credit(context.Background(), args[0], amount, client.WithIdempotencyKey(idempotencyKey)))
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <from> <to> <amount>",
	Short: "Move an amount between two accounts",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		amount := parseAmount(args[2])
		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		printTxn(c.Transfer(context.Background(), args[0], args[1], amount, client.WithIdempotencyKey(idempotencyKey)))
	},
}

var txnCmd = &cobra.Command{
	Use:   "txn",
	Short: "Submit and inspect transaction records",
}

var txnSubmitCmd = &cobra.Command{
	Use:   "submit --entry <accountNum>=<amount> ...",
	Short: "Execute several signed entries as one transaction",
	Long: `Execute several signed entries as one transaction. Entries are applied in
the order given; negative amounts debit.

Example:
  ledger txn submit --entry A-1=-50 --entry A-2=30 --entry A-3=20`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		entries := make([]ledger.TxnEntry, 0, len(entryFlags))
		for _, raw := range entryFlags {
			acct, amount, ok := strings.Cut(raw, "=")
			if !ok || acct == "" {
				exitOnError(fmt.Errorf("want <accountNum>=<amount>, got %q", raw), "invalid entry")
			}
			d, err := decimal.NewFromString(amount)
			exitOnError(err, "invalid entry amount")
			entries = append(entries, ledger.TxnEntry{AccountNum: acct, Amount: d})
		}

		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		printTxn(c.SubmitEntries(context.Background(), entries, client.WithIdempotencyKey(idempotencyKey)))
	},
}

var txnGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a transaction record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		txn, err := c.GetTxn(context.Background(), args[0])
		exitOnError(err, "failed to get transaction")
		printJSON(txn)
	},
}

var txnListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transaction records",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var status *ledger.Status
		if statusFilter != "" {
			s := ledger.Status(strings.ToUpper(statusFilter))
			if !s.Valid() {
				exitOnError(fmt.Errorf("unknown status %q", statusFilter), "invalid --status")
			}
			status = &s
		}

		c := newClient(loadConfig([]string{"client", "apiUrl"}))
		txns, err := c.ListTxns(context.Background(), status)
		exitOnError(err, "failed to list transactions")
		printJSON(txns)
	},
}

func init() {
	for _, c := range []*cobra.Command{debitCmd, creditCmd, transferCmd, txnSubmitCmd} {
		c.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key sent with the request")
	}
	txnSubmitCmd.Flags().StringArrayVar(&entryFlags, "entry", nil, "Entry as <accountNum>=<amount> (repeatable)")
	_ = txnSubmitCmd.MarkFlagRequired("entry")
	txnListCmd.Flags().StringVar(&statusFilter, "status", "", "Only PENDING, SUCCESS or FAILED records")

	txnCmd.AddCommand(txnSubmitCmd, txnGetCmd, txnListCmd)
}

func parseAmount(s string) decimal.Decimal {
	amount, err := decimal.NewFromString(s)
	exitOnError(err, "invalid amount")
	if amount.IsNegative() {
		exitOnError(fmt.Errorf("%s is negative", s), "invalid amount")
	}
	return amount
}

// printTxn prints the record returned by a write. A FAILED record is printed
// before the command exits with the failure.
func printTxn(txn *ledger.Txn, err error) {
	if txn != nil {
		printJSON(txn)
	}
	exitOnError(err, "transaction not executed")
}
