package cmd

import (
	"context"
	"fmt"

	"github.com/pigeonworks-llc/txn-ledger/pkg/db"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/pathutil"
	"github.com/spf13/cobra"
)

var offline bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display export and transaction statistics",
	Long: `Display statistics about exported and recorded transactions.

Shows:
- Total number of exported transactions and their date range
- Last export timestamp
- Transaction counts per status (skipped with --offline)

Example:
  ledger stats`,
	Run: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&offline, "offline", false, "Only read the export history, do not call the API")
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig([]string{"beancount", "root"})

	paths, err := pathutil.FromConfig(cfg.Beancount)
	exitOnError(err, "invalid configuration")

	logger.Debugw("opening database", "path", paths.DatabasePath())
	conn, err := db.Open(paths.DatabasePath())
	exitOnError(err, "failed to open database")
	defer conn.Close()

	printExportStats(db.NewExportHistory(conn))

	if offline {
		return
	}

	txns, err := newClient(cfg).ListTxns(context.Background(), nil)
	exitOnError(err, "failed to list transactions")

	counts := map[ledger.Status]int{}
	for _, txn := range txns {
		counts[txn.Status]++
	}

	fmt.Println("=== Transactions ===")
	fmt.Printf("SUCCESS: %d\n", counts[ledger.StatusSuccess])
	fmt.Printf("FAILED:  %d\n", counts[ledger.StatusFailed])
	fmt.Printf("PENDING: %d\n", counts[ledger.StatusPending])
	fmt.Println()
}

func printExportStats(history *db.ExportHistory) {
	stats, err := history.GetStats()
	exitOnError(err, "failed to get statistics")
	lastTo, err := history.GetMetadata(db.MetaLastExportTo)
	exitOnError(err, "failed to get metadata")

	fmt.Println("\n=== Export Statistics ===")
	fmt.Printf("Total exported:  %d\n", stats.TotalExported)
	if stats.FirstDate.Valid {
		fmt.Printf("Date range:      %s .. %s\n", stats.FirstDate.String, stats.LastDate.String)
	}
	if stats.LastExport.Valid {
		fmt.Printf("Last export:     %s\n", stats.LastExport.String)
	} else {
		fmt.Printf("Last export:     (never)\n")
	}
	if lastTo != "" {
		fmt.Printf("Exported up to:  %s\n", lastTo)
	}
	fmt.Println()
}
