package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pigeonworks-llc/txn-ledger/pkg/beancount"
	"github.com/pigeonworks-llc/txn-ledger/pkg/converter"
	"github.com/pigeonworks-llc/txn-ledger/pkg/db"
	"github.com/pigeonworks-llc/txn-ledger/pkg/export"
	"github.com/pigeonworks-llc/txn-ledger/pkg/pathutil"
	"github.com/spf13/cobra"
)

var (
	dateFrom string
	dateTo   string
	dryRun   bool
	reexport []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export SUCCESS transactions to Beancount",
	Long: `Export SUCCESS transactions from the ledger API to Beancount files.

This command:
1. Fetches SUCCESS transactions from the ledger API
2. Filters out already exported transactions
3. Converts them to Beancount format
4. Appends to monthly Beancount files
5. Records export history in SQLite

Example:
  ledger export --from 2024-01-01 --to 2024-01-31
  ledger export --from 2024-01-01 --to 2024-01-31 --dry-run
  ledger export --from 2024-01-01 --to 2024-01-31 --reexport <txn-id>`,
	Run: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&dateFrom, "from", "", "Start date (YYYY-MM-DD) (required)")
	exportCmd.Flags().StringVar(&dateTo, "to", "", "End date (YYYY-MM-DD) (required)")
	exportCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Dry run mode (no file writes)")

	exportCmd.Flags().StringSliceVar(&reexport, "reexport", nil, "Transaction id to export again even if already exported (repeatable)")

	_ = exportCmd.MarkFlagRequired("from")
	_ = exportCmd.MarkFlagRequired("to")
}

func runExport(cmd *cobra.Command, args []string) {
	from, err := export.ParseDate(dateFrom)
	exitOnError(err, "invalid --from")
	to, err := export.ParseDate(dateTo)
	exitOnError(err, "invalid --to")

	logger.Infow("starting export", "from", dateFrom, "to", dateTo, "dry_run", dryRun)

	cfg := loadConfig(
		[]string{"client", "apiUrl"},
		[]string{"beancount", "root"},
		[]string{"beancount", "mapping"},
	)

	paths, err := pathutil.FromConfig(cfg.Beancount)
	exitOnError(err, "invalid configuration")

	logger.Debugw("opening database", "path", paths.DatabasePath())
	conn, err := db.Open(paths.DatabasePath())
	exitOnError(err, "failed to open database")
	defer conn.Close()

	mapper, err := converter.NewMapper(cfg.Beancount.Mapping)
	exitOnError(err, "failed to load account mapping")

	history := db.NewExportHistory(conn)
	exporter := export.New(
		newClient(cfg),
		history,
		beancount.NewFileSystemRepository(paths),
		converter.NewConverter(mapper),
		paths,
		logger,
	)

	report, err := exporter.Run(context.Background(), export.Options{
		From:     from,
		To:       to,
		DryRun:   dryRun,
		Reexport: reexport,
		Out:      os.Stdout,
	})
	exitOnError(err, "export failed")

	if report.Exported == 0 {
		fmt.Println("No new transactions to export")
		return
	}
	if !dryRun {
		printExportStats(history)
	}
}
