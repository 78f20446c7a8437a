// Package export appends SUCCESS ledger transactions to monthly Beancount
// files and remembers what it exported.
package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/pkg/beancount"
	"github.com/pigeonworks-llc/txn-ledger/pkg/converter"
	"github.com/pigeonworks-llc/txn-ledger/pkg/db"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/pathutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DateLayout is the layout of the From and To flags.
const DateLayout = "2006-01-02"

// TxnLister lists transaction records. The API client satisfies it.
type TxnLister interface {
	ListTxns(ctx context.Context, status *ledger.Status) ([]*ledger.Txn, error)
}

// Options selects what to export. From and To are inclusive calendar days
// in UTC.
type Options struct {
	From   time.Time
	To     time.Time
	DryRun bool
	// Reexport lists transaction ids whose export history is dropped before
	// the run, so they are appended again. Dry runs leave the history intact.
	Reexport []string
	// Out receives the formatted transactions in dry-run mode.
	Out io.Writer
}

// Report summarizes an export run.
type Report struct {
	Fetched  int
	Skipped  int
	Empty    int
	Exported int
	Files    []string
}

// Exporter wires the lister, converter, Beancount repository and history.
type Exporter struct {
	lister    TxnLister
	history   *db.ExportHistory
	repo      beancount.Repository
	converter *converter.Converter
	paths     *pathutil.PathResolver
	logger    *zap.SugaredLogger
}

// New creates an Exporter.
func New(lister TxnLister, history *db.ExportHistory, repo beancount.Repository, conv *converter.Converter, paths *pathutil.PathResolver, logger *zap.SugaredLogger) *Exporter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Exporter{
		lister:    lister,
		history:   history,
		repo:      repo,
		converter: conv,
		paths:     paths,
		logger:    logger,
	}
}

// ParseDate parses a YYYY-MM-DD flag value as a UTC day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Run exports the SUCCESS transactions dated within the range that were not
// exported before. Transactions are appended in date order, grouped by month.
func (e *Exporter) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.To.Before(opts.From) {
		return nil, fmt.Errorf("--to %s is before --from %s", opts.To.Format(DateLayout), opts.From.Format(DateLayout))
	}
	if opts.DryRun && opts.Out == nil {
		opts.Out = io.Discard
	}

	success := ledger.StatusSuccess
	all, err := e.lister.ListTxns(ctx, &success)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	exported, err := e.history.GetExportedIDs()
	if err != nil {
		return nil, err
	}
	if err := e.forget(opts, exported); err != nil {
		return nil, err
	}

	report := &Report{}
	end := opts.To.AddDate(0, 0, 1)
	byMonth := make(map[string][]*ledger.Txn)
	for _, txn := range all {
		date := txn.TransactionDate.UTC()
		if date.Before(opts.From) || !date.Before(end) {
			continue
		}
		report.Fetched++
		if exported[txn.ID] {
			report.Skipped++
			continue
		}
		month := pathutil.YearMonth(date)
		byMonth[month] = append(byMonth[month], txn)
	}

	e.logger.Infow("transactions to export",
		"fetched", report.Fetched,
		"skipped", report.Skipped,
	)

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	for _, month := range months {
		if err := e.exportMonth(month, byMonth[month], opts, report); err != nil {
			return report, err
		}
	}

	if !opts.DryRun && report.Exported > 0 {
		if err := e.history.SetMetadata(db.MetaLastExportTo, opts.To.Format(DateLayout)); err != nil {
			return report, err
		}
	}

	e.logger.Infow("export completed",
		"exported", report.Exported,
		"empty", report.Empty,
		"files_written", len(report.Files),
	)
	return report, nil
}

func (e *Exporter) forget(opts Options, exported map[string]bool) error {
	for _, id := range opts.Reexport {
		if !exported[id] {
			e.logger.Warnw("transaction was never exported", "txn_id", id)
			continue
		}
		delete(exported, id)
		if opts.DryRun {
			continue
		}
		if _, err := e.history.DeleteExportRecord(id); err != nil {
			return err
		}
		e.logger.Infow("cleared export record", "txn_id", id)
	}
	return nil
}

func (e *Exporter) exportMonth(month string, txns []*ledger.Txn, opts Options, report *Report) error {
	filePath, err := e.paths.MonthFilePath(month)
	if err != nil {
		return err
	}
	if opts.DryRun {
		fmt.Fprintf(opts.Out, "[DRY RUN] Would append to %s\n", filePath)
	}

	written := 0
	for _, txn := range txns {
		bt, ok, err := e.converter.ConvertTxn(txn)
		if err != nil {
			return err
		}
		if !ok {
			report.Empty++
			continue
		}

		if opts.DryRun {
			fmt.Fprintln(opts.Out, bt.Format())
			report.Exported++
			continue
		}

		if err := e.repo.AppendTransaction(month, bt.Format()); err != nil {
			return fmt.Errorf("failed to append transaction %s: %w", txn.ID, err)
		}
		if err := e.history.RecordExport(db.ExportRecord{
			TxnID:           txn.ID,
			TransactionDate: bt.Date,
			Amount:          gross(txn).String(),
			BeancountFile:   filePath,
		}); err != nil {
			e.logger.Errorw("failed to record export", "txn_id", txn.ID, "error", err)
		}
		report.Exported++
		written++
	}

	if written > 0 {
		report.Files = append(report.Files, filePath)
		e.logger.Infow("updated file", "path", filePath, "transactions", written)
	}
	return nil
}

// gross is the amount a transaction moves: the larger of its credit and debit
// totals.
func gross(txn *ledger.Txn) decimal.Decimal {
	credits, debits := decimal.Zero, decimal.Zero
	for _, e := range txn.Entries {
		if e.Amount.IsNegative() {
			debits = debits.Sub(e.Amount)
		} else {
			credits = credits.Add(e.Amount)
		}
	}
	return decimal.Max(credits, debits)
}
