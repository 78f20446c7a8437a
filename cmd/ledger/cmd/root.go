// Package cmd provides CLI commands for the ledger.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pigeonworks-llc/txn-ledger/pkg/client"
	"github.com/pigeonworks-llc/txn-ledger/pkg/config"
	"github.com/pigeonworks-llc/txn-ledger/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool

	logger = zap.NewNop().Sugar()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Ledger transaction engine",
	Long: `ledger runs the ledger transaction service and talks to it.

It supports:
- Serving the HTTP API on bolt, SQLite or MongoDB storage
- Opening accounts, debits, credits, transfers and multi-entry transactions
- Seeding accounts from a yaml fixture
- Exporting SUCCESS transactions to Beancount with SQLite history

Example:
  ledger serve
  ledger account create A-1 --balance 100
  ledger transfer A-1 A-2 25.50
  ledger export --from 2024-01-01 --to 2024-01-31`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if debug {
			level = "debug"
		}

		l, err := logging.New(level, logging.FormatConsole)
		if err != nil {
			return err
		}
		logger = l.Sugar()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(debitCmd, creditCmd, transferCmd)
	rootCmd.AddCommand(txnCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig loads the configuration and checks the given required keys.
func loadConfig(required ...[]string) *config.Config {
	cfg, err := config.Load(cfgFile)
	exitOnError(err, "failed to load configuration")

	if cfg.Debug {
		debug = true
	}
	exitOnError(cfg.Validate(required...), "invalid configuration")
	return cfg
}

// newClient builds an API client from the configuration.
func newClient(cfg *config.Config) *client.Client {
	logger.Debugw("using ledger API", "url", cfg.Client.APIURL)
	return client.NewClient(client.ClientConfig{APIURL: cfg.Client.APIURL})
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	exitOnError(err, "failed to encode output")
	fmt.Println(string(out))
}

// exitOnError logs err and exits with status 1.
func exitOnError(err error, msg string) {
	if err != nil {
		logger.Errorw(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
