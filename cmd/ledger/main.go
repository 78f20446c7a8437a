// Package main is the entry point for the ledger CLI and server.
package main

import (
	"os"

	"github.com/pigeonworks-llc/txn-ledger/cmd/ledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
