// Package seed opens accounts listed in a yaml fixture.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Fixture is the yaml layout:
//
//	accounts:
//	  - account_num: "A-1"
//	    balance: "100.00"
type Fixture struct {
	Accounts []Account `yaml:"accounts"`
}

// Account is one fixture account. Balance is kept as text so yaml never
// rounds it through a float.
type Account struct {
	AccountNum string `yaml:"account_num"`
	Balance    string `yaml:"balance"`
}

// AccountCreator opens accounts. The API client satisfies it.
type AccountCreator interface {
	CreateAccount(ctx context.Context, accountNum string, balance decimal.Decimal) (*ledger.Account, error)
}

// Result summarizes a seeding run.
type Result struct {
	Created []string
	Skipped []string
}

// Load reads and validates a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(f.Accounts))
	for i, a := range f.Accounts {
		if a.AccountNum == "" {
			return nil, fmt.Errorf("accounts[%d]: account_num is required", i)
		}
		if seen[a.AccountNum] {
			return nil, fmt.Errorf("accounts[%d]: account %s listed twice", i, a.AccountNum)
		}
		seen[a.AccountNum] = true
		if _, err := a.balance(); err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
	}
	return &f, nil
}

func (a Account) balance() (decimal.Decimal, error) {
	if a.Balance == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(a.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q: %w", a.Balance, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("balance %s must not be negative", a.Balance)
	}
	return d, nil
}

// Apply opens every fixture account. Accounts that already exist are skipped
// so a fixture can be applied repeatedly; isDuplicate classifies the error.
func Apply(ctx context.Context, creator AccountCreator, f *Fixture, isDuplicate func(error) bool) (*Result, error) {
	res := &Result{}
	for _, a := range f.Accounts {
		balance, err := a.balance()
		if err != nil {
			return res, err
		}

		if _, err := creator.CreateAccount(ctx, a.AccountNum, balance); err != nil {
			if isDuplicate != nil && isDuplicate(err) {
				res.Skipped = append(res.Skipped, a.AccountNum)
				continue
			}
			return res, fmt.Errorf("failed to create account %s: %w", a.AccountNum, err)
		}
		res.Created = append(res.Created, a.AccountNum)
	}
	return res, nil
}
