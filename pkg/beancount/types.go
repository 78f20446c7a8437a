// Package beancount writes ledger transactions to monthly Beancount files.
package beancount

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Transaction represents a Beancount transaction.
type Transaction struct {
	Date      string // YYYY-MM-DD
	Narration string
	Tags      []string
	Metadata  map[string]string
	Postings  []Posting
}

// Posting represents a posting in a Beancount transaction.
type Posting struct {
	Account  string          // e.g. "Assets:Ledger:A-1"
	Amount   decimal.Decimal // positive increases the account
	Currency string
	Comment  string
}

// amountColumn is where posting amounts are right-aligned.
const amountColumn = 60

// Format renders t in Beancount syntax.
func (t Transaction) Format() string {
	var sb strings.Builder

	sb.WriteString(t.Date)
	sb.WriteString(" *")
	fmt.Fprintf(&sb, " %q", t.Narration)
	for _, tag := range t.Tags {
		sb.WriteString(" #")
		sb.WriteString(tag)
	}
	sb.WriteString("\n")

	for _, key := range slices.Sorted(maps.Keys(t.Metadata)) {
		fmt.Fprintf(&sb, "  %s: %q\n", key, t.Metadata[key])
	}

	for _, p := range t.Postings {
		sb.WriteString("  ")
		sb.WriteString(p.Account)
		amount := p.Amount.String()
		sb.WriteString(strings.Repeat(" ", max(2, amountColumn-len(p.Account)-len(amount))))
		sb.WriteString(amount)
		sb.WriteString(" ")
		sb.WriteString(p.Currency)
		if p.Comment != "" {
			sb.WriteString(" ; ")
			sb.WriteString(p.Comment)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// Balanced reports whether the postings sum to zero.
func (t Transaction) Balanced() bool {
	sum := decimal.Zero
	for _, p := range t.Postings {
		sum = sum.Add(p.Amount)
	}
	return sum.IsZero()
}
