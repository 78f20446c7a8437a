package ledger

import (
	"context"
	"errors"
	"fmt"
)

// ApplyEntries increments each entry's account by its amount, strictly in
// order, and stops at the first failure. The same account may appear several
// times, so entries are never applied concurrently.
//
// A zero match count is reported as AccountNotFound and a store constraint
// rejection as InsufficientBalance. Any other error stays unclassified; it is
// wrapped with the entry position but its chain is kept intact.
// On success the number of applied entries is returned.
func ApplyEntries(ctx context.Context, accounts AccountStore, entries []TxnEntry) (int, error) {
	applied := 0
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		matched, err := accounts.IncrementBalance(ctx, entry.AccountNum, entry.Amount)
		if err != nil {
			if errors.Is(err, ErrConstraintViolation) {
				return applied, insufficientBalance(entry.AccountNum, err)
			}
			return applied, fmt.Errorf("apply entry %d (%s): %w", i, entry.AccountNum, err)
		}
		if matched < 1 {
			return applied, accountNotFound(entry.AccountNum)
		}

		applied++
	}
	return applied, nil
}
