package converter

import (
	"fmt"

	"github.com/pigeonworks-llc/txn-ledger/pkg/beancount"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
)

const dateLayout = "2006-01-02"

// Converter converts ledger transactions to Beancount format.
type Converter struct {
	mapper *Mapper
}

// NewConverter creates a new Converter.
func NewConverter(mapper *Mapper) *Converter {
	return &Converter{mapper: mapper}
}

// ConvertTxn converts a SUCCESS transaction. Each entry becomes a posting in
// entry order; an unbalanced transaction gets a final posting to the external
// account so the result always balances. A transaction without entries moves
// nothing and is reported with ok=false.
func (c *Converter) ConvertTxn(txn *ledger.Txn) (out beancount.Transaction, ok bool, err error) {
	if txn.Status != ledger.StatusSuccess {
		return beancount.Transaction{}, false, fmt.Errorf("transaction %s is %s, only SUCCESS can be exported", txn.ID, txn.Status)
	}
	if len(txn.Entries) == 0 {
		return beancount.Transaction{}, false, nil
	}

	currency := c.mapper.Currency()
	postings := make([]beancount.Posting, 0, len(txn.Entries)+1)
	for _, e := range txn.Entries {
		postings = append(postings, beancount.Posting{
			Account:  c.mapper.BeancountAccount(e.AccountNum),
			Amount:   e.Amount,
			Currency: currency,
		})
	}
	if net := txn.Net(); !net.IsZero() {
		postings = append(postings, beancount.Posting{
			Account:  c.mapper.External(),
			Amount:   net.Neg(),
			Currency: currency,
		})
	}

	return beancount.Transaction{
		Date:      txn.TransactionDate.UTC().Format(dateLayout),
		Narration: narration(txn),
		Tags:      []string{"ledger"},
		Metadata:  map[string]string{"txn_id": txn.ID},
		Postings:  postings,
	}, true, nil
}

func narration(txn *ledger.Txn) string {
	switch {
	case len(txn.Entries) == 1 && txn.Entries[0].Amount.IsNegative():
		return "Debit " + txn.Entries[0].AccountNum
	case len(txn.Entries) == 1:
		return "Credit " + txn.Entries[0].AccountNum
	case len(txn.Entries) == 2 && txn.Net().IsZero() && txn.Entries[0].Amount.IsNegative():
		return fmt.Sprintf("Transfer %s to %s", txn.Entries[0].AccountNum, txn.Entries[1].AccountNum)
	}
	return fmt.Sprintf("Ledger transaction (%d entries)", len(txn.Entries))
}
