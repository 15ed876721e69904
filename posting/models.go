package posting

import (
	"errors"

	"github.com/xraph/payable/id"
	"github.com/xraph/payable/types"
)

// ErrUnbalanced is returned when a generated posting set fails the
// double-entry balance check.
var ErrUnbalanced = errors.New("posting: debits and credits do not balance")

// Entry is one side of a double-entry posting. Exactly one of Debit or Credit
// is non-zero; both are always non-negative.
type Entry struct {
	ID          id.PostingID `json:"id"`
	Account     string       `json:"account"`
	Code        string       `json:"code"`
	Debit       types.Money  `json:"debit"`
	Credit      types.Money  `json:"credit"`
	Description string       `json:"description,omitempty"`
}

// Set is the complete posting set for one invoice.
type Set []Entry

// Debits sums the debit side of the set.
func (s Set) Debits() types.Money {
	total := types.Money{}
	for _, e := range s {
		if e.Debit.IsZero() {
			continue
		}
		if total.Currency == "" {
			total = e.Debit
			continue
		}
		total = total.Add(e.Debit)
	}
	return total
}

// Credits sums the credit side of the set.
func (s Set) Credits() types.Money {
	total := types.Money{}
	for _, e := range s {
		if e.Credit.IsZero() {
			continue
		}
		if total.Currency == "" {
			total = e.Credit
			continue
		}
		total = total.Add(e.Credit)
	}
	return total
}

// Balanced reports whether debits equal credits to the minor unit. Amounts
// are integers so the comparison is exact, no tolerance involved.
func (s Set) Balanced() bool {
	return s.Debits().Amount == s.Credits().Amount
}
