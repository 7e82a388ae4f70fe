// Package calculator derives balance state from an event's expense list.
// Everything here is a pure function: no I/O, no stored state. Balances
// are recomputed in full on every ledger change; at a handful of
// expenses per event, correctness under concurrent edits beats caching.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/tabsync/tabsync/internal/models"
)

// Share is one resolved (payer, debtor, amount) contribution triple.
type Share struct {
	Payer     string
	Debtor    string
	Amount    decimal.Decimal
	ExpenseID string
	ItemName  string
}

// SplitEvenly divides amount into n cent-exact shares.
//
// Rounding rule: each share is floored to the cent and the remainder
// cents are assigned one each to the earliest shares. The shares always
// sum exactly to amount, so an even split never leaks or mints money.
func SplitEvenly(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	cents := amount.Shift(2).IntPart()
	base := cents / int64(n)
	rem := cents % int64(n)

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		c := base
		if int64(i) < rem {
			c++
		}
		shares[i] = decimal.New(c, -2)
	}
	return shares
}

// Shares resolves one expense into its contribution triples. Both
// debtor models flatten here: a single debtor owes the full amount, an
// even split owes per-debtor shares under the SplitEvenly rounding
// rule. Self-loops (payer owing themselves) are dropped; the share is
// resolved first so an even split that includes the payer still divides
// by the full debtor count.
func Shares(e models.Expense) []Share {
	debtors := e.Split.Debtors()
	if len(debtors) == 0 {
		return nil
	}

	var amounts []decimal.Decimal
	switch e.Split.Kind {
	case models.SplitSingle:
		amounts = []decimal.Decimal{e.Amount}
	case models.SplitEven:
		amounts = SplitEvenly(e.Amount, len(debtors))
	default:
		return nil
	}

	shares := make([]Share, 0, len(debtors))
	for i, debtor := range debtors {
		if debtor == e.Payer {
			continue
		}
		shares = append(shares, Share{
			Payer:     e.Payer,
			Debtor:    debtor,
			Amount:    amounts[i],
			ExpenseID: e.ID,
			ItemName:  e.ItemName,
		})
	}
	return shares
}

// DebtorShare returns the contribution a specific debtor owes on an
// expense, and whether the debtor appears in its debtor set at all.
// Used by settlement to extract exactly one member's share.
func DebtorShare(e models.Expense, debtor string) (decimal.Decimal, bool) {
	if !e.Split.Includes(debtor) {
		return decimal.Zero, false
	}
	if debtor == e.Payer {
		return decimal.Zero, false
	}
	for _, s := range Shares(e) {
		if s.Debtor == debtor {
			return s.Amount, true
		}
	}
	return decimal.Zero, false
}
