package models

import (
	"github.com/shopspring/decimal"
)

// SplitKind discriminates the two debtor models an expense can carry.
type SplitKind string

const (
	// SplitSingle is the primary model: one explicit debtor.
	SplitSingle SplitKind = "single"

	// SplitEven is the legacy model: the amount is divided evenly
	// across a list of debtors.
	SplitEven SplitKind = "even"
)

// Contribution is a tagged variant describing who owes an expense:
// a single debtor, or an even split across several. It is resolved
// into flat (payer, debtor, amount) triples by the calculator; nothing
// else should branch on Kind.
type Contribution struct {
	Kind SplitKind `json:"kind"`

	// Debtor is set when Kind == SplitSingle.
	Debtor string `json:"debtor,omitempty"`

	// SplitBetween is set when Kind == SplitEven. Order matters: the
	// even-split rounding rule assigns remainder cents from the front
	// of the list.
	SplitBetween []string `json:"split_between,omitempty"`
}

// SingleDebtor builds a single-debtor contribution.
func SingleDebtor(username string) Contribution {
	return Contribution{Kind: SplitSingle, Debtor: username}
}

// EvenSplit builds an even-split contribution across the given debtors.
func EvenSplit(usernames ...string) Contribution {
	return Contribution{Kind: SplitEven, SplitBetween: usernames}
}

// Debtors returns the debtor set regardless of variant.
func (c Contribution) Debtors() []string {
	if c.Kind == SplitSingle {
		if c.Debtor == "" {
			return nil
		}
		return []string{c.Debtor}
	}
	return c.SplitBetween
}

// Includes reports whether username is in the contribution's debtor set.
func (c Contribution) Includes(username string) bool {
	for _, d := range c.Debtors() {
		if d == username {
			return true
		}
	}
	return false
}

// Expense represents one fronted cost inside an event.
type Expense struct {
	// ID is unique within the event (UUID format).
	ID string `json:"id"`

	// ItemName is the free-text description of what was bought.
	ItemName string `json:"item_name"`

	// Amount is the positive, currency-agnostic decimal cost.
	Amount decimal.Decimal `json:"amount"`

	// Payer is the username of the member who fronted the money.
	Payer string `json:"payer"`

	// Split describes who owes the payer for this expense.
	Split Contribution `json:"split"`

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64 `json:"created_at"`
}

// Clone returns a copy with no shared slices.
func (e Expense) Clone() Expense {
	out := e
	if e.Split.SplitBetween != nil {
		out.Split.SplitBetween = append([]string(nil), e.Split.SplitBetween...)
	}
	return out
}
