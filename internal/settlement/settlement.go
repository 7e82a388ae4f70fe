// Package settlement turns a debtor's "I paid" confirmation into the
// ledger mutation that clears their debt to one payer.
//
// Confirmation is single-sided by design: the payment itself happens
// out of band through the external provider's deep link, and only the
// debtor's say-so is required. Planning is pure; the service executes
// the plan against the ledger store and persistence atomically.
package settlement

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/tabsync/tabsync/internal/calculator"
	"github.com/tabsync/tabsync/internal/models"
)

var (
	// ErrNothingToSettle is returned when no expense matches the
	// (payer, debtor) pair. Benign: state is untouched.
	ErrNothingToSettle = errors.New("nothing to settle between these members")

	// ErrNoPaymentHandle blocks confirmation when the counterparty has
	// no registered handle to direct the payment to.
	ErrNoPaymentHandle = errors.New("counterparty has no registered payment handle")
)

// paymentScheme is the external provider's deep-link scheme.
const paymentScheme = "venmo"

// Plan is the computed effect of one settlement: which expenses vanish
// outright, which are rewritten to carry only the remaining debtors'
// shares, and the total the confirming debtor is clearing.
type Plan struct {
	// RemoveIDs are expenses removed entirely: the confirming debtor
	// was their only debtor.
	RemoveIDs []string

	// Adjusted are even-split expenses rewritten with the confirming
	// debtor's share extracted, so other debtors' still-outstanding
	// shares survive the settlement untouched.
	Adjusted []models.Expense

	// Total is the sum of the debtor's cleared contributions.
	Total decimal.Decimal
}

// BuildPlan selects every expense in the event where payer == toUser
// and fromUser is in the debtor set, and computes how to extract
// exactly fromUser's contribution from each. Returns ErrNothingToSettle
// when no entry matches.
func BuildPlan(event *models.Event, fromUser, toUser string) (*Plan, error) {
	plan := &Plan{Total: decimal.Zero}
	if event == nil {
		return nil, ErrNothingToSettle
	}

	for _, expense := range event.Expenses {
		if expense.Payer != toUser {
			continue
		}
		shares := calculator.Shares(expense)
		settled, ok := shareOf(shares, fromUser)
		if !ok {
			continue
		}
		plan.Total = plan.Total.Add(settled)

		// The rewritten entry carries the remaining debtors and the sum
		// of their original shares. The payer is dropped from a legacy
		// split list alongside the settler: their slot was a self-loop,
		// and keeping it would turn it into real debt once the list
		// shrinks.
		var remaining []string
		remainder := decimal.Zero
		for _, s := range shares {
			if s.Debtor == fromUser {
				continue
			}
			remaining = append(remaining, s.Debtor)
			remainder = remainder.Add(s.Amount)
		}
		if len(remaining) == 0 {
			plan.RemoveIDs = append(plan.RemoveIDs, expense.ID)
			continue
		}

		adjusted := expense.Clone()
		adjusted.Amount = remainder
		if len(remaining) == 1 {
			adjusted.Split = models.SingleDebtor(remaining[0])
		} else {
			adjusted.Split = models.EvenSplit(remaining...)
		}
		plan.Adjusted = append(plan.Adjusted, adjusted)
	}

	if len(plan.RemoveIDs) == 0 && len(plan.Adjusted) == 0 {
		return nil, ErrNothingToSettle
	}
	return plan, nil
}

// shareOf finds one debtor's resolved contribution in a share list.
func shareOf(shares []calculator.Share, debtor string) (decimal.Decimal, bool) {
	for _, s := range shares {
		if s.Debtor == debtor {
			return s.Amount, true
		}
	}
	return decimal.Zero, false
}

// PaymentLink builds the external provider deep link that pre-fills
// the recipient and amount. Fire-and-forget UI affordance: the ledger
// only reacts to the debtor's subsequent confirmation.
func PaymentLink(handle string, amount decimal.Decimal) (string, error) {
	if handle == "" {
		return "", ErrNoPaymentHandle
	}
	q := url.Values{}
	q.Set("recipient", handle)
	q.Set("amount", amount.StringFixed(2))
	return fmt.Sprintf("%s://pay?%s", paymentScheme, q.Encode()), nil
}
