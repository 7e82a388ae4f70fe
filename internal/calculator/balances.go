package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/tabsync/tabsync/internal/models"
)

// OwedItem is one expense contribution inside an IsOwedBy breakdown.
type OwedItem struct {
	ExpenseID string          `json:"expense_id"`
	ItemName  string          `json:"item_name"`
	Amount    decimal.Decimal `json:"amount"`
}

// OwedDetail is what one counterparty owes a member, with the
// contributing expense entries.
type OwedDetail struct {
	Total decimal.Decimal `json:"total"`
	Items []OwedItem      `json:"items"`
}

// MemberBalance is the derived balance state for one group member.
// It is pure derived state: always recomputable from the event's
// expense list, never persisted as a source of truth.
type MemberBalance struct {
	// Paid is the total this member fronted on others' behalf.
	Paid decimal.Decimal `json:"paid"`

	// Owed is the total this member owes to others.
	Owed decimal.Decimal `json:"owed"`

	// OwesTo maps counterparty -> amount this member owes them.
	OwesTo map[string]decimal.Decimal `json:"owes_to"`

	// IsOwedBy maps counterparty -> what they owe this member, with
	// the contributing expense entries.
	IsOwedBy map[string]*OwedDetail `json:"is_owed_by"`
}

func newMemberBalance() *MemberBalance {
	return &MemberBalance{
		Paid:     decimal.Zero,
		Owed:     decimal.Zero,
		OwesTo:   make(map[string]decimal.Decimal),
		IsOwedBy: make(map[string]*OwedDetail),
	}
}

// Balances computes the complete pairwise debt graph for an event.
//
// Each expense resolves to (payer, debtor, amount) triples via Shares;
// triples are skipped when payer == debtor or when either party is not
// a current member (membership can change after an expense was
// recorded). A nil event yields zeroed balances for every member.
func Balances(event *models.Event, members []string) map[string]*MemberBalance {
	balances := make(map[string]*MemberBalance, len(members))
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		balances[m] = newMemberBalance()
		memberSet[m] = true
	}
	if event == nil {
		return balances
	}

	for _, expense := range event.Expenses {
		for _, share := range Shares(expense) {
			if !memberSet[share.Payer] || !memberSet[share.Debtor] {
				continue
			}

			payer := balances[share.Payer]
			debtor := balances[share.Debtor]

			payer.Paid = payer.Paid.Add(share.Amount)
			debtor.Owed = debtor.Owed.Add(share.Amount)
			debtor.OwesTo[share.Payer] = debtor.OwesTo[share.Payer].Add(share.Amount)

			detail := payer.IsOwedBy[share.Debtor]
			if detail == nil {
				detail = &OwedDetail{Total: decimal.Zero}
				payer.IsOwedBy[share.Debtor] = detail
			}
			detail.Total = detail.Total.Add(share.Amount)
			detail.Items = append(detail.Items, OwedItem{
				ExpenseID: share.ExpenseID,
				ItemName:  share.ItemName,
				Amount:    share.Amount,
			})
		}
	}

	return balances
}
