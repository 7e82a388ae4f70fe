package models

import "github.com/shopspring/decimal"

// Settlement is the audit record of a confirmed peer-to-peer payment.
// Confirmation is single-sided: the debtor reports having paid, the
// matching expense entries are removed from live state, and this record
// is what remains of them.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string `json:"id"`

	// GroupID is the group this settlement belongs to.
	GroupID string `json:"group_id"`

	// FromUser is the debtor who confirmed paying.
	FromUser string `json:"from_user"`

	// ToUser is the payer of record who was paid.
	ToUser string `json:"to_user"`

	// Amount is the total settled across all cleared contributions.
	Amount decimal.Decimal `json:"amount"`

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64 `json:"created_at"`
}
