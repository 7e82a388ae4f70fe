package gateway

import (
	"github.com/tabsync/tabsync/internal/ledger"
	"github.com/tabsync/tabsync/internal/models"
)

// Kind identifies a ledger mutation on the wire.
type Kind string

const (
	KindSetEvent      Kind = "set_event"
	KindAddExpense    Kind = "add_expense"
	KindUpdateExpense Kind = "update_expense"
	KindRemoveExpense Kind = "remove_expense"
)

// Message is one mutation crossing the gateway. Single-expense ops
// carry the delta; set_event carries the resulting canonical state
// (settlement also broadcasts as set_event, since it rewrites entries).
type Message struct {
	GroupID string `json:"group_id"`
	Kind    Kind   `json:"kind"`

	// Event is the canonical state for KindSetEvent; nil clears.
	Event *models.Event `json:"event,omitempty"`

	// Expense is the appended entry for KindAddExpense.
	Expense *models.Expense `json:"expense,omitempty"`

	// ExpenseID targets KindUpdateExpense and KindRemoveExpense.
	ExpenseID string `json:"expense_id,omitempty"`

	// Patch is the partial update for KindUpdateExpense.
	Patch *ledger.Patch `json:"patch,omitempty"`

	// Origin is the username whose action produced the mutation.
	Origin string `json:"origin,omitempty"`

	// ConnID identifies the websocket connection the mutation arrived
	// on, when it arrived on one. That single connection is excluded
	// from fan-out, since its replica was already mutated
	// optimistically; the origin user's other devices still receive
	// the broadcast. Empty for HTTP-originated mutations.
	ConnID string `json:"conn_id,omitempty"`
}

// frame is the client-to-server wire envelope.
type frame struct {
	// Type is "join", "leave" or "mutation".
	Type string `json:"type"`

	// GroupID names the room for join/leave.
	GroupID string `json:"group_id,omitempty"`

	// Mutation carries the ledger mutation for type "mutation".
	Mutation *Message `json:"mutation,omitempty"`
}
