package models

// Event represents a shared outing for a group: a titled, dated
// container for the expenses the outing produced. A group has zero or
// one active event; clearing the event retires its expense list from
// live state (the history is archived by the storage layer).
type Event struct {
	// ID is the unique identifier for the event (UUID format).
	ID string `json:"id"`

	// Title is the human-readable name for the outing.
	Title string `json:"title"`

	// Date is the outing date in YYYY-MM-DD form, free of timezone.
	Date string `json:"date"`

	// Description is optional free text about the outing.
	Description string `json:"description,omitempty"`

	// Expenses is the ordered list of expense entries. IDs are unique
	// within the event.
	Expenses []Expense `json:"expenses"`

	// CreatedAt is the Unix timestamp when the event was created.
	CreatedAt int64 `json:"created_at"`
}

// FindExpense returns the index of the expense with the given id, or -1.
func (e *Event) FindExpense(expenseID string) int {
	for i := range e.Expenses {
		if e.Expenses[i].ID == expenseID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the event. Snapshots handed to
// subscribers and over the wire are clones, never aliases of live state.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.Expenses = make([]Expense, len(e.Expenses))
	for i := range e.Expenses {
		out.Expenses[i] = e.Expenses[i].Clone()
	}
	return &out
}
