// Package ledger holds each group's live event and expense state.
//
// The Store is an explicit state container: mutators are synchronous,
// pure-data transitions (no I/O; persistence and broadcast are layered
// on top by the service and gateway), and every mutation publishes a
// fresh deep-copied snapshot to subscribers. Mutators are idempotent or
// no-ops on missing targets, which is what makes replaying redelivered
// or interleaved transport messages safe without version checks.
package ledger

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tabsync/tabsync/internal/models"
)

// Patch is a partial update to one expense. Nil fields are left alone.
type Patch struct {
	ItemName *string          `json:"item_name,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

// Store maintains per-group event state with subscriber notification.
type Store struct {
	mu      sync.RWMutex
	events  map[string]*models.Event
	subs    map[string]map[int]func(*models.Event)
	nextSub int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		events: make(map[string]*models.Event),
		subs:   make(map[string]map[int]func(*models.Event)),
	}
}

// SetEvent replaces the group's active event wholesale. A nil event
// clears it, retiring its expense list from live state. Applying the
// same payload twice produces the same state. Returns false only when
// the call was a pure no-op (clearing an already-empty group).
func (s *Store) SetEvent(groupID string, event *models.Event) bool {
	s.mu.Lock()
	if event == nil {
		if _, ok := s.events[groupID]; !ok {
			s.mu.Unlock()
			return false
		}
		delete(s.events, groupID)
	} else {
		s.events[groupID] = event.Clone()
	}
	s.mu.Unlock()

	s.notify(groupID)
	return true
}

// AddExpense appends one expense to the group's active event. It is a
// no-op when the group has no active event, and a no-op on a duplicate
// id so redelivered transport messages cannot double-count. When the
// expense carries no id one is assigned in place before the append.
func (s *Store) AddExpense(groupID string, expense *models.Expense) bool {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}

	s.mu.Lock()
	event, ok := s.events[groupID]
	if !ok || event.FindExpense(expense.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	event.Expenses = append(event.Expenses, expense.Clone())
	s.mu.Unlock()

	s.notify(groupID)
	return true
}

// UpdateExpense applies a partial update to one expense by id. It
// returns false, and suppresses notification, when the expense is not
// found or when the patch changes nothing, so callers can skip the
// redundant broadcast.
func (s *Store) UpdateExpense(groupID, expenseID string, patch Patch) bool {
	s.mu.Lock()
	event, ok := s.events[groupID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	i := event.FindExpense(expenseID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}

	expense := &event.Expenses[i]
	changed := false
	if patch.ItemName != nil && *patch.ItemName != expense.ItemName {
		expense.ItemName = *patch.ItemName
		changed = true
	}
	if patch.Amount != nil && !patch.Amount.Equal(expense.Amount) {
		expense.Amount = *patch.Amount
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.notify(groupID)
	}
	return changed
}

// RemoveExpense deletes one expense by id. No-op when not found.
func (s *Store) RemoveExpense(groupID, expenseID string) bool {
	s.mu.Lock()
	event, ok := s.events[groupID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	i := event.FindExpense(expenseID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	event.Expenses = append(event.Expenses[:i], event.Expenses[i+1:]...)
	s.mu.Unlock()

	s.notify(groupID)
	return true
}

// Settle removes and rewrites expenses in one transition, so a
// settlement is atomic from every subscriber's perspective: either the
// whole selection is applied or none of it. Entries in adjusted replace
// the live entry with the same id.
func (s *Store) Settle(groupID string, removeIDs []string, adjusted []models.Expense) bool {
	s.mu.Lock()
	event, ok := s.events[groupID]
	if !ok {
		s.mu.Unlock()
		return false
	}

	applied := false
	for _, id := range removeIDs {
		if i := event.FindExpense(id); i >= 0 {
			event.Expenses = append(event.Expenses[:i], event.Expenses[i+1:]...)
			applied = true
		}
	}
	for _, e := range adjusted {
		if i := event.FindExpense(e.ID); i >= 0 {
			event.Expenses[i] = e.Clone()
			applied = true
		}
	}
	s.mu.Unlock()

	if applied {
		s.notify(groupID)
	}
	return applied
}

// Snapshot returns a deep copy of the group's active event, or nil.
func (s *Store) Snapshot(groupID string) *models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events[groupID].Clone()
}

// Subscribe registers a callback invoked with a fresh snapshot after
// every mutation of the group's state. The returned function removes
// the subscription.
func (s *Store) Subscribe(groupID string, fn func(*models.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[groupID] == nil {
		s.subs[groupID] = make(map[int]func(*models.Event))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[groupID][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[groupID], id)
	}
}

// notify fans a snapshot out to the group's subscribers. Callbacks run
// outside the lock so a subscriber may call back into the store.
func (s *Store) notify(groupID string) {
	s.mu.RLock()
	snapshot := s.events[groupID].Clone()
	fns := make([]func(*models.Event), 0, len(s.subs[groupID]))
	for _, fn := range s.subs[groupID] {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
