package service

import (
	"context"
	"sync"

	"github.com/tabsync/tabsync/internal/gateway"
	"github.com/tabsync/tabsync/internal/models"
	"github.com/tabsync/tabsync/internal/settlement"
	"github.com/tabsync/tabsync/internal/storage"
)

// fakeStore is an in-memory storage.Store for service tests.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	groups   map[string]*models.Group
	events   map[string]*models.Event // by group id
	archived []string
	settled  []*models.Settlement
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]*models.User),
		groups: make(map[string]*models.Group),
		events: make(map[string]*models.Event),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.Username] = user
	return nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateGroup(_ context.Context, group *models.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[group.ID] = group
	return nil
}

func (f *fakeStore) GetGroup(_ context.Context, groupID string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return g, nil
}

func (f *fakeStore) ListGroupsForMember(_ context.Context, username string) ([]*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Group
	for _, g := range f.groups {
		if g.HasMember(username) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) AddGroupMembers(_ context.Context, groupID string, usernames []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return storage.ErrNotFound
	}
	for _, u := range usernames {
		if !g.HasMember(u) {
			g.Members = append(g.Members, u)
		}
	}
	return nil
}

func (f *fakeStore) CreateEvent(_ context.Context, groupID string, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[groupID] = event.Clone()
	return nil
}

func (f *fakeStore) GetEvent(_ context.Context, groupID string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[groupID].Clone(), nil
}

func (f *fakeStore) ArchiveEvent(_ context.Context, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.events[groupID]; ok {
		f.archived = append(f.archived, e.ID)
		delete(f.events, groupID)
	}
	return nil
}

func (f *fakeStore) AppendExpense(_ context.Context, eventID string, expense *models.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == eventID {
			e.Expenses = append(e.Expenses, expense.Clone())
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) UpdateExpense(_ context.Context, expense models.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if i := e.FindExpense(expense.ID); i >= 0 {
			e.Expenses[i] = expense.Clone()
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) DeleteExpense(_ context.Context, expenseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if i := e.FindExpense(expenseID); i >= 0 {
			e.Expenses = append(e.Expenses[:i], e.Expenses[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) ApplySettlement(_ context.Context, plan *settlement.Plan, record *models.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[record.GroupID]
	if !ok {
		return storage.ErrNotFound
	}
	for _, id := range plan.RemoveIDs {
		if i := e.FindExpense(id); i >= 0 {
			e.Expenses = append(e.Expenses[:i], e.Expenses[i+1:]...)
		}
	}
	for _, adj := range plan.Adjusted {
		if i := e.FindExpense(adj.ID); i >= 0 {
			e.Expenses[i] = adj.Clone()
		}
	}
	f.settled = append(f.settled, record)
	return nil
}

func (f *fakeStore) Close() error { return nil }

// spyBroadcaster records broadcast messages for assertion.
type spyBroadcaster struct {
	mu   sync.Mutex
	msgs []gateway.Message
}

func (s *spyBroadcaster) Broadcast(_ context.Context, msg gateway.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *spyBroadcaster) sent() []gateway.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gateway.Message(nil), s.msgs...)
}

func (s *spyBroadcaster) last() gateway.Message {
	msgs := s.sent()
	return msgs[len(msgs)-1]
}
