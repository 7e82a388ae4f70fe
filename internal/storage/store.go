// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/tabsync/tabsync/internal/models"
	"github.com/tabsync/tabsync/internal/settlement"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations behind the ledger. This
// abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service layer.
//
// Expense creation must be an additive write (one inserted row), never
// a read-modify-write of the whole list: two processes appending
// concurrently must not lose each other's rows. Update and delete are
// by-id row operations and remain last-write-wins under concurrent
// edits, a documented limitation, not something the store papers over.
type Store interface {
	// CreateUser persists a new user. The user.ID field is populated
	// when empty.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// CreateGroup persists a new group with its member list.
	// Populates ID and CreatedAt when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by ID, members included.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsForMember retrieves every group the user belongs to.
	ListGroupsForMember(ctx context.Context, username string) ([]*models.Group, error)

	// AddGroupMembers appends usernames to the group's member set.
	// Already-present members are skipped.
	AddGroupMembers(ctx context.Context, groupID string, usernames []string) error

	// CreateEvent persists a group's new active event. Fails if the
	// group already has one.
	CreateEvent(ctx context.Context, groupID string, event *models.Event) error

	// GetEvent retrieves the group's active event with its expenses,
	// or (nil, nil) when the group has none.
	GetEvent(ctx context.Context, groupID string) (*models.Event, error)

	// ArchiveEvent retires the group's active event: the event and its
	// expenses move to the archive tables and disappear from live
	// state. No-op when the group has no active event.
	ArchiveEvent(ctx context.Context, groupID string) error

	// AppendExpense inserts one expense row under the event.
	AppendExpense(ctx context.Context, eventID string, expense *models.Expense) error

	// UpdateExpense rewrites the mutable fields (item name, amount) of
	// one expense row by id.
	UpdateExpense(ctx context.Context, expense models.Expense) error

	// DeleteExpense removes one expense row by id.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ApplySettlement removes and rewrites expense rows in one
	// transaction and records the settlement audit row.
	ApplySettlement(ctx context.Context, plan *settlement.Plan, record *models.Settlement) error

	// Close releases any resources held by the store.
	Close() error
}
