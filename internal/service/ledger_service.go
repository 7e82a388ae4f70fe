// Package service orchestrates the business operations: it validates
// requests, persists through storage, mutates the in-memory ledger and
// hands the resulting mutation to the gateway for fan-out. Handlers and
// the gateway both funnel into this package so local and remote
// mutations share one code path.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tabsync/tabsync/internal/calculator"
	"github.com/tabsync/tabsync/internal/gateway"
	"github.com/tabsync/tabsync/internal/ledger"
	"github.com/tabsync/tabsync/internal/metrics"
	"github.com/tabsync/tabsync/internal/models"
	"github.com/tabsync/tabsync/internal/settlement"
	"github.com/tabsync/tabsync/internal/storage"
)

var (
	ErrNotMember      = errors.New("user is not a member of this group")
	ErrNoActiveEvent  = errors.New("group has no active event")
	ErrEventExists    = errors.New("group already has an active event")
	ErrInvalidAmount  = errors.New("amount must be positive with at most two decimal places")
	ErrNoDebtors       = errors.New("expense needs at least one debtor")
	ErrSelfOnlyDebtor  = errors.New("payer cannot be the sole debtor")
	ErrDuplicateDebtor = errors.New("debtor listed more than once")
)

// originLocal and originRemote label the mutation metric by where the
// mutation entered the system.
const (
	originLocal  = "local"
	originRemote = "remote"
)

// EventInput carries the fields for creating an event.
type EventInput struct {
	Title       string `json:"title" validate:"required,max=120"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"max=500"`
}

// ExpenseInput carries the fields for recording an expense. Exactly one
// of Debtor and SplitBetween should be set; Debtor wins when both are.
type ExpenseInput struct {
	ItemName     string          `json:"item_name" validate:"required,max=200"`
	Amount       decimal.Decimal `json:"amount"`
	Debtor       string          `json:"debtor,omitempty"`
	SplitBetween []string        `json:"split_between,omitempty" validate:"omitempty,unique,dive,required"`
}

// SettleResult reports the outcome of a settlement, and doubles as the
// preview payload before the debtor confirms.
type SettleResult struct {
	// Total is the sum cleared (or to clear) across matching expenses.
	Total decimal.Decimal `json:"total"`

	// PaymentLink is the external provider deep link for Total.
	PaymentLink string `json:"payment_link"`

	// Removed and Adjusted count the affected expense entries.
	Removed  int `json:"removed"`
	Adjusted int `json:"adjusted"`
}

// LedgerService owns the event lifecycle, expense mutations, balances
// and settlement for all groups.
type LedgerService struct {
	store       storage.Store
	ledger      *ledger.Store
	broadcaster gateway.Broadcaster
	validate    *validator.Validate
}

// NewLedgerService creates the service. The broadcaster is typically
// the gateway; tests substitute a spy.
func NewLedgerService(store storage.Store, led *ledger.Store, broadcaster gateway.Broadcaster) *LedgerService {
	return &LedgerService{
		store:       store,
		ledger:      led,
		broadcaster: broadcaster,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateEvent opens the group's active event. Fails with ErrEventExists
// when one is already open.
func (s *LedgerService) CreateEvent(ctx context.Context, actor, groupID string, in EventInput) (*models.Event, error) {
	if err := s.requireMember(ctx, groupID, actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	if existing, err := s.activeEvent(ctx, groupID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrEventExists
	}

	event := &models.Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Date:        in.Date,
		Description: in.Description,
		CreatedAt:   time.Now().Unix(),
	}
	if err := s.store.CreateEvent(ctx, groupID, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.ledger.SetEvent(groupID, event)
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindSetEvent), originLocal).Inc()

	snap := s.ledger.Snapshot(groupID)
	s.broadcaster.Broadcast(ctx, gateway.Message{
		GroupID: groupID,
		Kind:    gateway.KindSetEvent,
		Event:   snap,
		Origin:  actor,
	})
	slog.Info("event created", "group_id", groupID, "event_id", event.ID, "actor", actor)
	return snap, nil
}

// CancelEvent archives the active event and clears live state. A group
// with no active event is left untouched and no error is returned.
func (s *LedgerService) CancelEvent(ctx context.Context, actor, groupID string) error {
	if err := s.requireMember(ctx, groupID, actor); err != nil {
		return err
	}
	event, err := s.activeEvent(ctx, groupID)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	if err := s.store.ArchiveEvent(ctx, groupID); err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}
	s.ledger.SetEvent(groupID, nil)
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindSetEvent), originLocal).Inc()

	s.broadcaster.Broadcast(ctx, gateway.Message{
		GroupID: groupID,
		Kind:    gateway.KindSetEvent,
		Event:   nil,
		Origin:  actor,
	})
	slog.Info("event cancelled", "group_id", groupID, "event_id", event.ID, "actor", actor)
	return nil
}

// AddExpense records an expense fronted by actor against the group's
// active event.
func (s *LedgerService) AddExpense(ctx context.Context, actor, groupID string, in ExpenseInput) (*models.Expense, error) {
	group, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(actor) {
		return nil, ErrNotMember
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid expense: %w", err)
	}

	expense := models.Expense{
		ID:        uuid.NewString(),
		ItemName:  in.ItemName,
		Amount:    in.Amount,
		Payer:     actor,
		Split:     in.contribution(),
		CreatedAt: time.Now().Unix(),
	}
	if err := s.checkExpense(group, expense); err != nil {
		return nil, err
	}

	event, err := s.activeEvent(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrNoActiveEvent
	}

	if err := s.store.AppendExpense(ctx, event.ID, &expense); err != nil {
		return nil, fmt.Errorf("failed to persist expense: %w", err)
	}
	s.ledger.AddExpense(groupID, &expense)
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindAddExpense), originLocal).Inc()

	out := expense.Clone()
	s.broadcaster.Broadcast(ctx, gateway.Message{
		GroupID: groupID,
		Kind:    gateway.KindAddExpense,
		Expense: &out,
		Origin:  actor,
	})
	return &out, nil
}

// UpdateExpense applies a partial edit to one expense. Returns false
// without error when the target is missing or the patch changes
// nothing; no broadcast is sent in that case.
func (s *LedgerService) UpdateExpense(ctx context.Context, actor, groupID, expenseID string, patch ledger.Patch) (bool, error) {
	if err := s.requireMember(ctx, groupID, actor); err != nil {
		return false, err
	}
	if err := checkPatch(patch); err != nil {
		return false, err
	}

	event, err := s.activeEvent(ctx, groupID)
	if err != nil {
		return false, err
	}
	if event == nil {
		return false, ErrNoActiveEvent
	}

	if !s.ledger.UpdateExpense(groupID, expenseID, patch) {
		return false, nil
	}
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindUpdateExpense), originLocal).Inc()

	if err := s.persistUpdated(ctx, groupID, expenseID); err != nil {
		return true, err
	}
	s.broadcaster.Broadcast(ctx, gateway.Message{
		GroupID:   groupID,
		Kind:      gateway.KindUpdateExpense,
		ExpenseID: expenseID,
		Patch:     &patch,
		Origin:    actor,
	})
	return true, nil
}

// RemoveExpense deletes one expense. Returns false without error when
// no such expense exists.
func (s *LedgerService) RemoveExpense(ctx context.Context, actor, groupID, expenseID string) (bool, error) {
	if err := s.requireMember(ctx, groupID, actor); err != nil {
		return false, err
	}
	if _, err := s.activeEvent(ctx, groupID); err != nil {
		return false, err
	}

	if !s.ledger.RemoveExpense(groupID, expenseID) {
		return false, nil
	}
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindRemoveExpense), originLocal).Inc()

	if err := s.store.DeleteExpense(ctx, expenseID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return true, fmt.Errorf("failed to delete expense: %w", err)
	}
	s.broadcaster.Broadcast(ctx, gateway.Message{
		GroupID:   groupID,
		Kind:      gateway.KindRemoveExpense,
		ExpenseID: expenseID,
		Origin:    actor,
	})
	return true, nil
}

// Balances computes the group's per-member totals and pairwise debts
// from the active event. A group with no active event yields all-zero
// balances for every member.
func (s *LedgerService) Balances(ctx context.Context, actor, groupID string) (map[string]*calculator.MemberBalance, error) {
	group, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(actor) {
		return nil, ErrNotMember
	}
	event, err := s.activeEvent(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.Balances(event, group.Members), nil
}

// PreviewSettlement computes what actor would clear by paying toUser,
// with the provider deep link, without mutating anything.
func (s *LedgerService) PreviewSettlement(ctx context.Context, actor, groupID, toUser string) (*SettleResult, error) {
	plan, link, err := s.planSettlement(ctx, actor, groupID, toUser)
	if err != nil {
		return nil, err
	}
	return settleResult(plan, link), nil
}

// Settle executes actor's confirmation of having paid toUser: every
// matching contribution is cleared from live state in one atomic step,
// an audit record is written, and the canonical post-settlement event
// is broadcast to the group.
func (s *LedgerService) Settle(ctx context.Context, actor, groupID, toUser string) (*SettleResult, error) {
	plan, link, err := s.planSettlement(ctx, actor, groupID, toUser)
	if err != nil {
		return nil, err
	}

	record := &models.Settlement{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		FromUser:  actor,
		ToUser:    toUser,
		Amount:    plan.Total,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.store.ApplySettlement(ctx, plan, record); err != nil {
		return nil, fmt.Errorf("failed to persist settlement: %w", err)
	}
	s.ledger.Settle(groupID, plan.RemoveIDs, plan.Adjusted)
	metrics.MutationsApplied.WithLabelValues("settle", originLocal).Inc()

	s.broadcaster.Broadcast(ctx, gateway.Message{
		GroupID: groupID,
		Kind:    gateway.KindSetEvent,
		Event:   s.ledger.Snapshot(groupID),
		Origin:  actor,
	})
	slog.Info("settlement applied",
		"group_id", groupID,
		"from", actor,
		"to", toUser,
		"total", plan.Total.StringFixed(2),
		"removed", len(plan.RemoveIDs),
		"adjusted", len(plan.Adjusted),
	)
	return settleResult(plan, link), nil
}

// Resync reloads the group's authoritative event state from storage
// into the ledger and returns it. Used by clients after a reconnect; it
// deliberately does not broadcast.
func (s *LedgerService) Resync(ctx context.Context, actor, groupID string) (*models.Event, error) {
	if err := s.requireMember(ctx, groupID, actor); err != nil {
		return nil, err
	}
	event, err := s.store.GetEvent(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	s.ledger.SetEvent(groupID, event)
	return s.ledger.Snapshot(groupID), nil
}

// ApplyRemote handles a mutation received over the gateway from a
// peer's replica. Inputs are re-validated as if local; mutations that
// were already applied (redelivery, races) are dropped silently.
func (s *LedgerService) ApplyRemote(ctx context.Context, origin string, msg gateway.Message) error {
	group, err := s.group(ctx, msg.GroupID)
	if err != nil {
		return err
	}
	if !group.HasMember(origin) {
		return ErrNotMember
	}

	switch msg.Kind {
	case gateway.KindAddExpense:
		return s.applyRemoteAdd(ctx, group, origin, msg)
	case gateway.KindUpdateExpense:
		return s.applyRemoteUpdate(ctx, origin, msg)
	case gateway.KindRemoveExpense:
		return s.applyRemoteRemove(ctx, origin, msg)
	case gateway.KindSetEvent:
		return s.applyRemoteSetEvent(ctx, origin, msg)
	default:
		return fmt.Errorf("unknown mutation kind %q", msg.Kind)
	}
}

func (s *LedgerService) applyRemoteAdd(ctx context.Context, group *models.Group, origin string, msg gateway.Message) error {
	if msg.Expense == nil {
		return errors.New("add_expense without expense payload")
	}
	expense := msg.Expense.Clone()
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	if expense.Payer == "" {
		expense.Payer = origin
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if err := s.checkExpense(group, expense); err != nil {
		return err
	}

	event, err := s.activeEvent(ctx, msg.GroupID)
	if err != nil {
		return err
	}
	if event == nil {
		return ErrNoActiveEvent
	}

	if !s.ledger.AddExpense(msg.GroupID, &expense) {
		return nil
	}
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindAddExpense), originRemote).Inc()
	if err := s.store.AppendExpense(ctx, event.ID, &expense); err != nil {
		return fmt.Errorf("failed to persist expense: %w", err)
	}

	msg.Expense = &expense
	msg.Origin = origin
	s.broadcaster.Broadcast(ctx, msg)
	return nil
}

func (s *LedgerService) applyRemoteUpdate(ctx context.Context, origin string, msg gateway.Message) error {
	if msg.Patch == nil || msg.ExpenseID == "" {
		return errors.New("update_expense without target or patch")
	}
	if err := checkPatch(*msg.Patch); err != nil {
		return err
	}
	if _, err := s.activeEvent(ctx, msg.GroupID); err != nil {
		return err
	}

	if !s.ledger.UpdateExpense(msg.GroupID, msg.ExpenseID, *msg.Patch) {
		return nil
	}
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindUpdateExpense), originRemote).Inc()
	if err := s.persistUpdated(ctx, msg.GroupID, msg.ExpenseID); err != nil {
		return err
	}

	msg.Origin = origin
	s.broadcaster.Broadcast(ctx, msg)
	return nil
}

func (s *LedgerService) applyRemoteRemove(ctx context.Context, origin string, msg gateway.Message) error {
	if msg.ExpenseID == "" {
		return errors.New("remove_expense without target")
	}
	if _, err := s.activeEvent(ctx, msg.GroupID); err != nil {
		return err
	}

	if !s.ledger.RemoveExpense(msg.GroupID, msg.ExpenseID) {
		return nil
	}
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindRemoveExpense), originRemote).Inc()
	if err := s.store.DeleteExpense(ctx, msg.ExpenseID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	msg.Origin = origin
	s.broadcaster.Broadcast(ctx, msg)
	return nil
}

// applyRemoteSetEvent only honors the clearing form. Event creation
// from a peer replica would bypass the one-active-event check under
// races, so remote clients create events through the HTTP operation.
func (s *LedgerService) applyRemoteSetEvent(ctx context.Context, origin string, msg gateway.Message) error {
	if msg.Event != nil {
		return errors.New("set_event with a payload is not accepted from peers")
	}
	event, err := s.activeEvent(ctx, msg.GroupID)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	if err := s.store.ArchiveEvent(ctx, msg.GroupID); err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}
	s.ledger.SetEvent(msg.GroupID, nil)
	metrics.MutationsApplied.WithLabelValues(string(gateway.KindSetEvent), originRemote).Inc()

	msg.Origin = origin
	s.broadcaster.Broadcast(ctx, msg)
	return nil
}

// ApplyRelayed folds a mutation relayed from a peer process into the
// in-memory ledger only. The peer validated and persisted it before
// publishing, and the shared database already holds the write; without
// this, a warm ledger cache would serve the pre-mutation snapshot
// forever.
func (s *LedgerService) ApplyRelayed(_ context.Context, msg gateway.Message) error {
	switch msg.Kind {
	case gateway.KindSetEvent:
		s.ledger.SetEvent(msg.GroupID, msg.Event)
	case gateway.KindAddExpense:
		if msg.Expense == nil {
			return errors.New("add_expense without expense payload")
		}
		expense := msg.Expense.Clone()
		s.ledger.AddExpense(msg.GroupID, &expense)
	case gateway.KindUpdateExpense:
		if msg.Patch == nil || msg.ExpenseID == "" {
			return errors.New("update_expense without target or patch")
		}
		s.ledger.UpdateExpense(msg.GroupID, msg.ExpenseID, *msg.Patch)
	case gateway.KindRemoveExpense:
		if msg.ExpenseID == "" {
			return errors.New("remove_expense without target")
		}
		s.ledger.RemoveExpense(msg.GroupID, msg.ExpenseID)
	default:
		return fmt.Errorf("unknown mutation kind %q", msg.Kind)
	}
	return nil
}

// IsMember reports whether username belongs to the group. The gateway
// uses it to gate room joins.
func (s *LedgerService) IsMember(ctx context.Context, groupID, username string) bool {
	group, err := s.group(ctx, groupID)
	if err != nil {
		return false
	}
	return group.HasMember(username)
}

// activeEvent returns the group's live event, loading it from storage
// on a cold cache. Returns (nil, nil) when the group has none.
func (s *LedgerService) activeEvent(ctx context.Context, groupID string) (*models.Event, error) {
	if snap := s.ledger.Snapshot(groupID); snap != nil {
		return snap, nil
	}
	event, err := s.store.GetEvent(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if event == nil {
		return nil, nil
	}
	s.ledger.SetEvent(groupID, event)
	return s.ledger.Snapshot(groupID), nil
}

func (s *LedgerService) group(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return group, nil
}

func (s *LedgerService) requireMember(ctx context.Context, groupID, username string) error {
	group, err := s.group(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.HasMember(username) {
		return ErrNotMember
	}
	return nil
}

// checkExpense enforces the semantic rules the struct tags cannot:
// amount precision, debtor membership and the self-loop rejection.
func (s *LedgerService) checkExpense(group *models.Group, e models.Expense) error {
	if err := checkAmount(e.Amount); err != nil {
		return err
	}
	debtors := e.Split.Debtors()
	if len(debtors) == 0 {
		return ErrNoDebtors
	}
	if e.Split.Kind == models.SplitSingle && e.Split.Debtor == e.Payer {
		return ErrSelfOnlyDebtor
	}
	seen := make(map[string]bool, len(debtors))
	for _, d := range debtors {
		if !group.HasMember(d) {
			return fmt.Errorf("debtor %q: %w", d, ErrNotMember)
		}
		if seen[d] {
			return fmt.Errorf("debtor %q: %w", d, ErrDuplicateDebtor)
		}
		seen[d] = true
	}
	return nil
}

// planSettlement runs the shared preview/confirm front half: membership
// checks, plan construction and the payment link. The link is resolved
// before anything mutates so a missing handle blocks confirmation.
func (s *LedgerService) planSettlement(ctx context.Context, actor, groupID, toUser string) (*settlement.Plan, string, error) {
	group, err := s.group(ctx, groupID)
	if err != nil {
		return nil, "", err
	}
	if !group.HasMember(actor) || !group.HasMember(toUser) {
		return nil, "", ErrNotMember
	}

	event, err := s.activeEvent(ctx, groupID)
	if err != nil {
		return nil, "", err
	}
	plan, err := settlement.BuildPlan(event, actor, toUser)
	if err != nil {
		return nil, "", err
	}

	payee, err := s.store.GetUserByUsername(ctx, toUser)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load payee: %w", err)
	}
	link, err := settlement.PaymentLink(payee.PaymentHandle, plan.Total)
	if err != nil {
		return nil, "", err
	}
	return plan, link, nil
}

// persistUpdated writes the post-patch expense row back to storage.
func (s *LedgerService) persistUpdated(ctx context.Context, groupID, expenseID string) error {
	snap := s.ledger.Snapshot(groupID)
	if snap == nil {
		return nil
	}
	i := snap.FindExpense(expenseID)
	if i < 0 {
		return nil
	}
	if err := s.store.UpdateExpense(ctx, snap.Expenses[i]); err != nil {
		return fmt.Errorf("failed to persist expense update: %w", err)
	}
	return nil
}

func (in ExpenseInput) contribution() models.Contribution {
	if in.Debtor != "" {
		return models.SingleDebtor(in.Debtor)
	}
	return models.EvenSplit(in.SplitBetween...)
}

func checkAmount(d decimal.Decimal) error {
	if !d.IsPositive() || !d.Equal(d.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func checkPatch(p ledger.Patch) error {
	if p.ItemName != nil && *p.ItemName == "" {
		return errors.New("item name cannot be empty")
	}
	if p.Amount != nil {
		return checkAmount(*p.Amount)
	}
	return nil
}

func settleResult(plan *settlement.Plan, link string) *SettleResult {
	return &SettleResult{
		Total:       plan.Total,
		PaymentLink: link,
		Removed:     len(plan.RemoveIDs),
		Adjusted:    len(plan.Adjusted),
	}
}
