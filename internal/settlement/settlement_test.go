package settlement

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tabsync/tabsync/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuildPlan(t *testing.T) {
	tests := []struct {
		name     string
		expenses []models.Expense
		from, to string
		wantErr  error
		verify   func(t *testing.T, plan *Plan)
	}{
		{
			name: "single-debtor expense is removed outright",
			expenses: []models.Expense{
				{ID: "e1", ItemName: "Snacks", Amount: dec("10.00"), Payer: "Carol", Split: models.SingleDebtor("Alice")},
			},
			from: "Alice", to: "Carol",
			verify: func(t *testing.T, plan *Plan) {
				if len(plan.RemoveIDs) != 1 || plan.RemoveIDs[0] != "e1" {
					t.Errorf("remove ids = %v, want [e1]", plan.RemoveIDs)
				}
				if len(plan.Adjusted) != 0 {
					t.Errorf("unexpected adjusted entries: %v", plan.Adjusted)
				}
				if !plan.Total.Equal(dec("10.00")) {
					t.Errorf("total = %s, want 10.00", plan.Total)
				}
			},
		},
		{
			name: "even split extracts only the settling debtor's share",
			expenses: []models.Expense{
				{ID: "e1", ItemName: "Dinner", Amount: dec("90.00"), Payer: "Alice", Split: models.EvenSplit("Bob", "Carol")},
			},
			from: "Bob", to: "Alice",
			verify: func(t *testing.T, plan *Plan) {
				if len(plan.RemoveIDs) != 0 {
					t.Errorf("nothing should be removed outright, got %v", plan.RemoveIDs)
				}
				if len(plan.Adjusted) != 1 {
					t.Fatalf("got %d adjusted entries, want 1", len(plan.Adjusted))
				}
				adjusted := plan.Adjusted[0]
				if !adjusted.Amount.Equal(dec("45.00")) {
					t.Errorf("adjusted amount = %s, want 45.00 (Carol's untouched share)", adjusted.Amount)
				}
				if adjusted.Split.Kind != models.SplitSingle || adjusted.Split.Debtor != "Carol" {
					t.Errorf("adjusted split = %+v, want single debtor Carol", adjusted.Split)
				}
				if !plan.Total.Equal(dec("45.00")) {
					t.Errorf("total = %s, want 45.00", plan.Total)
				}
			},
		},
		{
			name: "multiple matching expenses settle together",
			expenses: []models.Expense{
				{ID: "e1", ItemName: "Dinner", Amount: dec("30.00"), Payer: "Alice", Split: models.SingleDebtor("Bob")},
				{ID: "e2", ItemName: "Taxi", Amount: dec("12.00"), Payer: "Alice", Split: models.EvenSplit("Bob", "Carol", "Dave")},
				{ID: "e3", ItemName: "Tickets", Amount: dec("40.00"), Payer: "Carol", Split: models.SingleDebtor("Bob")},
			},
			from: "Bob", to: "Alice",
			verify: func(t *testing.T, plan *Plan) {
				if len(plan.RemoveIDs) != 1 || plan.RemoveIDs[0] != "e1" {
					t.Errorf("remove ids = %v, want [e1]", plan.RemoveIDs)
				}
				if len(plan.Adjusted) != 1 || plan.Adjusted[0].ID != "e2" {
					t.Fatalf("adjusted = %v, want e2 only", plan.Adjusted)
				}
				// e3 has a different payer and must be untouched.
				if !plan.Total.Equal(dec("34.00")) {
					t.Errorf("total = %s, want 34.00", plan.Total)
				}
			},
		},
		{
			name: "rounding shares survive extraction exactly",
			expenses: []models.Expense{
				{ID: "e1", ItemName: "Pitcher", Amount: dec("10.00"), Payer: "Alice", Split: models.EvenSplit("Bob", "Carol", "Dave")},
			},
			from: "Bob", to: "Alice",
			verify: func(t *testing.T, plan *Plan) {
				// Bob, first in the list, carried the remainder cent.
				if !plan.Total.Equal(dec("3.34")) {
					t.Errorf("total = %s, want 3.34", plan.Total)
				}
				if !plan.Adjusted[0].Amount.Equal(dec("6.66")) {
					t.Errorf("remaining amount = %s, want 6.66", plan.Adjusted[0].Amount)
				}
			},
		},
		{
			name: "payer listed in a legacy split is not resurrected as a debtor",
			expenses: []models.Expense{
				{ID: "e1", ItemName: "Lunch", Amount: dec("30.00"), Payer: "Alice", Split: models.EvenSplit("Alice", "Bob", "Carol")},
			},
			from: "Bob", to: "Alice",
			verify: func(t *testing.T, plan *Plan) {
				if !plan.Total.Equal(dec("10.00")) {
					t.Errorf("total = %s, want 10.00", plan.Total)
				}
				adjusted := plan.Adjusted[0]
				if adjusted.Split.Includes("Alice") {
					t.Error("payer must not remain in the rewritten debtor set")
				}
				if !adjusted.Amount.Equal(dec("10.00")) {
					t.Errorf("remaining amount = %s, want 10.00 (Carol's share only)", adjusted.Amount)
				}
			},
		},
		{
			name: "no matching entries",
			expenses: []models.Expense{
				{ID: "e1", ItemName: "Dinner", Amount: dec("30.00"), Payer: "Alice", Split: models.SingleDebtor("Carol")},
			},
			from: "Bob", to: "Alice",
			wantErr: ErrNothingToSettle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &models.Event{ID: "ev1", Expenses: tt.expenses}
			plan, err := BuildPlan(event, tt.from, tt.to)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildPlan failed: %v", err)
			}
			tt.verify(t, plan)
		})
	}
}

func TestBuildPlanNilEvent(t *testing.T) {
	if _, err := BuildPlan(nil, "Bob", "Alice"); !errors.Is(err, ErrNothingToSettle) {
		t.Errorf("err = %v, want ErrNothingToSettle", err)
	}
}

// Settlement completeness: after applying a plan, no expense keeps the
// settling debtor in its debtor set with the same payer.
func TestPlanCompleteness(t *testing.T) {
	event := &models.Event{
		ID: "ev1",
		Expenses: []models.Expense{
			{ID: "e1", Amount: dec("30.00"), Payer: "Alice", Split: models.SingleDebtor("Bob")},
			{ID: "e2", Amount: dec("12.00"), Payer: "Alice", Split: models.EvenSplit("Bob", "Carol")},
			{ID: "e3", Amount: dec("9.00"), Payer: "Alice", Split: models.EvenSplit("Bob", "Carol", "Dave")},
		},
	}

	plan, err := BuildPlan(event, "Bob", "Alice")
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	removed := map[string]bool{}
	for _, id := range plan.RemoveIDs {
		removed[id] = true
	}
	rewritten := map[string]models.Expense{}
	for _, e := range plan.Adjusted {
		rewritten[e.ID] = e
	}

	for _, e := range event.Expenses {
		after, ok := rewritten[e.ID]
		if !ok {
			if removed[e.ID] {
				continue
			}
			after = e
		}
		if after.Payer == "Alice" && after.Split.Includes("Bob") {
			t.Errorf("expense %s still holds Bob's debt to Alice after settlement", e.ID)
		}
	}
}

func TestPaymentLink(t *testing.T) {
	link, err := PaymentLink("alice-venmo", dec("45.5"))
	if err != nil {
		t.Fatalf("PaymentLink failed: %v", err)
	}
	want := "venmo://pay?amount=45.50&recipient=alice-venmo"
	if link != want {
		t.Errorf("link = %q, want %q", link, want)
	}

	if _, err := PaymentLink("", dec("10.00")); !errors.Is(err, ErrNoPaymentHandle) {
		t.Errorf("err = %v, want ErrNoPaymentHandle", err)
	}
}
