package calculator

import (
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

func TestSplitEvenly(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		n      int
		want   []string
	}{
		{
			name:   "exact three-way split",
			amount: "30.00",
			n:      3,
			want:   []string{"10.00", "10.00", "10.00"},
		},
		{
			name:   "remainder cents go to the front",
			amount: "10.00",
			n:      3,
			want:   []string{"3.34", "3.33", "3.33"},
		},
		{
			name:   "two remainder cents",
			amount: "0.05",
			n:      3,
			want:   []string{"0.02", "0.02", "0.01"},
		},
		{
			name:   "single debtor gets everything",
			amount: "12.34",
			n:      1,
			want:   []string{"12.34"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := SplitEvenly(dec(tt.amount), tt.n)
			if len(shares) != len(tt.want) {
				t.Fatalf("got %d shares, want %d", len(shares), len(tt.want))
			}

			sum := decimal.Zero
			for i, share := range shares {
				if !share.Equal(dec(tt.want[i])) {
					t.Errorf("share[%d] = %s, want %s", i, share, tt.want[i])
				}
				sum = sum.Add(share)
			}
			if !sum.Equal(dec(tt.amount)) {
				t.Errorf("shares sum to %s, want %s (rounding leak)", sum, tt.amount)
			}
		})
	}
}

func TestSplitEvenlyZeroDebtors(t *testing.T) {
	if shares := SplitEvenly(dec("10.00"), 0); shares != nil {
		t.Errorf("expected nil shares for n=0, got %v", shares)
	}
}

func TestShares(t *testing.T) {
	tests := []struct {
		name    string
		expense models.Expense
		verify  func(t *testing.T, shares []Share)
	}{
		{
			name: "single debtor owes full amount",
			expense: models.Expense{
				ID:       "e1",
				ItemName: "Snacks",
				Amount:   dec("10.00"),
				Payer:    "Carol",
				Split:    models.SingleDebtor("Alice"),
			},
			verify: func(t *testing.T, shares []Share) {
				if len(shares) != 1 {
					t.Fatalf("got %d shares, want 1", len(shares))
				}
				s := shares[0]
				if s.Payer != "Carol" || s.Debtor != "Alice" || !s.Amount.Equal(dec("10.00")) {
					t.Errorf("unexpected share: %+v", s)
				}
			},
		},
		{
			name: "even split across two debtors",
			expense: models.Expense{
				ID:       "e2",
				ItemName: "Dinner",
				Amount:   dec("90.00"),
				Payer:    "Alice",
				Split:    models.EvenSplit("Bob", "Carol"),
			},
			verify: func(t *testing.T, shares []Share) {
				if len(shares) != 2 {
					t.Fatalf("got %d shares, want 2", len(shares))
				}
				for _, s := range shares {
					if !s.Amount.Equal(dec("45.00")) {
						t.Errorf("%s share = %s, want 45.00", s.Debtor, s.Amount)
					}
				}
			},
		},
		{
			name: "self-loop single debtor contributes nothing",
			expense: models.Expense{
				ID:     "e3",
				Amount: dec("20.00"),
				Payer:  "Alice",
				Split:  models.SingleDebtor("Alice"),
			},
			verify: func(t *testing.T, shares []Share) {
				if len(shares) != 0 {
					t.Errorf("expected no shares for self-loop, got %d", len(shares))
				}
			},
		},
		{
			name: "payer inside an even split still divides by full count",
			expense: models.Expense{
				ID:     "e4",
				Amount: dec("30.00"),
				Payer:  "Alice",
				Split:  models.EvenSplit("Alice", "Bob", "Carol"),
			},
			verify: func(t *testing.T, shares []Share) {
				if len(shares) != 2 {
					t.Fatalf("got %d shares, want 2", len(shares))
				}
				for _, s := range shares {
					if s.Debtor == "Alice" {
						t.Errorf("payer should not appear as debtor")
					}
					if !s.Amount.Equal(dec("10.00")) {
						t.Errorf("%s share = %s, want 10.00", s.Debtor, s.Amount)
					}
				}
			},
		},
		{
			name: "empty debtor set yields no shares",
			expense: models.Expense{
				ID:     "e5",
				Amount: dec("5.00"),
				Payer:  "Alice",
				Split:  models.Contribution{Kind: models.SplitEven},
			},
			verify: func(t *testing.T, shares []Share) {
				if len(shares) != 0 {
					t.Errorf("expected no shares, got %d", len(shares))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.verify(t, Shares(tt.expense))
		})
	}
}

func TestDebtorShare(t *testing.T) {
	expense := models.Expense{
		ID:     "e1",
		Amount: dec("10.00"),
		Payer:  "Alice",
		Split:  models.EvenSplit("Bob", "Carol", "Dave"),
	}

	share, ok := DebtorShare(expense, "Bob")
	if !ok {
		t.Fatal("expected Bob to have a share")
	}
	// Bob is first in the list, so he carries the remainder cent.
	if !share.Equal(dec("3.34")) {
		t.Errorf("Bob share = %s, want 3.34", share)
	}

	if _, ok := DebtorShare(expense, "Alice"); ok {
		t.Error("payer must not have a debtor share")
	}
	if _, ok := DebtorShare(expense, "Eve"); ok {
		t.Error("non-debtor must not have a share")
	}
}
