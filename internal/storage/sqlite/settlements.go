package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tabsync/tabsync/internal/models"
	"github.com/tabsync/tabsync/internal/settlement"
)

// ApplySettlement executes a settlement plan in one transaction:
// fully-settled expense rows are archived and deleted, partially
// settled ones are rewritten with the remaining debtors, and the
// settlement audit row is recorded. All-or-nothing, so a crash can
// never leave a half-settled debt on disk.
func (s *SQLiteStore) ApplySettlement(ctx context.Context, plan *settlement.Plan, record *models.Settlement) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range plan.RemoveIDs {
		expense, eventID, err := getExpense(ctx, tx, id)
		if err == sql.ErrNoRows {
			continue // already gone; settlement is replay-safe
		}
		if err != nil {
			return err
		}
		if err := archiveExpense(ctx, tx, eventID, *expense, record.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete settled expense: %w", err)
		}
	}

	for _, adjusted := range plan.Adjusted {
		_, err := tx.ExecContext(ctx,
			"UPDATE expenses SET item_name = ?, amount_cents = ?, split_kind = ? WHERE id = ?",
			adjusted.ItemName, toCents(adjusted.Amount), string(adjusted.Split.Kind), adjusted.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to rewrite expense: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM expense_debtors WHERE expense_id = ?", adjusted.ID); err != nil {
			return fmt.Errorf("failed to clear debtors: %w", err)
		}
		for i, debtor := range adjusted.Split.Debtors() {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO expense_debtors (expense_id, debtor, position) VALUES (?, ?, ?)",
				adjusted.ID, debtor, i,
			)
			if err != nil {
				return fmt.Errorf("failed to insert debtor: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO settlements (id, group_id, from_user, to_user, amount_cents, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		record.ID, record.GroupID, record.FromUser, record.ToUser, toCents(record.Amount), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// getExpense loads one expense row with its debtors inside tx.
// Returns sql.ErrNoRows when the row does not exist.
func getExpense(ctx context.Context, tx *sql.Tx, expenseID string) (*models.Expense, string, error) {
	expense := &models.Expense{}
	var eventID, kind string
	var cents int64

	err := tx.QueryRowContext(ctx,
		"SELECT id, event_id, item_name, amount_cents, payer, split_kind, created_at FROM expenses WHERE id = ?",
		expenseID,
	).Scan(&expense.ID, &eventID, &expense.ItemName, &cents, &expense.Payer, &kind, &expense.CreatedAt)
	if err != nil {
		return nil, "", err
	}
	expense.Amount = fromCents(cents)
	expense.Split.Kind = models.SplitKind(kind)

	rows, err := tx.QueryContext(ctx,
		"SELECT debtor FROM expense_debtors WHERE expense_id = ? ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get debtors: %w", err)
	}
	defer rows.Close()

	var debtors []string
	for rows.Next() {
		var debtor string
		if err := rows.Scan(&debtor); err != nil {
			return nil, "", fmt.Errorf("failed to scan debtor: %w", err)
		}
		debtors = append(debtors, debtor)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate debtors: %w", err)
	}

	switch expense.Split.Kind {
	case models.SplitSingle:
		if len(debtors) > 0 {
			expense.Split.Debtor = debtors[0]
		}
	case models.SplitEven:
		expense.Split.SplitBetween = debtors
	}

	return expense, eventID, nil
}
