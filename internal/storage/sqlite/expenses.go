package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tabsync/tabsync/internal/models"
	"github.com/tabsync/tabsync/internal/storage"
)

// insertExpense writes one expense row plus its debtor rows inside tx.
// One INSERT per expense is the additive-write discipline: concurrent
// appends from two processes are independent rows and cannot lose each
// other, unlike a read-modify-write of a whole list.
func insertExpense(ctx context.Context, tx *sql.Tx, eventID string, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	_, err := tx.ExecContext(ctx,
		"INSERT INTO expenses (id, event_id, item_name, amount_cents, payer, split_kind, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		expense.ID, eventID, expense.ItemName, toCents(expense.Amount), expense.Payer, string(expense.Split.Kind), expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i, debtor := range expense.Split.Debtors() {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_debtors (expense_id, debtor, position) VALUES (?, ?, ?)",
			expense.ID, debtor, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert debtor: %w", err)
		}
	}
	return nil
}

// AppendExpense inserts one expense under the event.
func (s *SQLiteStore) AppendExpense(ctx context.Context, eventID string, expense *models.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertExpense(ctx, tx, eventID, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateExpense rewrites the mutable fields of one expense row.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense models.Expense) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET item_name = ?, amount_cents = ? WHERE id = ?",
		expense.ItemName, toCents(expense.Amount), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("expense %q: %w", expense.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteExpense removes one expense row by id.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("expense %q: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// listExpenses loads every expense row for an event, with debtors in
// recorded order.
func (s *SQLiteStore) listExpenses(ctx context.Context, eventID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, item_name, amount_cents, payer, split_kind, created_at FROM expenses WHERE event_id = ? ORDER BY created_at, id",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var expense models.Expense
		var cents int64
		var kind string
		if err := rows.Scan(&expense.ID, &expense.ItemName, &cents, &expense.Payer, &kind, &expense.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expense.Amount = fromCents(cents)
		expense.Split.Kind = models.SplitKind(kind)
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for i := range expenses {
		debtors, err := s.listDebtors(ctx, expenses[i].ID)
		if err != nil {
			return nil, err
		}
		switch expenses[i].Split.Kind {
		case models.SplitSingle:
			if len(debtors) > 0 {
				expenses[i].Split.Debtor = debtors[0]
			}
		case models.SplitEven:
			expenses[i].Split.SplitBetween = debtors
		}
	}

	return expenses, nil
}

func (s *SQLiteStore) listDebtors(ctx context.Context, expenseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT debtor FROM expense_debtors WHERE expense_id = ? ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get debtors: %w", err)
	}
	defer rows.Close()

	var debtors []string
	for rows.Next() {
		var debtor string
		if err := rows.Scan(&debtor); err != nil {
			return nil, fmt.Errorf("failed to scan debtor: %w", err)
		}
		debtors = append(debtors, debtor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debtors: %w", err)
	}
	return debtors, nil
}

// archiveExpense copies one expense into archived_expenses inside tx.
// Debtors are flattened to a comma-joined column: archive rows are for
// human audit, not live queries.
func archiveExpense(ctx context.Context, tx *sql.Tx, eventID string, expense models.Expense, archivedAt int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO archived_expenses (id, event_id, item_name, amount_cents, payer, split_kind, debtors, created_at, archived_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		expense.ID, eventID, expense.ItemName, toCents(expense.Amount), expense.Payer,
		string(expense.Split.Kind), strings.Join(expense.Split.Debtors(), ","), expense.CreatedAt, archivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive expense: %w", err)
	}
	return nil
}
