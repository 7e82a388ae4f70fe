package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tabsync/tabsync/internal/models"
)

// CreateEvent persists a group's new active event. The UNIQUE
// constraint on events.group_id enforces at most one active event per
// group at the schema level.
func (s *SQLiteStore) CreateEvent(ctx context.Context, groupID string, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}

	var description interface{}
	if event.Description != "" {
		description = event.Description
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO events (id, group_id, title, event_date, description, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		event.ID, groupID, event.Title, event.Date, description, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	for i := range event.Expenses {
		if err := insertExpense(ctx, tx, event.ID, &event.Expenses[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetEvent retrieves the group's active event with its expenses, or
// (nil, nil) when the group has none.
func (s *SQLiteStore) GetEvent(ctx context.Context, groupID string) (*models.Event, error) {
	event := &models.Event{}
	var description sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, event_date, description, created_at FROM events WHERE group_id = ?",
		groupID,
	).Scan(&event.ID, &event.Title, &event.Date, &description, &event.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // no active event
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if description.Valid {
		event.Description = description.String
	}

	expenses, err := s.listExpenses(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	event.Expenses = expenses

	return event, nil
}

// ArchiveEvent retires the group's active event: the event row and its
// expense rows are copied to the archive tables, then removed from
// live state, all in one transaction. No-op when the group has no
// active event. Clearing an event destroys its live expense list by
// design, but the financial history survives in the archive.
func (s *SQLiteStore) ArchiveEvent(ctx context.Context, groupID string) error {
	event, err := s.GetEvent(ctx, groupID)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var description interface{}
	if event.Description != "" {
		description = event.Description
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO archived_events (id, group_id, title, event_date, description, created_at, archived_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		event.ID, groupID, event.Title, event.Date, description, event.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}

	for _, expense := range event.Expenses {
		if err := archiveExpense(ctx, tx, event.ID, expense, now); err != nil {
			return err
		}
	}

	// ON DELETE CASCADE clears expenses and expense_debtors.
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", event.ID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
