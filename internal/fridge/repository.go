package fridge

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository is a database-backed repository for fridge items. The derived
// freshness percentage is computed on load, never stored.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Insert stores a new fridge item.
func (r *Repository) Insert(ctx context.Context, item Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fridge_items (id, ingredient_name, quantity, days_remaining, original_freshness_days, added_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.IngredientName, item.Quantity, item.DaysRemaining, item.OriginalFreshnessDays, item.AddedDate.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert fridge item: %w", err)
	}
	return nil
}

// Get retrieves a fridge item by id. Returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, ingredient_name, quantity, days_remaining, original_freshness_days, added_date
		 FROM fridge_items WHERE id = ?`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fridge item: %w", err)
	}
	return &item, nil
}

// List retrieves all fridge items ordered by ingredient name then id.
func (r *Repository) List(ctx context.Context) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ingredient_name, quantity, days_remaining, original_freshness_days, added_date
		 FROM fridge_items ORDER BY ingredient_name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fridge items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fridge item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fridge items: %w", err)
	}
	return items, nil
}

// Update persists changes to a single item.
func (r *Repository) Update(ctx context.Context, item Item) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE fridge_items SET quantity = ?, days_remaining = ? WHERE id = ?`,
		item.Quantity, item.DaysRemaining, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update fridge item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fridge item %s not found", item.ID)
	}
	return nil
}

// ReplaceAll writes every item's decayed state in a single transaction so a
// sweep is all-or-nothing: a store failure never leaves the fridge partially
// decayed.
func (r *Repository) ReplaceAll(ctx context.Context, items []Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if _, err := tx.ExecContext(ctx,
			`UPDATE fridge_items SET quantity = ?, days_remaining = ? WHERE id = ?`,
			item.Quantity, item.DaysRemaining, item.ID); err != nil {
			return fmt.Errorf("failed to update fridge item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fridge sweep: %w", err)
	}
	return nil
}

// Delete removes a fridge item.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM fridge_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete fridge item: %w", err)
	}
	return nil
}

// SweepExpired removes items whose remaining life has reached zero. Returns
// the number of rows removed.
func (r *Repository) SweepExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fridge_items WHERE days_remaining = 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired items: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var added time.Time
	if err := row.Scan(&item.ID, &item.IngredientName, &item.Quantity, &item.DaysRemaining, &item.OriginalFreshnessDays, &added); err != nil {
		return Item{}, err
	}
	item.AddedDate = added
	item.FreshnessPercentage = Percentage(item.DaysRemaining, item.OriginalFreshnessDays)
	return item, nil
}
