package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrConflict reports that a plan was modified since the caller's last read.
// Distinct from validation errors so callers can refetch-and-retry instead
// of aborting.
var ErrConflict = errors.New("plan modified concurrently")

// ErrNotFound reports a missing plan.
var ErrNotFound = errors.New("plan not found")

// Repository is a database-backed repository for meal plans. Plans are
// stored as JSON blobs with a version column for optimistic concurrency.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save inserts a new plan at version 1.
func (r *Repository) Save(ctx context.Context, p *Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	p.Version = 1
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO meal_plans (id, diet_type, plan_data, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.DietType, string(data), p.Version, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

// Get retrieves a plan by ID, populating Version from the row.
func (r *Repository) Get(ctx context.Context, id string) (*Plan, error) {
	var data string
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT plan_data, version FROM meal_plans WHERE id = ?`, id).Scan(&data, &version)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	var p Plan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan JSON: %w", err)
	}
	p.Version = version
	return &p, nil
}

// Latest retrieves the most recently created plan, or ErrNotFound.
func (r *Repository) Latest(ctx context.Context) (*Plan, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM meal_plans ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest plan: %w", err)
	}
	return r.Get(ctx, id)
}

// Update replaces a plan's slots, applied transactionally against the
// version the caller read. A concurrent modification surfaces as
// ErrConflict; the stale plan is never silently overwritten.
func (r *Repository) Update(ctx context.Context, p *Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE meal_plans SET plan_data = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(data), time.Now().UTC(), p.ID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Either the plan is gone or someone got there first.
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meal_plans WHERE id = ?`, p.ID).Scan(&exists); err == nil && exists == 0 {
			return ErrNotFound
		}
		return fmt.Errorf("plan %s version %d: %w", p.ID, p.Version, ErrConflict)
	}

	p.Version++
	return nil
}
