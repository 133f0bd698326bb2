package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"
)

// Repository is a database-backed repository for recipes. Recipes are stored
// as JSON blobs keyed by id.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save inserts or replaces a recipe.
func (r *Repository) Save(ctx context.Context, rec Recipe) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid recipe: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe to JSON: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO recipes (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		rec.ID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save recipe %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a recipe by its ID. Returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM recipes WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}

	var rec Recipe
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe JSON: %w", err)
	}
	return &rec, nil
}

// List retrieves all recipes ordered by name.
func (r *Repository) List(ctx context.Context) ([]Recipe, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, data FROM recipes`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []Recipe
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}
		var rec Recipe
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			log.Printf("Warning: failed to unmarshal recipe JSON for ID %s: %v", id, err)
			continue
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipes: %w", err)
	}

	sortByName(recipes)
	return recipes, nil
}

// ListByMealType retrieves recipes of one meal type, optionally restricted to
// those carrying a diet tag. Ordered by name for deterministic selection.
func (r *Repository) ListByMealType(ctx context.Context, mt MealType, dietTag string) ([]Recipe, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []Recipe
	for _, rec := range all {
		if rec.MealType != mt {
			continue
		}
		if dietTag != "" && !rec.HasTag(dietTag) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of stored recipes.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return count, nil
}

func sortByName(recipes []Recipe) {
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].Name < recipes[j].Name })
}
