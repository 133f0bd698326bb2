package fridge

import (
	"math"
	"sort"
	"time"

	"preppilot/internal/shared"
)

// MaxDaysRemaining bounds manual edits to a sane shelf life.
const MaxDaysRemaining = 365

// Item is a tracked fridge item. FreshnessPercentage is derived from
// DaysRemaining and OriginalFreshnessDays; it is never set independently.
type Item struct {
	ID                    string    `json:"id"`
	IngredientName        string    `json:"ingredient_name"`
	Quantity              string    `json:"quantity"`
	DaysRemaining         int       `json:"days_remaining"`
	OriginalFreshnessDays int       `json:"original_freshness_days"`
	AddedDate             time.Time `json:"added_date"`
	FreshnessPercentage   int       `json:"freshness_percentage"`
}

// Percentage is the single freshness computation used from every mutation
// path: round(100 * daysRemaining / originalFreshnessDays), clamped to
// [0, 100].
func Percentage(daysRemaining, originalFreshnessDays int) int {
	if originalFreshnessDays < 1 {
		return 0
	}
	pct := int(math.Round(100 * float64(daysRemaining) / float64(originalFreshnessDays)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// New creates a fresh item with a full shelf life.
func New(id, ingredientName, quantity string, freshnessDays int, addedDate time.Time) (Item, error) {
	if freshnessDays < 1 || freshnessDays > MaxDaysRemaining {
		return Item{}, shared.NewValidationError("freshness_days", "must be between 1 and %d, got %d", MaxDaysRemaining, freshnessDays)
	}
	if ingredientName == "" {
		return Item{}, shared.NewValidationError("ingredient_name", "must not be empty")
	}

	return Item{
		ID:                    id,
		IngredientName:        ingredientName,
		Quantity:              quantity,
		DaysRemaining:         freshnessDays,
		OriginalFreshnessDays: freshnessDays,
		AddedDate:             addedDate,
		FreshnessPercentage:   Percentage(freshnessDays, freshnessDays),
	}, nil
}

// DecayAll reduces every item's remaining life by the given number of days,
// clamping at zero. Pure: the input slice is untouched. Idempotent for
// days=0.
func DecayAll(items []Item, days int) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		item.DaysRemaining -= days
		if item.DaysRemaining < 0 {
			item.DaysRemaining = 0
		}
		item.FreshnessPercentage = Percentage(item.DaysRemaining, item.OriginalFreshnessDays)
		out[i] = item
	}
	return out
}

// Expiring returns the items with days_remaining at or below the threshold,
// most urgent first. Ties break by ingredient name for determinism.
func Expiring(items []Item, thresholdDays int) []Item {
	var out []Item
	for _, item := range items {
		if item.DaysRemaining <= thresholdDays {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysRemaining != out[j].DaysRemaining {
			return out[i].DaysRemaining < out[j].DaysRemaining
		}
		return out[i].IngredientName < out[j].IngredientName
	})
	return out
}

// ApplyManualUpdate applies a user edit to quantity and/or days remaining.
// Out-of-range values are rejected, never clamped: only decay clamps at
// zero. The original freshness denominator is fixed at creation.
func ApplyManualUpdate(item Item, quantity *string, daysRemaining *int) (Item, error) {
	if daysRemaining != nil {
		if *daysRemaining < 0 || *daysRemaining > MaxDaysRemaining {
			return Item{}, shared.NewValidationError("days_remaining", "must be between 0 and %d, got %d", MaxDaysRemaining, *daysRemaining)
		}
		item.DaysRemaining = *daysRemaining
		item.FreshnessPercentage = Percentage(item.DaysRemaining, item.OriginalFreshnessDays)
	}
	if quantity != nil {
		if *quantity == "" {
			return Item{}, shared.NewValidationError("quantity", "must not be empty")
		}
		item.Quantity = *quantity
	}
	return item, nil
}
