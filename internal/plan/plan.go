package plan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"preppilot/internal/recipe"
	"preppilot/internal/shared"
)

// PrepStatus is the lifecycle state of a meal slot's preparation.
type PrepStatus string

const (
	StatusPending PrepStatus = "PENDING"
	StatusDone    PrepStatus = "DONE"
	StatusSkipped PrepStatus = "SKIPPED"
)

// ParsePrepStatus validates a raw status string.
func ParsePrepStatus(s string) (PrepStatus, error) {
	switch PrepStatus(s) {
	case StatusPending, StatusDone, StatusSkipped:
		return PrepStatus(s), nil
	}
	return "", shared.NewValidationError("prep_status", "unknown status %q", s)
}

// Slot binds one (date, meal_type) of a plan to a recipe snapshot.
type Slot struct {
	ID              string          `json:"id"`
	Date            time.Time       `json:"date"`
	MealType        recipe.MealType `json:"meal_type"`
	Recipe          recipe.Recipe   `json:"recipe"`
	PrepStatus      PrepStatus      `json:"prep_status"`
	PrepCompletedAt *time.Time      `json:"prep_completed_at,omitempty"`
}

// MarkPrep transitions a pending slot to DONE or SKIPPED. Those states are
// terminal under normal operation; the only way back to PENDING is
// ResetForAdaptation.
func (s *Slot) MarkPrep(status PrepStatus, now time.Time) error {
	if status != StatusDone && status != StatusSkipped {
		return shared.NewValidationError("prep_status", "can only mark a slot DONE or SKIPPED, got %q", status)
	}
	if s.PrepStatus != StatusPending {
		return shared.NewValidationError("prep_status", "slot is already %s", s.PrepStatus)
	}
	s.PrepStatus = status
	completed := now
	s.PrepCompletedAt = &completed
	return nil
}

// ResetForAdaptation overwrites the slot's recipe and resets it to PENDING.
// This is the single permitted backward transition, owned by the adaptive
// planner when it replaces a slot's recipe.
func (s *Slot) ResetForAdaptation(newRecipe recipe.Recipe) {
	s.Recipe = newRecipe
	s.PrepStatus = StatusPending
	s.PrepCompletedAt = nil
}

// Plan is a meal plan covering every date in [StartDate, EndDate] for a
// fixed set of meal types. Version supports optimistic concurrency on
// updates.
type Plan struct {
	ID        string            `json:"id"`
	DietType  string            `json:"diet_type"`
	StartDate time.Time         `json:"start_date"`
	EndDate   time.Time         `json:"end_date"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Version   int64             `json:"-"`
	MealTypes []recipe.MealType `json:"meal_types"`
	Slots     []Slot            `json:"slots"`
}

// RecipeSource supplies candidate recipes for a meal type. Recipe selection
// itself is a collaborator concern; the plan only requires candidates to be
// returned in a deterministic order.
type RecipeSource interface {
	ByMealType(ctx context.Context, dietType string, mt recipe.MealType) ([]recipe.Recipe, error)
}

// Generate builds a plan of the given length starting at startDate, one slot
// per (date, meal type). Candidates rotate round-robin per meal type so a
// multi-day plan varies without any randomness.
func Generate(ctx context.Context, dietType string, startDate time.Time, days int, mealTypes []recipe.MealType, src RecipeSource) (*Plan, error) {
	if days < 1 {
		return nil, shared.NewValidationError("days", "must be at least 1, got %d", days)
	}
	if len(mealTypes) == 0 {
		return nil, shared.NewValidationError("meal_types", "must not be empty")
	}
	startDate = Midnight(startDate)
	now := time.Now().UTC()

	candidates := make(map[recipe.MealType][]recipe.Recipe, len(mealTypes))
	for _, mt := range mealTypes {
		recipes, err := src.ByMealType(ctx, dietType, mt)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s candidates: %w", mt, err)
		}
		if len(recipes) == 0 {
			return nil, fmt.Errorf("no %s recipes available for diet %q", mt, dietType)
		}
		candidates[mt] = recipes
	}

	p := &Plan{
		ID:        uuid.NewString(),
		DietType:  dietType,
		StartDate: startDate,
		EndDate:   startDate.AddDate(0, 0, days-1),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
		MealTypes: append([]recipe.MealType(nil), mealTypes...),
	}

	var chosen []recipe.Recipe
	for day := 0; day < days; day++ {
		date := startDate.AddDate(0, 0, day)
		for _, mt := range mealTypes {
			pool := candidates[mt]
			rec := pool[day%len(pool)]
			chosen = append(chosen, rec)
			p.Slots = append(p.Slots, Slot{
				ID:         uuid.NewString(),
				Date:       date,
				MealType:   mt,
				PrepStatus: StatusPending,
			})
		}
	}

	// Reusability indices are a property of the chosen set, not of the
	// catalog recipe.
	recipe.SetReusability(chosen)
	for i := range p.Slots {
		p.Slots[i].Recipe = chosen[i]
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("generated plan failed validation: %w", err)
	}
	return p, nil
}

// Validate checks the coverage invariant: the slots' (date, meal_type)
// pairs are exactly the cross-product of the plan's dates and meal types,
// with no gaps and no duplicates.
func (p *Plan) Validate() error {
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("plan end date precedes start date")
	}

	want := make(map[string]bool)
	for d := p.StartDate; !d.After(p.EndDate); d = d.AddDate(0, 0, 1) {
		for _, mt := range p.MealTypes {
			want[coverageKey(d, mt)] = false
		}
	}

	for _, s := range p.Slots {
		key := coverageKey(s.Date, s.MealType)
		seen, ok := want[key]
		if !ok {
			return fmt.Errorf("slot %s outside plan coverage (%s %s)", s.ID, s.Date.Format("2006-01-02"), s.MealType)
		}
		if seen {
			return fmt.Errorf("duplicate slot for %s %s", s.Date.Format("2006-01-02"), s.MealType)
		}
		want[key] = true
	}

	for key, seen := range want {
		if !seen {
			return fmt.Errorf("missing slot for %s", key)
		}
	}
	return nil
}

// SlotFor finds the slot for a (date, meal type), or nil.
func (p *Plan) SlotFor(date time.Time, mt recipe.MealType) *Slot {
	date = Midnight(date)
	for i := range p.Slots {
		if p.Slots[i].Date.Equal(date) && p.Slots[i].MealType == mt {
			return &p.Slots[i]
		}
	}
	return nil
}

// SlotsOn returns the slots scheduled on a date, in meal-type order.
func (p *Plan) SlotsOn(date time.Time) []Slot {
	date = Midnight(date)
	var out []Slot
	for _, s := range p.Slots {
		if s.Date.Equal(date) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MealType.Order() < out[j].MealType.Order()
	})
	return out
}

// Clone returns a deep copy. Adaptation operates on copies so a rejected
// proposal never touches the caller's plan.
func (p *Plan) Clone() *Plan {
	out := *p
	out.MealTypes = append([]recipe.MealType(nil), p.MealTypes...)
	out.Slots = make([]Slot, len(p.Slots))
	for i, s := range p.Slots {
		cs := s
		cs.Recipe.Ingredients = append([]recipe.Ingredient(nil), s.Recipe.Ingredients...)
		cs.Recipe.PrepSteps = append([]string(nil), s.Recipe.PrepSteps...)
		cs.Recipe.DietTags = append([]string(nil), s.Recipe.DietTags...)
		if s.PrepCompletedAt != nil {
			t := *s.PrepCompletedAt
			cs.PrepCompletedAt = &t
		}
		out.Slots[i] = cs
	}
	return &out
}

// Midnight truncates a time to its UTC date. Slot dates are always
// midnight-UTC so equality checks are exact.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func coverageKey(date time.Time, mt recipe.MealType) string {
	return Midnight(date).Format("2006-01-02") + "/" + string(mt)
}
