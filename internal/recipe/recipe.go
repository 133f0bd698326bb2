package recipe

import (
	"fmt"
	"strings"
)

// MealType identifies which meal of the day a recipe is intended for.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
)

// AllMealTypes lists meal types in day order. Slot ordering and tie-breaks
// rely on this order being stable.
var AllMealTypes = []MealType{MealBreakfast, MealLunch, MealDinner}

// ParseMealType validates a raw meal type string.
func ParseMealType(s string) (MealType, error) {
	mt := MealType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllMealTypes {
		if mt == known {
			return mt, nil
		}
	}
	return "", fmt.Errorf("unknown meal type %q", s)
}

// Order returns the position of the meal type within a day. Unknown types
// sort last.
func (m MealType) Order() int {
	for i, known := range AllMealTypes {
		if m == known {
			return i
		}
	}
	return len(AllMealTypes)
}

// Ingredient is a single recipe ingredient. Immutable once embedded in a
// Recipe.
type Ingredient struct {
	Name          string `json:"name" yaml:"name"`
	Quantity      string `json:"quantity" yaml:"quantity"`
	FreshnessDays int    `json:"freshness_days" yaml:"freshness_days"`
	Category      string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Recipe is immutable reference data; the engine never mutates a stored
// recipe. ReusabilityIndex is the one field computed per plan: the number of
// this recipe's ingredients shared with other recipes chosen into the same
// plan.
type Recipe struct {
	ID               string       `json:"id" yaml:"id"`
	Name             string       `json:"name" yaml:"name"`
	MealType         MealType     `json:"meal_type" yaml:"meal_type"`
	Ingredients      []Ingredient `json:"ingredients" yaml:"ingredients"`
	PrepSteps        []string     `json:"prep_steps" yaml:"prep_steps"`
	PrepTimeMinutes  int          `json:"prep_time_minutes" yaml:"prep_time_minutes"`
	ReusabilityIndex int          `json:"reusability_index,omitempty" yaml:"-"`
	DietTags         []string     `json:"diet_tags" yaml:"diet_tags"`
	Servings         int          `json:"servings,omitempty" yaml:"servings,omitempty"`
}

// HasTag reports whether the recipe carries the given diet tag
// (case-insensitive).
func (r Recipe) HasTag(tag string) bool {
	for _, t := range r.DietTags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// HasAllTags reports whether the recipe's diet tags are a superset of the
// given tags. This is the substitution compatibility rule.
func (r Recipe) HasAllTags(tags []string) bool {
	for _, tag := range tags {
		if !r.HasTag(tag) {
			return false
		}
	}
	return true
}

// UsesIngredient reports whether any ingredient name matches
// (case-insensitive).
func (r Recipe) UsesIngredient(name string) bool {
	for _, ing := range r.Ingredients {
		if strings.EqualFold(ing.Name, name) {
			return true
		}
	}
	return false
}

// Validate checks the fields a recipe needs before it can be planned.
func (r Recipe) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("recipe has no name")
	}
	if _, err := ParseMealType(string(r.MealType)); err != nil {
		return fmt.Errorf("recipe %q: %w", r.Name, err)
	}
	if r.PrepTimeMinutes < 0 {
		return fmt.Errorf("recipe %q: negative prep time", r.Name)
	}
	for _, ing := range r.Ingredients {
		if ing.Name == "" {
			return fmt.Errorf("recipe %q: ingredient with empty name", r.Name)
		}
		if ing.FreshnessDays < 1 {
			return fmt.Errorf("recipe %q: ingredient %q: freshness_days must be >= 1", r.Name, ing.Name)
		}
	}
	return nil
}

// SetReusability computes the reusability index for every recipe in a chosen
// plan set: the count of its ingredients appearing in at least one other
// recipe of the set. A recipe scheduled on several days appears several
// times; those instances are the same recipe, not sharing partners. The
// slice is modified in place.
func SetReusability(recipes []Recipe) {
	for i := range recipes {
		shared := 0
		for _, ing := range recipes[i].Ingredients {
			for j := range recipes {
				if recipes[j].Name == recipes[i].Name {
					continue
				}
				if recipes[j].UsesIngredient(ing.Name) {
					shared++
					break
				}
			}
		}
		recipes[i].ReusabilityIndex = shared
	}
}
