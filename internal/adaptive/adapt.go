package adaptive

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"preppilot/internal/fridge"
	"preppilot/internal/plan"
	"preppilot/internal/recipe"
)

// Adapt builds a corrected plan from the current one. The input plan is
// never mutated; when nothing needs fixing the returned NewPlan is
// identical to the input and the summary is empty. Decisions are
// deterministic: slots are visited in date then meal-type order and every
// tie breaks on recipe name.
func (pl *Planner) Adapt(p *plan.Plan, items []fridge.Item, alternatives []recipe.Recipe, today time.Time) Output {
	now := today.UTC()
	today = plan.Midnight(today)
	work := p.Clone()
	expiring := fridge.Expiring(items, pl.policy.ExpiryThresholdDays)

	var reasons []Reason
	var grocery []string
	var chosen []recipe.Recipe
	recovery := 0
	touched := make(map[string]bool)

	order := slotOrder(work.Slots)

	// Pass 1: pull meals that use expiring ingredients forward. A future
	// pending slot scheduled past an item's remaining days swaps recipes
	// with the earliest same-meal slot that does not need any expiring
	// ingredient.
	for _, item := range expiring {
		late := pl.atRiskSlot(work, order, item, today, touched)
		if late == nil {
			continue
		}
		early := pl.swapPartner(work, order, late, expiring, today, touched)
		if early == nil {
			continue
		}
		displaced := early.Recipe
		early.ResetForAdaptation(late.Recipe)
		late.ResetForAdaptation(displaced)
		touched[early.ID] = true
		touched[late.ID] = true
		reasons = append(reasons, Reason{
			Type:         ReasonReorder,
			AffectedDate: early.Date,
			OriginalMeal: displaced.Name,
			NewMeal:      early.Recipe.Name,
			Reason: fmt.Sprintf("moved %q to %s so %s is used before it spoils (%d days left)",
				early.Recipe.Name, early.Date.Format("2006-01-02"), item.IngredientName, item.DaysRemaining),
		})
		chosen = append(chosen, early.Recipe)
	}

	// Pass 2: resolve missed preps.
	missedDates := make(map[time.Time]bool)
	for _, s := range work.Slots {
		if s.PrepStatus == plan.StatusPending && s.Date.Before(today) {
			missedDates[s.Date] = true
		}
	}
	simplifyMode := len(missedDates) >= pl.policy.SimplifyAfterMissedDays

	for _, idx := range order {
		slot := &work.Slots[idx]
		if slot.PrepStatus != plan.StatusPending || !slot.Date.Before(today) {
			continue
		}
		if today.After(work.EndDate) {
			reasons = append(reasons, pl.skip(slot, now, "plan window is over"))
			continue
		}
		cands := Compatible(alternatives, slot)
		if len(cands) == 0 {
			reasons = append(reasons, pl.skip(slot, now, "no compatible alternative available"))
			continue
		}
		old := slot.Recipe
		if simplifyMode {
			best := fastest(cands)
			if best.PrepTimeMinutes < old.PrepTimeMinutes {
				slot.ResetForAdaptation(best)
				recovery += best.PrepTimeMinutes
				chosen = append(chosen, best)
				grocery = append(grocery, swapAdjustment(slot.Date, slot.MealType, old, best))
				reasons = append(reasons, Reason{
					Type:         ReasonSimplify,
					AffectedDate: slot.Date,
					OriginalMeal: old.Name,
					NewMeal:      best.Name,
					Reason: fmt.Sprintf("replaced %q with quicker %q (%d min instead of %d) after repeated missed preps",
						old.Name, best.Name, best.PrepTimeMinutes, old.PrepTimeMinutes),
				})
				continue
			}
		}
		best, score := bestSubstitute(cands, expiring)
		if score == 0 && best.PrepTimeMinutes >= old.PrepTimeMinutes {
			reasons = append(reasons, pl.skip(slot, now, "no alternative improves on the missed meal"))
			continue
		}
		slot.ResetForAdaptation(best)
		recovery += best.PrepTimeMinutes
		chosen = append(chosen, best)
		grocery = append(grocery, swapAdjustment(slot.Date, slot.MealType, old, best))
		why := fmt.Sprintf("replaced %q with %q", old.Name, best.Name)
		if score > 0 {
			why += fmt.Sprintf(" to use %d expiring ingredient(s)", score)
		} else {
			why += " for a faster recovery"
		}
		reasons = append(reasons, Reason{
			Type:         ReasonSubstitute,
			AffectedDate: slot.Date,
			OriginalMeal: old.Name,
			NewMeal:      best.Name,
			Reason:       why,
		})
	}

	if len(reasons) > 0 {
		work.UpdatedAt = now
	}

	return Output{
		NewPlan:                      work,
		AdaptationSummary:            reasons,
		GroceryAdjustments:           grocery,
		PriorityIngredients:          priorityIngredients(expiring, chosen),
		EstimatedRecoveryTimeMinutes: recovery,
	}
}

func (pl *Planner) skip(slot *plan.Slot, now time.Time, why string) Reason {
	name := slot.Recipe.Name
	_ = slot.MarkPrep(plan.StatusSkipped, now)
	return Reason{
		Type:         ReasonSkip,
		AffectedDate: slot.Date,
		OriginalMeal: name,
		Reason:       fmt.Sprintf("skipped %q: %s", name, why),
	}
}

// atRiskSlot finds the earliest untouched future pending slot that needs
// the item later than it will last.
func (pl *Planner) atRiskSlot(work *plan.Plan, order []int, item fridge.Item, today time.Time, touched map[string]bool) *plan.Slot {
	for _, idx := range order {
		s := &work.Slots[idx]
		if s.PrepStatus != plan.StatusPending || s.Date.Before(today) || touched[s.ID] {
			continue
		}
		if s.Recipe.UsesIngredient(item.IngredientName) && daysUntil(today, s.Date) > item.DaysRemaining {
			return s
		}
	}
	return nil
}

// swapPartner finds the earliest untouched future pending slot of the same
// meal type, before the at-risk slot, whose recipe needs none of the
// expiring items.
func (pl *Planner) swapPartner(work *plan.Plan, order []int, late *plan.Slot, expiring []fridge.Item, today time.Time, touched map[string]bool) *plan.Slot {
	for _, idx := range order {
		s := &work.Slots[idx]
		if s.PrepStatus != plan.StatusPending || s.Date.Before(today) || touched[s.ID] {
			continue
		}
		if !s.Date.Before(late.Date) {
			return nil
		}
		if s.MealType != late.MealType || usesAnyExpiring(s.Recipe, expiring) {
			continue
		}
		return s
	}
	return nil
}

func usesAnyExpiring(r recipe.Recipe, expiring []fridge.Item) bool {
	for _, item := range expiring {
		if r.UsesIngredient(item.IngredientName) {
			return true
		}
	}
	return false
}

// Compatible filters alternatives to the slot's meal type and diet tags.
// The replacement must carry every tag of the recipe it replaces; the
// slot's current recipe is never its own alternative. Results are
// name-sorted.
func Compatible(alternatives []recipe.Recipe, slot *plan.Slot) []recipe.Recipe {
	var out []recipe.Recipe
	for _, r := range alternatives {
		if r.MealType != slot.MealType || r.Name == slot.Recipe.Name {
			continue
		}
		if !r.HasAllTags(slot.Recipe.DietTags) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// fastest picks the lowest-prep candidate, name breaking ties. Candidates
// must be non-empty and name-sorted.
func fastest(cands []recipe.Recipe) recipe.Recipe {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.PrepTimeMinutes < best.PrepTimeMinutes {
			best = c
		}
	}
	return best
}

// bestSubstitute picks the candidate using the most expiring ingredients,
// with prep time then name as tie-breaks.
func bestSubstitute(cands []recipe.Recipe, expiring []fridge.Item) (recipe.Recipe, int) {
	best := cands[0]
	bestScore := expiringScore(best, expiring)
	for _, c := range cands[1:] {
		score := expiringScore(c, expiring)
		if score > bestScore || (score == bestScore && c.PrepTimeMinutes < best.PrepTimeMinutes) {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}

func expiringScore(r recipe.Recipe, expiring []fridge.Item) int {
	n := 0
	for _, item := range expiring {
		if r.UsesIngredient(item.IngredientName) {
			n++
		}
	}
	return n
}

// priorityIngredients lists expiring item names, most urgent first, that
// at least one newly scheduled recipe consumes.
func priorityIngredients(expiring []fridge.Item, chosen []recipe.Recipe) []string {
	var out []string
	seen := make(map[string]bool)
	for _, item := range expiring {
		key := strings.ToLower(item.IngredientName)
		if seen[key] {
			continue
		}
		for _, r := range chosen {
			if r.UsesIngredient(item.IngredientName) {
				seen[key] = true
				out = append(out, item.IngredientName)
				break
			}
		}
	}
	return out
}

// swapAdjustment describes the grocery delta of replacing old with new in
// one slot: ingredients to drop and ingredients to buy.
func swapAdjustment(date time.Time, mt recipe.MealType, old, repl recipe.Recipe) string {
	drop := ingredientDiff(old, repl)
	buy := ingredientDiff(repl, old)
	msg := fmt.Sprintf("%s %s: %q replaces %q", date.Format("2006-01-02"), mt, repl.Name, old.Name)
	if len(drop) > 0 {
		msg += "; drop " + strings.Join(drop, ", ")
	}
	if len(buy) > 0 {
		msg += "; buy " + strings.Join(buy, ", ")
	}
	return msg
}

// ingredientDiff lists a's ingredient names that b does not use, sorted.
func ingredientDiff(a, b recipe.Recipe) []string {
	var out []string
	for _, ing := range a.Ingredients {
		if !b.UsesIngredient(ing.Name) {
			out = append(out, ing.Name)
		}
	}
	sort.Strings(out)
	return out
}

// slotOrder returns slot indices sorted by date then meal type.
func slotOrder(slots []plan.Slot) []int {
	order := make([]int, len(slots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := slots[order[i]], slots[order[j]]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.MealType.Order() < b.MealType.Order()
	})
	return order
}
