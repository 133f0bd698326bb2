package prep

import (
	"sort"
	"time"

	"preppilot/internal/steps"
)

// RecipeSteps is one scheduled recipe's parsed steps, tagged with the recipe
// name so batched steps can report their sources.
type RecipeSteps struct {
	RecipeName string
	Steps      []steps.PrepStep
}

// Timeline is the optimized prep schedule for one date. It is a read model
// computed on demand over the plan and its recipes; it is never persisted as
// authoritative state.
type Timeline struct {
	PrepDate              time.Time        `json:"prep_date"`
	Steps                 []steps.PrepStep `json:"steps"`
	TotalTimeMinutes      int              `json:"total_time_minutes"`
	BatchedSavingsMinutes int              `json:"batched_savings_minutes"`
}

// entry tracks a parsed step with its origin for batching and stable
// ordering.
type entry struct {
	step       steps.PrepStep
	recipeName string
	appearance int
}

// Build computes the optimized timeline for one date's worth of recipes.
// Zero recipes yields an empty timeline, not an error. The function is pure
// and safe for concurrent use.
func Build(prepDate time.Time, recipes []RecipeSteps) Timeline {
	var entries []entry
	naiveSum := 0
	for _, rs := range recipes {
		for _, s := range rs.Steps {
			entries = append(entries, entry{step: s, recipeName: rs.RecipeName, appearance: len(entries)})
			naiveSum += s.DurationMinutes
		}
	}

	merged := batch(entries)
	order(merged)

	total := simulate(merged)
	savings := naiveSum - total
	if savings < 0 {
		savings = 0
	}

	out := make([]steps.PrepStep, len(merged))
	for i, e := range merged {
		e.step.StepNumber = i + 1
		out[i] = e.step
	}

	return Timeline{
		PrepDate:              prepDate,
		Steps:                 out,
		TotalTimeMinutes:      total,
		BatchedSavingsMinutes: savings,
	}
}

// batch groups steps across recipes by batch key. A group spanning more than
// one recipe collapses into a single step: doing it once covers every
// recipe, so the merged duration is the group's maximum. Singleton groups
// stay individual, unbatched steps.
func batch(entries []entry) []entry {
	groups := make(map[string][]int)
	var keyOrder []string
	for i, e := range entries {
		key := e.step.BatchKey
		if key == "" || !e.step.CanBatch {
			continue
		}
		if _, seen := groups[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], i)
	}

	mergedFrom := make(map[int]bool)
	var merged []entry
	for _, key := range keyOrder {
		idxs := groups[key]
		distinct := distinctRecipes(entries, idxs)
		if len(distinct) < 2 {
			continue
		}

		first := entries[idxs[0]]
		longest := idxs[0]
		for _, i := range idxs {
			if entries[i].step.DurationMinutes > entries[longest].step.DurationMinutes {
				longest = i
			}
			mergedFrom[i] = true
		}

		// The merged step is the longest variant done once, so it carries
		// that member's duration, passivity and equipment.
		step := first.step
		step.DurationMinutes = entries[longest].step.DurationMinutes
		step.IsPassive = entries[longest].step.IsPassive
		step.Equipment = entries[longest].step.Equipment
		step.CanBatch = true
		step.BatchKey = key
		step.SourceRecipes = distinct
		merged = append(merged, entry{step: step, recipeName: first.recipeName, appearance: first.appearance})
	}

	for i, e := range entries {
		if mergedFrom[i] {
			continue
		}
		e.step.CanBatch = false
		e.step.BatchKey = ""
		e.step.SourceRecipes = nil
		merged = append(merged, e)
	}
	return merged
}

func distinctRecipes(entries []entry, idxs []int) []string {
	seen := make(map[string]bool)
	var names []string
	for _, i := range idxs {
		name := entries[i].recipeName
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) < 2 {
		return names
	}
	sort.Strings(names)
	return names
}

// order sorts steps by phase, then passive-first within a phase so
// unattended work starts while hands are still free, then by original
// first-appearance as a stable tiebreak.
func order(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := steps.PhaseOrder(entries[i].step.Phase), steps.PhaseOrder(entries[j].step.Phase)
		if pi != pj {
			return pi < pj
		}
		if entries[i].step.IsPassive != entries[j].step.IsPassive {
			return entries[i].step.IsPassive
		}
		return entries[i].appearance < entries[j].appearance
	})
}

// simulate walks the ordered steps with a single cook. Hands-on steps accrue
// sequentially on an active clock. A passive step starts at the current
// clock, gated by its equipment's busy-until marker (equipment is a
// singleton resource), and only extends the total when it outlasts the
// remaining hands-on work.
func simulate(entries []entry) int {
	active := 0
	passiveEnd := 0
	busyUntil := make(map[steps.Equipment]int)

	for _, e := range entries {
		s := e.step
		if !s.IsPassive {
			active += s.DurationMinutes
			continue
		}

		start := active
		if s.Equipment != steps.EquipmentNone {
			if until := busyUntil[s.Equipment]; until > start {
				start = until
			}
		}
		end := start + s.DurationMinutes
		if s.Equipment != steps.EquipmentNone {
			busyUntil[s.Equipment] = end
		}
		if end > passiveEnd {
			passiveEnd = end
		}
	}

	if passiveEnd > active {
		return passiveEnd
	}
	return active
}
