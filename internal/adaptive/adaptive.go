package adaptive

import (
	"sort"
	"time"

	"preppilot/internal/fridge"
	"preppilot/internal/plan"
)

// ReasonType classifies one adaptation decision.
type ReasonType string

const (
	ReasonReorder    ReasonType = "reorder"
	ReasonSubstitute ReasonType = "substitute"
	ReasonSimplify   ReasonType = "simplify"
	ReasonSkip       ReasonType = "skip"
)

// Reason is one human-readable adaptation decision.
type Reason struct {
	Type         ReasonType `json:"type"`
	AffectedDate time.Time  `json:"affected_date"`
	OriginalMeal string     `json:"original_meal,omitempty"`
	NewMeal      string     `json:"new_meal,omitempty"`
	Reason       string     `json:"reason"`
}

// Suggestions is the detection-phase output: what has drifted, without
// changing the plan.
type Suggestions struct {
	MissedPreps     []time.Time   `json:"missed_preps"`
	ExpiringItems   []fridge.Item `json:"expiring_items"`
	PendingMeals    []plan.Slot   `json:"pending_meals"`
	NeedsAdaptation bool          `json:"needs_adaptation"`
}

// Output is the mutation-phase result: a full replacement plan plus the
// rationale. The caller persists NewPlan transactionally if confirmed.
type Output struct {
	NewPlan                      *plan.Plan `json:"new_plan"`
	AdaptationSummary            []Reason   `json:"adaptation_summary"`
	GroceryAdjustments           []string   `json:"grocery_adjustments"`
	PriorityIngredients          []string   `json:"priority_ingredients"`
	EstimatedRecoveryTimeMinutes int        `json:"estimated_recovery_time_minutes"`
}

// Policy holds the tunable classification thresholds. The boundary between
// substitute and simplify is policy, not law.
type Policy struct {
	// ExpiryThresholdDays marks fridge items as expiring at or below this
	// many days remaining.
	ExpiryThresholdDays int
	// SimplifyAfterMissedDays: once this many distinct days have missed
	// preps, replacements prefer the fastest compatible recipe.
	SimplifyAfterMissedDays int
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{ExpiryThresholdDays: 2, SimplifyAfterMissedDays: 2}
}

// Planner detects plan drift and proposes corrections. Stateless; all
// methods are pure functions over their inputs.
type Planner struct {
	policy Policy
}

// NewPlanner creates a Planner with the given policy.
func NewPlanner(policy Policy) *Planner {
	return &Planner{policy: policy}
}

// CatchUp reports missed preps, expiring fridge items and remaining pending
// meals, and whether the plan needs adaptation.
func (pl *Planner) CatchUp(p *plan.Plan, items []fridge.Item, today time.Time) Suggestions {
	today = plan.Midnight(today)

	seen := make(map[time.Time]bool)
	var missed []time.Time
	var pending []plan.Slot
	for _, s := range p.Slots {
		if s.PrepStatus != plan.StatusPending {
			continue
		}
		if s.Date.Before(today) {
			if !seen[s.Date] {
				seen[s.Date] = true
				missed = append(missed, s.Date)
			}
		} else {
			pending = append(pending, s)
		}
	}
	sort.Slice(missed, func(i, j int) bool { return missed[i].Before(missed[j]) })
	sortSlots(pending)

	expiring := fridge.Expiring(items, pl.policy.ExpiryThresholdDays)

	needs := len(missed) > 0
	if !needs {
		for _, item := range expiring {
			if slotAtRisk(pending, item, today) != nil {
				needs = true
				break
			}
		}
	}

	return Suggestions{
		MissedPreps:     missed,
		ExpiringItems:   expiring,
		PendingMeals:    pending,
		NeedsAdaptation: needs,
	}
}

// slotAtRisk finds the earliest future pending slot whose recipe uses the
// item but is scheduled after the item will have expired.
func slotAtRisk(pending []plan.Slot, item fridge.Item, today time.Time) *plan.Slot {
	for i := range pending {
		s := &pending[i]
		if !s.Recipe.UsesIngredient(item.IngredientName) {
			continue
		}
		if daysUntil(today, s.Date) > item.DaysRemaining {
			return s
		}
	}
	return nil
}

func daysUntil(today, date time.Time) int {
	return int(date.Sub(today).Hours() / 24)
}

func sortSlots(slots []plan.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].MealType.Order() < slots[j].MealType.Order()
	})
}
