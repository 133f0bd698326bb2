// Package engine wires the repositories, parsers and planners into one
// facade the CLI and the bot both drive.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"preppilot/internal/adaptive"
	"preppilot/internal/config"
	"preppilot/internal/database"
	"preppilot/internal/fridge"
	"preppilot/internal/metrics"
	"preppilot/internal/plan"
	"preppilot/internal/prep"
	"preppilot/internal/recipe"
	"preppilot/internal/shared"
	"preppilot/internal/steps"
)

// App holds the application's dependencies.
type App struct {
	cfg     *config.Config
	db      *database.DB
	recipes *recipe.Repository
	fridge  *fridge.Repository
	plans   *plan.Repository
	parser  steps.Parser
	planner *adaptive.Planner
	usage   *metrics.Store

	// now is swappable for tests.
	now func() time.Time
}

// New creates and initializes an App over an open database. The step parser
// is injected so callers choose between rule-only and LLM-assisted parsing.
func New(cfg *config.Config, db *database.DB, parser steps.Parser) *App {
	policy := adaptive.Policy{
		ExpiryThresholdDays:     cfg.ExpiryThresholdDays,
		SimplifyAfterMissedDays: cfg.SimplifyAfterMissedDays,
	}
	return &App{
		cfg:     cfg,
		db:      db,
		recipes: recipe.NewRepository(db.SQL),
		fridge:  fridge.NewRepository(db.SQL),
		plans:   plan.NewRepository(db.SQL),
		parser:  parser,
		planner: adaptive.NewPlanner(policy),
		usage:   metrics.NewStore(db.SQL),
		now:     time.Now,
	}
}

// Recipes exposes the recipe repository for ingestion.
func (a *App) Recipes() *recipe.Repository { return a.recipes }

// Usage exposes the metrics store.
func (a *App) Usage() *metrics.Store { return a.usage }

// recipeSource adapts the recipe repository to the planner's candidate
// lookup. The diet type doubles as a diet tag filter.
type recipeSource struct {
	repo *recipe.Repository
}

func (s recipeSource) ByMealType(ctx context.Context, dietType string, mt recipe.MealType) ([]recipe.Recipe, error) {
	return s.repo.ListByMealType(ctx, mt, dietType)
}

// SeedCatalog loads the YAML recipe catalog into the store. Returns the
// number of recipes saved.
func (a *App) SeedCatalog(ctx context.Context, path string) (int, error) {
	catalog, err := recipe.LoadCatalog(path)
	if err != nil {
		return 0, err
	}
	for i, rec := range catalog.Recipes {
		if err := a.recipes.Save(ctx, rec); err != nil {
			return i, fmt.Errorf("failed to save recipe %q: %w", rec.Name, err)
		}
	}
	return len(catalog.Recipes), nil
}

// GeneratePlan builds and persists a new plan.
func (a *App) GeneratePlan(ctx context.Context, dietType string, startDate time.Time, days int, mealTypes []recipe.MealType) (*plan.Plan, error) {
	p, err := plan.Generate(ctx, dietType, startDate, days, mealTypes, recipeSource{a.recipes})
	if err != nil {
		return nil, err
	}
	if err := a.plans.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LatestPlan returns the most recently created plan.
func (a *App) LatestPlan(ctx context.Context) (*plan.Plan, error) {
	return a.plans.Latest(ctx)
}

// MarkPrep marks one slot DONE or SKIPPED and persists the plan. A
// concurrent modification surfaces as plan.ErrConflict; callers refetch and
// retry.
func (a *App) MarkPrep(ctx context.Context, planID string, date time.Time, mt recipe.MealType, status plan.PrepStatus) (*plan.Plan, error) {
	p, err := a.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	slot := p.SlotFor(date, mt)
	if slot == nil {
		return nil, fmt.Errorf("no %s slot on %s", mt, plan.Midnight(date).Format("2006-01-02"))
	}
	if err := slot.MarkPrep(status, a.now().UTC()); err != nil {
		return nil, err
	}
	p.UpdatedAt = a.now().UTC()
	if err := a.plans.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PrepTimeline parses every recipe scheduled on the date and builds the
// batched timeline. Slot status is ignored: the timeline answers "what
// would cooking this day look like", not "what is left to do".
func (a *App) PrepTimeline(ctx context.Context, planID string, date time.Time) (prep.Timeline, error) {
	p, err := a.plans.Get(ctx, planID)
	if err != nil {
		return prep.Timeline{}, err
	}
	slots := p.SlotsOn(date)

	var recipes []prep.RecipeSteps
	for _, slot := range slots {
		parsed, err := a.parser.ParseSteps(ctx, slot.Recipe)
		if err != nil {
			return prep.Timeline{}, fmt.Errorf("failed to parse steps for %q: %w", slot.Recipe.Name, err)
		}
		recipes = append(recipes, prep.RecipeSteps{RecipeName: slot.Recipe.Name, Steps: parsed})
	}
	return prep.Build(plan.Midnight(date), recipes), nil
}

// CatchUp reports plan drift without changing anything.
func (a *App) CatchUp(ctx context.Context, planID string) (adaptive.Suggestions, error) {
	p, err := a.plans.Get(ctx, planID)
	if err != nil {
		return adaptive.Suggestions{}, err
	}
	items, err := a.fridge.List(ctx)
	if err != nil {
		return adaptive.Suggestions{}, err
	}
	return a.planner.CatchUp(p, items, a.now()), nil
}

// Adapt proposes a corrected plan. Nothing is persisted; pass the output to
// ConfirmAdaptation to apply it.
func (a *App) Adapt(ctx context.Context, planID string) (adaptive.Output, error) {
	p, err := a.plans.Get(ctx, planID)
	if err != nil {
		return adaptive.Output{}, err
	}
	items, err := a.fridge.List(ctx)
	if err != nil {
		return adaptive.Output{}, err
	}
	alternatives, err := a.recipes.List(ctx)
	if err != nil {
		return adaptive.Output{}, err
	}
	return a.planner.Adapt(p, items, alternatives, a.now()), nil
}

// ConfirmAdaptation persists an adapted plan against the version the
// adaptation was computed from.
func (a *App) ConfirmAdaptation(ctx context.Context, out adaptive.Output) error {
	if out.NewPlan == nil {
		return fmt.Errorf("adaptation has no plan")
	}
	return a.plans.Update(ctx, out.NewPlan)
}

// CompatibleRecipes lists the stored recipes that could substitute into the
// plan's slots of the given meal type: same meal type, diet tags a superset
// of the slot recipe's, excluding every recipe the plan currently schedules
// for that meal type. Sorted by name.
func (a *App) CompatibleRecipes(ctx context.Context, planID string, mt recipe.MealType) ([]recipe.Recipe, error) {
	p, err := a.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	all, err := a.recipes.List(ctx)
	if err != nil {
		return nil, err
	}

	scheduled := make(map[string]bool)
	for _, s := range p.Slots {
		if s.MealType == mt {
			scheduled[s.Recipe.Name] = true
		}
	}

	seen := make(map[string]bool)
	var out []recipe.Recipe
	for i := range p.Slots {
		s := &p.Slots[i]
		if s.MealType != mt {
			continue
		}
		for _, r := range adaptive.Compatible(all, s) {
			if scheduled[r.Name] || seen[r.Name] {
				continue
			}
			seen[r.Name] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AddFridgeItem validates and stores a new fridge item.
func (a *App) AddFridgeItem(ctx context.Context, name, quantity string, freshnessDays int) (fridge.Item, error) {
	item, err := fridge.New(uuid.NewString(), name, quantity, freshnessDays, plan.Midnight(a.now()))
	if err != nil {
		return fridge.Item{}, err
	}
	if err := a.fridge.Insert(ctx, item); err != nil {
		return fridge.Item{}, err
	}
	return item, nil
}

// UpdateFridgeItem applies a manual correction to quantity and/or remaining
// days. Values outside the valid range are rejected, never clamped.
func (a *App) UpdateFridgeItem(ctx context.Context, id string, quantity *string, daysRemaining *int) (fridge.Item, error) {
	stored, err := a.fridge.Get(ctx, id)
	if err != nil {
		return fridge.Item{}, err
	}
	if stored == nil {
		return fridge.Item{}, fmt.Errorf("fridge item %s not found", id)
	}
	updated, err := fridge.ApplyManualUpdate(*stored, quantity, daysRemaining)
	if err != nil {
		return fridge.Item{}, err
	}
	if err := a.fridge.Update(ctx, updated); err != nil {
		return fridge.Item{}, err
	}
	return updated, nil
}

// ListFridge returns all fridge items.
func (a *App) ListFridge(ctx context.Context) ([]fridge.Item, error) {
	return a.fridge.List(ctx)
}

// ExpiringItems returns items at or below the configured threshold, most
// urgent first.
func (a *App) ExpiringItems(ctx context.Context) ([]fridge.Item, error) {
	items, err := a.fridge.List(ctx)
	if err != nil {
		return nil, err
	}
	return fridge.Expiring(items, a.cfg.ExpiryThresholdDays), nil
}

// DecayTick advances every fridge item by the given number of days in one
// transaction. Items at zero stay in the fridge until SweepExpired removes
// them, so expiring reports can still surface them. Decay only moves
// forward; negative days are rejected, never applied.
func (a *App) DecayTick(ctx context.Context, days int) ([]fridge.Item, error) {
	if days < 0 {
		return nil, shared.NewValidationError("days", "must not be negative, got %d", days)
	}
	items, err := a.fridge.List(ctx)
	if err != nil {
		return nil, err
	}
	decayed := fridge.DecayAll(items, days)
	if err := a.fridge.ReplaceAll(ctx, decayed); err != nil {
		return nil, err
	}
	return decayed, nil
}

// SweepExpired deletes items with no days remaining. Returns the count.
func (a *App) SweepExpired(ctx context.Context) (int64, error) {
	return a.fridge.SweepExpired(ctx)
}

// Health reports process and data-volume health.
func (a *App) Health() metrics.SysHealth {
	return metrics.GetSysHealth(filepath.Dir(a.cfg.DatabasePath))
}
