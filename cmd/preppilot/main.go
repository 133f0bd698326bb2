package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"preppilot/internal/config"
	"preppilot/internal/database"
	"preppilot/internal/engine"
	"preppilot/internal/importer"
	"preppilot/internal/llm"
	"preppilot/internal/metrics"
	"preppilot/internal/plan"
	"preppilot/internal/recipe"
	"preppilot/internal/source"
	"preppilot/internal/steps"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	metricsStore := metrics.NewStore(db.SQL)

	parser, closer, err := newParser(ctx, cfg, metricsStore)
	if err != nil {
		log.Fatalf("Failed to initialize step parser: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	app := engine.New(cfg, db, parser)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		runSeed(ctx, app, cfg)
	case "generate":
		runGenerate(ctx, app)
	case "plan":
		runShowPlan(ctx, app)
	case "timeline":
		runTimeline(ctx, app)
	case "done":
		runMark(ctx, app, plan.StatusDone)
	case "skip":
		runMark(ctx, app, plan.StatusSkipped)
	case "catchup":
		runCatchUp(ctx, app)
	case "alternatives":
		runAlternatives(ctx, app)
	case "adapt":
		runAdapt(ctx, app)
	case "fridge-add":
		runFridgeAdd(ctx, app)
	case "fridge-list":
		runFridgeList(ctx, app)
	case "fridge-update":
		runFridgeUpdate(ctx, app)
	case "decay-tick":
		runDecayTick(ctx, app)
	case "sweep":
		runSweep(ctx, app)
	case "clip":
		runClip(ctx, app, cfg, metricsStore)
	case "ingest":
		runIngest(ctx, app, cfg, metricsStore)
	case "metrics-cleanup":
		runMetricsCleanup(metricsStore)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// newParser picks the configured step parser. The returned closer is nil
// for parsers without a connection to shut down.
func newParser(ctx context.Context, cfg *config.Config, usage *metrics.Store) (steps.Parser, llm.Closer, error) {
	switch cfg.StepAssist {
	case config.AssistGemini:
		client, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return steps.NewAssistParser(client, usage), client, nil
	case config.AssistGroq:
		return steps.NewAssistParser(llm.NewGroqClient(cfg), usage), nil, nil
	default:
		return steps.RuleParser{}, nil, nil
	}
}

func newImporter(cfg *config.Config, app *engine.App, usage *metrics.Store) (*importer.Importer, llm.Closer, error) {
	if err := cfg.RequireSource(); err != nil {
		return nil, nil, err
	}
	if cfg.GroqAPIKey == "" {
		return nil, nil, fmt.Errorf("recipe import requires GROQ_API_KEY to be set")
	}
	textGen := llm.NewGroqClient(cfg)
	return importer.New(source.NewClient(cfg), textGen, app.Recipes(), usage), nil, nil
}

func runSeed(ctx context.Context, app *engine.App, cfg *config.Config) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	path := fs.String("catalog", cfg.CatalogPath, "Path to the YAML recipe catalog")
	fs.Parse(os.Args[2:])

	n, err := app.SeedCatalog(ctx, *path)
	if err != nil {
		log.Fatalf("Seeding failed after %d recipes: %v", n, err)
	}
	fmt.Printf("Seeded %d recipes from %s.\n", n, *path)
}

func runGenerate(ctx context.Context, app *engine.App) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	diet := fs.String("diet", "", "Diet tag filter (e.g. vegan)")
	days := fs.Int("days", 7, "Plan length in days")
	start := fs.String("start", "", "Start date YYYY-MM-DD (default today)")
	meals := fs.String("meals", "breakfast,lunch,dinner", "Comma-separated meal types")
	fs.Parse(os.Args[2:])

	startDate := time.Now()
	if *start != "" {
		parsed, err := time.Parse("2006-01-02", *start)
		if err != nil {
			log.Fatalf("Invalid -start date: %v", err)
		}
		startDate = parsed
	}

	var mealTypes []recipe.MealType
	for _, raw := range strings.Split(*meals, ",") {
		mt, err := recipe.ParseMealType(raw)
		if err != nil {
			log.Fatalf("Invalid -meals value: %v", err)
		}
		mealTypes = append(mealTypes, mt)
	}

	p, err := app.GeneratePlan(ctx, *diet, startDate, *days, mealTypes)
	if err != nil {
		log.Fatalf("Plan generation failed: %v", err)
	}
	printPlan(p)
}

func runShowPlan(ctx context.Context, app *engine.App) {
	p, err := app.LatestPlan(ctx)
	if err != nil {
		log.Fatalf("No plan: %v", err)
	}
	printPlan(p)
}

func runTimeline(ctx context.Context, app *engine.App) {
	fs := flag.NewFlagSet("timeline", flag.ExitOnError)
	date := fs.String("date", "", "Prep date YYYY-MM-DD (default today)")
	fs.Parse(os.Args[2:])

	day := time.Now()
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatalf("Invalid -date: %v", err)
		}
		day = parsed
	}

	p, err := app.LatestPlan(ctx)
	if err != nil {
		log.Fatalf("No plan: %v", err)
	}
	tl, err := app.PrepTimeline(ctx, p.ID, day)
	if err != nil {
		log.Fatalf("Timeline failed: %v", err)
	}

	fmt.Printf("Prep timeline for %s\n", tl.PrepDate.Format("2006-01-02"))
	for _, step := range tl.Steps {
		passive := ""
		if step.IsPassive {
			passive = " [passive]"
		}
		batched := ""
		if len(step.SourceRecipes) > 1 {
			batched = fmt.Sprintf(" (batched: %s)", strings.Join(step.SourceRecipes, ", "))
		}
		fmt.Printf("%2d. %-40s %3d min%s%s\n", step.StepNumber, step.Action, step.DurationMinutes, passive, batched)
	}
	fmt.Printf("Total: %d min", tl.TotalTimeMinutes)
	if tl.BatchedSavingsMinutes > 0 {
		fmt.Printf(" (saved %d min by batching)", tl.BatchedSavingsMinutes)
	}
	fmt.Println()
}

func runMark(ctx context.Context, app *engine.App, status plan.PrepStatus) {
	fs := flag.NewFlagSet(string(status), flag.ExitOnError)
	meal := fs.String("meal", "", "Meal type (breakfast, lunch, dinner)")
	date := fs.String("date", "", "Slot date YYYY-MM-DD (default today)")
	fs.Parse(os.Args[2:])

	if *meal == "" {
		log.Fatal("-meal is required")
	}
	mt, err := recipe.ParseMealType(*meal)
	if err != nil {
		log.Fatalf("Invalid -meal: %v", err)
	}

	day := time.Now()
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatalf("Invalid -date: %v", err)
		}
		day = parsed
	}

	p, err := app.LatestPlan(ctx)
	if err != nil {
		log.Fatalf("No plan: %v", err)
	}
	if _, err := app.MarkPrep(ctx, p.ID, day, mt, status); err != nil {
		log.Fatalf("Failed to mark slot: %v", err)
	}
	fmt.Printf("Marked %s on %s as %s.\n", mt, plan.Midnight(day).Format("2006-01-02"), status)
}

func runCatchUp(ctx context.Context, app *engine.App) {
	p, err := app.LatestPlan(ctx)
	if err != nil {
		log.Fatalf("No plan: %v", err)
	}
	sug, err := app.CatchUp(ctx, p.ID)
	if err != nil {
		log.Fatalf("Catch-up failed: %v", err)
	}

	if len(sug.MissedPreps) == 0 {
		fmt.Println("No missed preps.")
	} else {
		fmt.Println("Missed prep days:")
		for _, d := range sug.MissedPreps {
			fmt.Printf("  %s\n", d.Format("2006-01-02"))
		}
	}
	if len(sug.ExpiringItems) > 0 {
		fmt.Println("Expiring soon:")
		for _, item := range sug.ExpiringItems {
			fmt.Printf("  %s (%d days left)\n", item.IngredientName, item.DaysRemaining)
		}
	}
	fmt.Printf("Pending meals: %d\n", len(sug.PendingMeals))
	if sug.NeedsAdaptation {
		fmt.Println("The plan has drifted; run 'preppilot adapt' to fix it.")
	} else {
		fmt.Println("The plan is on track.")
	}
}

func runAlternatives(ctx context.Context, app *engine.App) {
	fs := flag.NewFlagSet("alternatives", flag.ExitOnError)
	meal := fs.String("meal", "", "Meal type (breakfast, lunch, dinner)")
	fs.Parse(os.Args[2:])

	if *meal == "" {
		log.Fatal("-meal is required")
	}
	mt, err := recipe.ParseMealType(*meal)
	if err != nil {
		log.Fatalf("Invalid -meal: %v", err)
	}

	p, err := app.LatestPlan(ctx)
	if err != nil {
		log.Fatalf("No plan: %v", err)
	}
	recipes, err := app.CompatibleRecipes(ctx, p.ID, mt)
	if err != nil {
		log.Fatalf("Failed to list alternatives: %v", err)
	}
	if len(recipes) == 0 {
		fmt.Printf("No %s recipes match the plan's diet.\n", mt)
		return
	}
	for _, rec := range recipes {
		fmt.Printf("%-35s %3d min  %s\n", rec.Name, rec.PrepTimeMinutes, strings.Join(rec.DietTags, ", "))
	}
}

func runAdapt(ctx context.Context, app *engine.App) {
	fs := flag.NewFlagSet("adapt", flag.ExitOnError)
	apply := fs.Bool("apply", false, "Persist the adapted plan instead of only printing it")
	fs.Parse(os.Args[2:])

	p, err := app.LatestPlan(ctx)
	if err != nil {
		log.Fatalf("No plan: %v", err)
	}
	out, err := app.Adapt(ctx, p.ID)
	if err != nil {
		log.Fatalf("Adaptation failed: %v", err)
	}

	if len(out.AdaptationSummary) == 0 {
		fmt.Println("Nothing to adapt; the plan is on track.")
		return
	}

	fmt.Println("Proposed changes:")
	for _, r := range out.AdaptationSummary {
		fmt.Printf("  [%s] %s\n", r.Type, r.Reason)
	}
	if len(out.PriorityIngredients) > 0 {
		fmt.Printf("Use first: %s\n", strings.Join(out.PriorityIngredients, ", "))
	}
	for _, g := range out.GroceryAdjustments {
		fmt.Printf("Grocery: %s\n", g)
	}
	if out.EstimatedRecoveryTimeMinutes > 0 {
		fmt.Printf("Recovery cooking time: %d min\n", out.EstimatedRecoveryTimeMinutes)
	}

	if !*apply {
		fmt.Println("Run with -apply to persist these changes.")
		return
	}
	if err := app.ConfirmAdaptation(ctx, out); err != nil {
		log.Fatalf("Failed to apply adaptation: %v", err)
	}
	fmt.Println("Plan updated.")
}

func runFridgeAdd(ctx context.Context, app *engine.App) {
	fs := flag.NewFlagSet("fridge-add", flag.ExitOnError)
	name := fs.String("name", "", "Ingredient name")
	qty := fs.String("qty", "", "Quantity (free text, e.g. 500g)")
	days := fs.Int("days", 0, "Freshness in days")
	fs.Parse(os.Args[2:])

	if *name == "" {
		log.Fatal("-name is required")
	}
	item, err := app.AddFridgeItem(ctx, *name, *qty, *days)
	if err != nil {
		log.Fatalf("Failed to add item: %v", err)
	}
	fmt.Printf("Added %s (%s), fresh for %d days.\n", item.IngredientName, item.Quantity, item.DaysRemaining)
}

func runFridgeList(ctx context.Context, app *engine.App) {
	items, err := app.ListFridge(ctx)
	if err != nil {
		log.Fatalf("Failed to list fridge: %v", err)
	}
	if len(items) == 0 {
		fmt.Println("The fridge is empty.")
		return
	}
	for _, item := range items {
		fmt.Printf("%-36s %-20s %-10s %3d days  %3d%%\n", item.ID, item.IngredientName, item.Quantity, item.DaysRemaining, item.FreshnessPercentage)
	}
}

func runFridgeUpdate(ctx context.Context, app *engine.App) {
	fs := flag.NewFlagSet("fridge-update", flag.ExitOnError)
	id := fs.String("id", "", "Fridge item ID")
	qty := fs.String("qty", "", "New quantity (empty keeps current)")
	days := fs.Int("days", -1, "New remaining days (negative keeps current)")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal("-id is required")
	}
	var qtyPtr *string
	if *qty != "" {
		qtyPtr = qty
	}
	var daysPtr *int
	if *days >= 0 {
		daysPtr = days
	}

	item, err := app.UpdateFridgeItem(ctx, *id, qtyPtr, daysPtr)
	if err != nil {
		log.Fatalf("Failed to update item: %v", err)
	}
	fmt.Printf("Updated %s: %s, %d days left (%d%% fresh).\n", item.IngredientName, item.Quantity, item.DaysRemaining, item.FreshnessPercentage)
}

func runDecayTick(ctx context.Context, app *engine.App) {
	fs := flag.NewFlagSet("decay-tick", flag.ExitOnError)
	days := fs.Int("days", 1, "Days of freshness to consume")
	fs.Parse(os.Args[2:])

	items, err := app.DecayTick(ctx, *days)
	if err != nil {
		log.Fatalf("Decay tick failed: %v", err)
	}
	fmt.Printf("Decayed %d items by %d day(s).\n", len(items), *days)
	for _, item := range items {
		if item.DaysRemaining == 0 {
			fmt.Printf("  %s has expired.\n", item.IngredientName)
		}
	}
}

func runSweep(ctx context.Context, app *engine.App) {
	n, err := app.SweepExpired(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	fmt.Printf("Removed %d expired items.\n", n)
}

func runClip(ctx context.Context, app *engine.App, cfg *config.Config, usage *metrics.Store) {
	if len(os.Args) < 3 {
		log.Fatal("Usage: preppilot clip <url>")
	}
	imp, closer, err := newImporter(cfg, app, usage)
	if err != nil {
		log.Fatalf("Importer unavailable: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	post, err := imp.ClipURL(ctx, os.Args[2])
	if err != nil {
		log.Fatalf("Clipping failed: %v", err)
	}
	fmt.Printf("Clipped %q (post %s). Run 'preppilot ingest' to make it plannable.\n", post.Title, post.ID)
}

func runIngest(ctx context.Context, app *engine.App, cfg *config.Config, usage *metrics.Store) {
	imp, closer, err := newImporter(cfg, app, usage)
	if err != nil {
		log.Fatalf("Importer unavailable: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	n, err := imp.Ingest(ctx)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}
	fmt.Printf("Ingested %d recipes.\n", n)
}

func runMetricsCleanup(store *metrics.Store) {
	fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
	days := fs.Int("days", 30, "Keep records for the last N days")
	fs.Parse(os.Args[2:])

	affected, err := store.Cleanup(*days)
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	fmt.Printf("Removed %d old metric records.\n", affected)
}

func printPlan(p *plan.Plan) {
	fmt.Printf("Plan %s", p.ID)
	if p.DietType != "" {
		fmt.Printf(" (diet: %s)", p.DietType)
	}
	fmt.Printf(", %s to %s\n", p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))

	for d := p.StartDate; !d.After(p.EndDate); d = d.AddDate(0, 0, 1) {
		fmt.Printf("%s\n", d.Format("Mon 2006-01-02"))
		for _, slot := range p.SlotsOn(d) {
			fmt.Printf("  %-10s %-35s %3d min  [%s]\n", slot.MealType, slot.Recipe.Name, slot.Recipe.PrepTimeMinutes, slot.PrepStatus)
		}
	}
}

func printUsage() {
	fmt.Println("Usage: preppilot <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  seed             Load the YAML recipe catalog into the database")
	fmt.Println("  generate         Generate a new meal plan")
	fmt.Println("  plan             Show the latest plan")
	fmt.Println("  timeline         Show the batched prep timeline for a day")
	fmt.Println("  done | skip      Mark a slot's prep DONE or SKIPPED")
	fmt.Println("  catchup          Report missed preps and expiring ingredients")
	fmt.Println("  alternatives     List diet-compatible recipes for a meal type")
	fmt.Println("  adapt            Propose (and with -apply, persist) plan corrections")
	fmt.Println("  fridge-add       Add a fridge item")
	fmt.Println("  fridge-list      List fridge items with freshness")
	fmt.Println("  fridge-update    Correct a fridge item's quantity or remaining days")
	fmt.Println("  decay-tick       Advance fridge freshness by N days")
	fmt.Println("  sweep            Remove expired fridge items")
	fmt.Println("  clip             Import a recipe from a URL into the CMS")
	fmt.Println("  ingest           Pull CMS recipe posts into the database")
	fmt.Println("  metrics-cleanup  Remove old metric records")
}
