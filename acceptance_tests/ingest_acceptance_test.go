package acceptance_tests

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"preppilot/internal/config"
	"preppilot/internal/database"
	"preppilot/internal/engine"
	"preppilot/internal/importer"
	"preppilot/internal/llm"
	"preppilot/internal/recipe"
	"preppilot/internal/source"
	"preppilot/internal/steps"
)

// --- Mock CMS Client ---
type mockCMSClient struct {
	fetchRecipesCalls int
}

func (m *mockCMSClient) FetchRecipes() ([]source.Post, error) {
	m.fetchRecipesCalls++
	return []source.Post{
		{ID: "post-1", Title: "Chickpea Curry", HTML: "<h1>Chickpea Curry</h1>", UpdatedAt: "2026-02-20T10:00:00Z"},
	}, nil
}

func (m *mockCMSClient) CreatePost(title, html string, publish bool) (*source.Post, error) {
	return &source.Post{ID: "post-new", Title: title, HTML: html}, nil
}

// --- Mock LLM Client ---
type mockLLMClient struct {
	generateContentCalls int
}

func (m *mockLLMClient) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	m.generateContentCalls++
	return llm.ContentResponse{
		Content: `{
			"name": "Chickpea Curry",
			"meal_type": "dinner",
			"prep_time_minutes": 30,
			"ingredients": [
				{"name": "chickpeas", "quantity": "400g", "freshness_days": 60},
				{"name": "spinach", "quantity": "100g", "freshness_days": 4}
			],
			"prep_steps": ["Chop the spinach", "Simmer for 20 minutes"],
			"diet_tags": ["vegan"]
		}`,
	}, nil
}

func (m *mockLLMClient) Close() error {
	return nil
}

// --- Acceptance Test ---
func TestIngestToPlanWorkflow(t *testing.T) {
	ctx := context.Background()

	// 1. Real sqlite store in a temp dir
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	cfg := &config.Config{
		DatabasePath:            dbPath,
		ExpiryThresholdDays:     2,
		SimplifyAfterMissedDays: 2,
	}
	app := engine.New(cfg, db, steps.RuleParser{})

	// 2. Importer with mocked CMS and LLM
	cmsClient := &mockCMSClient{}
	llmClient := &mockLLMClient{}
	imp := importer.New(cmsClient, llmClient, app.Recipes(), nil)

	// --- 3. Step 1: Ingestion ---
	t.Log("--- Step 1: Ingesting Recipes ---")
	saved, err := imp.Ingest(ctx)
	if err != nil {
		t.Fatalf("Ingestion failed: %v", err)
	}
	if saved != 1 {
		t.Fatalf("Expected 1 saved recipe, got %d", saved)
	}
	if cmsClient.fetchRecipesCalls != 1 {
		t.Errorf("Expected 1 CMS fetch, got %d", cmsClient.fetchRecipesCalls)
	}
	if llmClient.generateContentCalls != 1 {
		t.Errorf("Expected 1 LLM call for extraction, got %d", llmClient.generateContentCalls)
	}

	stored, err := app.Recipes().Get(ctx, "post-1")
	if err != nil {
		t.Fatalf("Failed to load ingested recipe: %v", err)
	}
	if stored == nil || stored.Name != "Chickpea Curry" || stored.MealType != recipe.MealDinner {
		t.Fatalf("Unexpected ingested recipe: %+v", stored)
	}

	// --- 4. Step 2: Planning over the ingested recipe ---
	t.Log("--- Step 2: Generating Meal Plan ---")
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	p, err := app.GeneratePlan(ctx, "", start, 2, []recipe.MealType{recipe.MealDinner})
	if err != nil {
		t.Fatalf("Meal planning failed: %v", err)
	}
	if len(p.Slots) != 2 {
		t.Fatalf("Expected 2 dinner slots, got %d", len(p.Slots))
	}
	for _, s := range p.Slots {
		if s.Recipe.Name != "Chickpea Curry" {
			t.Errorf("Slot should use the ingested recipe, got %q", s.Recipe.Name)
		}
	}

	// --- 5. Step 3: Prep timeline from the ingested steps ---
	t.Log("--- Step 3: Building Prep Timeline ---")
	tl, err := app.PrepTimeline(ctx, p.ID, start)
	if err != nil {
		t.Fatalf("Timeline build failed: %v", err)
	}
	if len(tl.Steps) == 0 || tl.TotalTimeMinutes <= 0 {
		t.Errorf("Expected a populated timeline, got %d steps / %d min", len(tl.Steps), tl.TotalTimeMinutes)
	}
}
