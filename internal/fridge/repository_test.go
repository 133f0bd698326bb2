package fridge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"preppilot/internal/database"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.SQL)
}

func testItem(t *testing.T, id, name string, freshnessDays int) Item {
	t.Helper()
	added := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	item, err := New(id, name, "200g", freshnessDays, added)
	if err != nil {
		t.Fatalf("Failed to create item: %v", err)
	}
	return item
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	item := testItem(t, "item-1", "spinach", 4)

	if err := repo.Insert(ctx, item); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected item, got nil")
	}
	if got.IngredientName != "spinach" || got.Quantity != "200g" || got.DaysRemaining != 4 {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if got.FreshnessPercentage != 100 {
		t.Errorf("Freshness should be recomputed on load, got %d", got.FreshnessPercentage)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := testRepo(t)
	got, err := repo.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing item, got %+v", got)
	}
}

func TestRepositoryListOrder(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	for _, item := range []Item{
		testItem(t, "item-2", "tofu", 5),
		testItem(t, "item-1", "chicken breast", 3),
		testItem(t, "item-3", "spinach", 4),
	} {
		if err := repo.Insert(ctx, item); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if items[0].IngredientName != "chicken breast" || items[2].IngredientName != "tofu" {
		t.Errorf("Items not ordered by name: %s, %s, %s",
			items[0].IngredientName, items[1].IngredientName, items[2].IngredientName)
	}
}

func TestRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	item := testItem(t, "item-1", "spinach", 4)

	if err := repo.Insert(ctx, item); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	item.Quantity = "100g"
	item.DaysRemaining = 1
	if err := repo.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Quantity != "100g" || got.DaysRemaining != 1 {
		t.Errorf("Update not persisted: %+v", got)
	}
	if got.FreshnessPercentage != 25 {
		t.Errorf("Expected 25%% freshness after update, got %d", got.FreshnessPercentage)
	}

	missing := testItem(t, "ghost", "butter", 10)
	if err := repo.Update(ctx, missing); err == nil {
		t.Error("Update of a missing item should fail")
	}
}

func TestRepositoryReplaceAll(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	items := []Item{
		testItem(t, "item-1", "spinach", 4),
		testItem(t, "item-2", "tofu", 5),
	}
	for _, item := range items {
		if err := repo.Insert(ctx, item); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	decayed := DecayAll(items, 1)
	if err := repo.ReplaceAll(ctx, decayed); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	stored, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, item := range stored {
		if item.DaysRemaining != item.OriginalFreshnessDays-1 {
			t.Errorf("Item %s not decayed: %d days remaining", item.IngredientName, item.DaysRemaining)
		}
	}
}

func TestRepositorySweepExpired(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	fresh := testItem(t, "item-1", "spinach", 4)
	spoiled := testItem(t, "item-2", "milk", 2)
	spoiled.DaysRemaining = 0

	for _, item := range []Item{fresh, spoiled} {
		if err := repo.Insert(ctx, item); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	removed, err := repo.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed item, got %d", removed)
	}

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "item-1" {
		t.Errorf("Sweep removed the wrong rows: %+v", items)
	}
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	item := testItem(t, "item-1", "spinach", 4)

	if err := repo.Insert(ctx, item); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := repo.Delete(ctx, "item-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := repo.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Item should be gone, got %+v", got)
	}
}
