package plan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"preppilot/internal/database"
	"preppilot/internal/recipe"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPlan(t *testing.T) *Plan {
	t.Helper()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	p, err := Generate(context.Background(), "", start, 2, recipe.AllMealTypes, threeMealSource())
	if err != nil {
		t.Fatalf("Failed to generate plan: %v", err)
	}
	return p
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB(t).SQL)
	p := testPlan(t)

	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p.Version != 1 {
		t.Errorf("Saved plan should be at version 1, got %d", p.Version)
	}

	got, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != p.ID || len(got.Slots) != len(p.Slots) || got.Version != 1 {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if got.Slots[0].PrepStatus != StatusPending {
		t.Errorf("Slot status lost in round trip: %s", got.Slots[0].PrepStatus)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewRepository(testDB(t).SQL)
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryLatest(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB(t).SQL)

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on empty table, got %v", err)
	}

	first := testPlan(t)
	first.CreatedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := testPlan(t)
	second.CreatedAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("Expected latest plan %s, got %s", second.ID, latest.ID)
	}
}

func TestRepositoryUpdateConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testDB(t).SQL)
	p := testPlan(t)
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Two readers pick up version 1.
	a, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	b, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := a.Slots[0].MarkPrep(StatusDone, time.Now().UTC()); err != nil {
		t.Fatalf("MarkPrep failed: %v", err)
	}
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("First update failed: %v", err)
	}
	if a.Version != 2 {
		t.Errorf("First writer should now hold version 2, got %d", a.Version)
	}

	// The stale second writer must not clobber the first.
	if err := b.Slots[0].MarkPrep(StatusSkipped, time.Now().UTC()); err != nil {
		t.Fatalf("MarkPrep failed: %v", err)
	}
	if err := repo.Update(ctx, b); !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	stored, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Slots[0].PrepStatus != StatusDone {
		t.Errorf("Conflicting write leaked through: %s", stored.Slots[0].PrepStatus)
	}

	// Refetch-and-retry succeeds.
	fresh, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := repo.Update(ctx, fresh); err != nil {
		t.Errorf("Retry after refetch should succeed, got %v", err)
	}
}

func TestRepositoryUpdateMissing(t *testing.T) {
	repo := NewRepository(testDB(t).SQL)
	p := testPlan(t)
	p.Version = 1
	if err := repo.Update(context.Background(), p); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
