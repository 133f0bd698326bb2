package fridge

import (
	"errors"
	"testing"
	"time"

	"preppilot/internal/shared"
)

func TestNew(t *testing.T) {
	added := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("FullFreshness", func(t *testing.T) {
		item, err := New("id-1", "chicken breast", "500g", 3, added)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if item.DaysRemaining != 3 || item.OriginalFreshnessDays != 3 {
			t.Errorf("Expected 3/3 days, got %d/%d", item.DaysRemaining, item.OriginalFreshnessDays)
		}
		if item.FreshnessPercentage != 100 {
			t.Errorf("Expected 100%% fresh, got %d%%", item.FreshnessPercentage)
		}
	})

	t.Run("RejectsZeroFreshness", func(t *testing.T) {
		_, err := New("id-2", "milk", "1l", 0, added)
		var verr *shared.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Expected validation error, got %v", err)
		}
	})

	t.Run("RejectsEmptyName", func(t *testing.T) {
		if _, err := New("id-3", "", "1", 5, added); err == nil {
			t.Fatal("Expected error for empty ingredient name")
		}
	})
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		remaining, original, want int
	}{
		{7, 7, 100},
		{5, 7, 71},
		{4, 7, 57},
		{0, 7, 0},
		{3, 0, 0},
		{10, 7, 100},
	}
	for _, c := range cases {
		if got := Percentage(c.remaining, c.original); got != c.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", c.remaining, c.original, got, c.want)
		}
	}
}

func TestDecayAll(t *testing.T) {
	added := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	spinach, _ := New("a", "spinach", "100g", 4, added)
	oats, _ := New("b", "rolled oats", "500g", 90, added)
	items := []Item{spinach, oats}

	t.Run("ClampsAtZero", func(t *testing.T) {
		decayed := DecayAll(items, 10)
		if decayed[0].DaysRemaining != 0 {
			t.Errorf("Expected spinach at 0 days, got %d", decayed[0].DaysRemaining)
		}
		if decayed[0].FreshnessPercentage != 0 {
			t.Errorf("Expected 0%% fresh, got %d%%", decayed[0].FreshnessPercentage)
		}
		if decayed[1].DaysRemaining != 80 {
			t.Errorf("Expected oats at 80 days, got %d", decayed[1].DaysRemaining)
		}
	})

	t.Run("InputUntouched", func(t *testing.T) {
		DecayAll(items, 2)
		if items[0].DaysRemaining != 4 {
			t.Errorf("Input slice was mutated: %d days", items[0].DaysRemaining)
		}
	})

	t.Run("ZeroDaysIsIdentity", func(t *testing.T) {
		decayed := DecayAll(items, 0)
		if decayed[0] != items[0] || decayed[1] != items[1] {
			t.Error("Decay by 0 days should not change items")
		}
	})
}

func TestExpiring(t *testing.T) {
	added := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(name string, days int) Item {
		item, _ := New("id-"+name, name, "1", 10, added)
		item.DaysRemaining = days
		return item
	}
	items := []Item{mk("tomato", 5), mk("salmon fillet", 1), mk("milk", 2), mk("basil", 1)}

	got := Expiring(items, 2)
	if len(got) != 3 {
		t.Fatalf("Expected 3 expiring items, got %d", len(got))
	}
	wantOrder := []string{"basil", "salmon fillet", "milk"}
	for i, name := range wantOrder {
		if got[i].IngredientName != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, got[i].IngredientName)
		}
	}
}

func TestApplyManualUpdate(t *testing.T) {
	added := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	item, _ := New("id", "cheddar cheese", "200g", 10, added)
	item.DaysRemaining = 4
	item.FreshnessPercentage = Percentage(4, 10)

	t.Run("UpdatesDaysAndPercentage", func(t *testing.T) {
		days := 8
		updated, err := ApplyManualUpdate(item, nil, &days)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if updated.DaysRemaining != 8 {
			t.Errorf("Expected 8 days, got %d", updated.DaysRemaining)
		}
		// Denominator stays the original 10 days.
		if updated.FreshnessPercentage != 80 {
			t.Errorf("Expected 80%%, got %d%%", updated.FreshnessPercentage)
		}
	})

	t.Run("RejectsOutOfRange", func(t *testing.T) {
		days := 400
		if _, err := ApplyManualUpdate(item, nil, &days); err == nil {
			t.Fatal("Expected error for days above the cap")
		}
		days = -1
		if _, err := ApplyManualUpdate(item, nil, &days); err == nil {
			t.Fatal("Expected error for negative days")
		}
	})

	t.Run("RejectsEmptyQuantity", func(t *testing.T) {
		qty := ""
		if _, err := ApplyManualUpdate(item, &qty, nil); err == nil {
			t.Fatal("Expected error for empty quantity")
		}
	})

	t.Run("UpdatesQuantityOnly", func(t *testing.T) {
		qty := "150g"
		updated, err := ApplyManualUpdate(item, &qty, nil)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if updated.Quantity != "150g" || updated.DaysRemaining != 4 {
			t.Errorf("Unexpected update result: %+v", updated)
		}
	})
}
