package steps

import (
	"testing"

	"preppilot/internal/recipe"
)

func testRecipe() recipe.Recipe {
	return recipe.Recipe{
		Name:            "Veggie Omelette",
		MealType:        recipe.MealBreakfast,
		PrepTimeMinutes: 15,
		Ingredients: []recipe.Ingredient{
			{Name: "eggs", Quantity: "4", FreshnessDays: 14},
			{Name: "onion", Quantity: "1", FreshnessDays: 7},
			{Name: "bell pepper", Quantity: "1", FreshnessDays: 5},
		},
		PrepSteps: []string{
			"Chop the onion",
			"Whisk the eggs",
			"Saute the vegetables for 3 minutes",
		},
	}
}

func TestParseRecipe(t *testing.T) {
	rec := testRecipe()
	steps := ParseRecipe(rec)
	if len(steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(steps))
	}

	t.Run("ChopMatchesIngredient", func(t *testing.T) {
		s := steps[0]
		if s.Action != "chop onion" {
			t.Errorf("Expected action 'chop onion', got %q", s.Action)
		}
		if s.Ingredient != "onion" {
			t.Errorf("Expected ingredient 'onion', got %q", s.Ingredient)
		}
		if !s.CanBatch || s.BatchKey != "chop onion" {
			t.Errorf("Expected batchable with key 'chop onion', got %v %q", s.CanBatch, s.BatchKey)
		}
		if s.Equipment != EquipmentPrepArea || s.Phase != PhasePrep {
			t.Errorf("Expected prep_area/prep, got %s/%s", s.Equipment, s.Phase)
		}
		if s.DurationMinutes != 5 {
			t.Errorf("Expected default 5 minutes, got %d", s.DurationMinutes)
		}
	})

	t.Run("SynonymFoldsToCanonicalVerb", func(t *testing.T) {
		s := steps[1]
		if s.Action != "mix egg" {
			t.Errorf("Expected whisk to fold to 'mix egg', got %q", s.Action)
		}
	})

	t.Run("ExplicitDurationWins", func(t *testing.T) {
		s := steps[2]
		if s.DurationMinutes != 3 {
			t.Errorf("Expected explicit 3 minutes, got %d", s.DurationMinutes)
		}
		if s.Equipment != EquipmentStovetop {
			t.Errorf("Expected stovetop, got %s", s.Equipment)
		}
	})
}

func TestParseLinePassive(t *testing.T) {
	rec := recipe.Recipe{Name: "Roast", PrepSteps: []string{
		"Preheat the oven to 200C",
		"Simmer for 25 minutes",
		"Simmer for 2 minutes",
	}}
	steps := ParseRecipe(rec)

	if !steps[0].IsPassive {
		t.Error("Preheat at 10 minutes should be passive")
	}
	if steps[0].Equipment != EquipmentOven {
		t.Errorf("Expected oven for preheat, got %s", steps[0].Equipment)
	}
	if !steps[1].IsPassive {
		t.Error("A 25 minute simmer should be passive")
	}
	if steps[2].IsPassive {
		t.Error("A 2 minute simmer is below the passive threshold")
	}
}

func TestParseLineDurationRange(t *testing.T) {
	rec := recipe.Recipe{Name: "Bake", PrepSteps: []string{
		"Bake for 20-25 minutes",
		"Rest for 1 hour",
	}}
	steps := ParseRecipe(rec)

	if steps[0].DurationMinutes != 25 {
		t.Errorf("Range should take the upper bound, got %d", steps[0].DurationMinutes)
	}
	if steps[1].DurationMinutes != 60 {
		t.Errorf("Hours should convert to minutes, got %d", steps[1].DurationMinutes)
	}
}

func TestParseLineNoVerb(t *testing.T) {
	rec := recipe.Recipe{
		Name:            "Odd",
		PrepTimeMinutes: 12,
		PrepSteps:       []string{"Enjoy with friends", "Squish everything together"},
	}
	steps := ParseRecipe(rec)
	if len(steps) != 2 {
		t.Fatalf("Unclassifiable lines must be kept, got %d steps", len(steps))
	}
	for _, s := range steps {
		if s.CanBatch {
			t.Errorf("Step %q should not be batchable", s.Action)
		}
		if s.DurationMinutes != 6 {
			t.Errorf("Expected fallback 12/2=6 minutes, got %d", s.DurationMinutes)
		}
		if s.Equipment != EquipmentNone || s.Phase != PhaseNone {
			t.Errorf("Expected no equipment/phase, got %s/%s", s.Equipment, s.Phase)
		}
	}
}

func TestParseRecipeSkipsBlankLines(t *testing.T) {
	rec := recipe.Recipe{Name: "Gaps", PrepSteps: []string{"Chop the carrot", "   ", ""}}
	steps := ParseRecipe(rec)
	if len(steps) != 1 {
		t.Fatalf("Expected 1 step, got %d", len(steps))
	}
}

func TestSingular(t *testing.T) {
	cases := map[string]string{
		"onions":     "onion",
		"berries":    "berry",
		"tomatoes":   "tomato",
		"eggs":       "egg",
		"glass":      "glass",
		"asparagus":  "asparagus",
		"bell":       "bell",
	}
	for in, want := range cases {
		if got := singular(in); got != want {
			t.Errorf("singular(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBatchKeysMatchAcrossRecipes(t *testing.T) {
	a := recipe.Recipe{Name: "A", Ingredients: []recipe.Ingredient{{Name: "onions", FreshnessDays: 7}}, PrepSteps: []string{"Dice the onions"}}
	b := recipe.Recipe{Name: "B", Ingredients: []recipe.Ingredient{{Name: "onion", FreshnessDays: 7}}, PrepSteps: []string{"Chop the onion"}}

	sa := ParseRecipe(a)
	sb := ParseRecipe(b)
	if sa[0].BatchKey != sb[0].BatchKey {
		t.Errorf("Expected matching batch keys, got %q vs %q", sa[0].BatchKey, sb[0].BatchKey)
	}
}
