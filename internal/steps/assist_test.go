package steps

import (
	"context"
	"errors"
	"testing"

	"preppilot/internal/llm"
	"preppilot/internal/recipe"
	"preppilot/internal/shared"
)

type mockTextGen struct {
	response    string
	shouldError bool
}

func (m *mockTextGen) GenerateContent(_ context.Context, _ string) (llm.ContentResponse, error) {
	if m.shouldError {
		return llm.ContentResponse{}, errors.New("LLM error")
	}
	return llm.ContentResponse{
		Content: m.response,
		Usage:   shared.TokenUsage{Model: "test-model", PromptTokens: 200, CompletionTokens: 80},
	}, nil
}

type recordedMeta struct {
	metas []shared.AgentMeta
}

func (r *recordedMeta) RecordMeta(meta shared.AgentMeta) error {
	r.metas = append(r.metas, meta)
	return nil
}

func assistRecipe() recipe.Recipe {
	return recipe.Recipe{
		Name:      "Omelette",
		MealType:  recipe.MealBreakfast,
		PrepSteps: []string{"Chop the onion", "Cook the omelette for 5 minutes"},
		Ingredients: []recipe.Ingredient{
			{Name: "onion", FreshnessDays: 7},
			{Name: "eggs", FreshnessDays: 14},
		},
	}
}

func TestAssistParserSuccess(t *testing.T) {
	mock := &mockTextGen{response: `{"steps": [
		{"action": "chop onion", "ingredient": "onion", "duration_minutes": 5, "batch_key": "chop onion", "equipment": "prep_area", "phase": "prep"},
		{"action": "cook omelette", "duration_minutes": 0, "equipment": "stovetop", "phase": "cooking"}
	]}`}
	usage := &recordedMeta{}
	parser := NewAssistParser(mock, usage)

	steps, err := parser.ParseSteps(context.Background(), assistRecipe())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(steps))
	}
	if !steps[0].CanBatch {
		t.Error("A step with a batch key should be batchable")
	}
	if steps[1].CanBatch {
		t.Error("A step without a batch key must not be batchable")
	}
	if steps[1].DurationMinutes != 1 {
		t.Errorf("Zero durations should clamp to 1, got %d", steps[1].DurationMinutes)
	}
	if len(usage.metas) != 1 || usage.metas[0].AgentName != "StepAssist" {
		t.Errorf("Expected one recorded StepAssist meta, got %+v", usage.metas)
	}
}

func TestAssistParserFallsBackToRules(t *testing.T) {
	rec := assistRecipe()
	want, _ := RuleParser{}.ParseSteps(context.Background(), rec)

	cases := map[string]*mockTextGen{
		"LLMError":       {shouldError: true},
		"MalformedJSON":  {response: "oops"},
		"WrongStepCount": {response: `{"steps": [{"action": "chop onion", "duration_minutes": 5}]}`},
		"BadEquipment":   {response: `{"steps": [{"action": "a", "duration_minutes": 1, "equipment": "microwave"}, {"action": "b", "duration_minutes": 1}]}`},
		"EmptyAction":    {response: `{"steps": [{"action": "", "duration_minutes": 1}, {"action": "b", "duration_minutes": 1}]}`},
	}

	for name, mock := range cases {
		t.Run(name, func(t *testing.T) {
			parser := NewAssistParser(mock, nil)
			got, err := parser.ParseSteps(context.Background(), rec)
			if err != nil {
				t.Fatalf("Fallback must not error, got %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("Expected the rule parser's %d steps, got %d", len(want), len(got))
			}
			for i := range got {
				if got[i].Action != want[i].Action {
					t.Errorf("Step %d: expected %q, got %q", i, want[i].Action, got[i].Action)
				}
			}
		})
	}
}
