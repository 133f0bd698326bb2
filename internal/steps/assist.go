package steps

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"text/template"
	"time"

	"preppilot/internal/llm"
	"preppilot/internal/recipe"
	"preppilot/internal/shared"
)

//go:embed assist_prompt.md
var assistPrompt string

// UsageRecorder receives token usage metadata for assist calls.
type UsageRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

// AssistParser delegates step structuring to a language model behind the
// same PrepStep contract. Any failure or malformed output falls back to the
// deterministic rule parser, so batching never depends on a model being
// available or well behaved.
type AssistParser struct {
	textGen llm.TextGenerator
	rules   RuleParser
	usage   UsageRecorder
}

// NewAssistParser creates an AssistParser. usage may be nil.
func NewAssistParser(textGen llm.TextGenerator, usage UsageRecorder) *AssistParser {
	return &AssistParser{textGen: textGen, usage: usage}
}

type rawAssistResult struct {
	Steps []PrepStep `json:"steps"`
}

// ParseSteps implements Parser.
func (p *AssistParser) ParseSteps(ctx context.Context, rec recipe.Recipe) ([]PrepStep, error) {
	start := time.Now()

	prompt, err := buildAssistPrompt(rec)
	if err != nil {
		log.Printf("Step assist prompt failed for %q, using rule parser: %v", rec.Name, err)
		return p.rules.ParseSteps(ctx, rec)
	}

	resp, err := p.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		log.Printf("Step assist failed for %q, using rule parser: %v", rec.Name, err)
		return p.rules.ParseSteps(ctx, rec)
	}

	if p.usage != nil {
		meta := shared.AgentMeta{
			AgentName: "StepAssist",
			Usage:     resp.Usage,
			Latency:   time.Since(start),
		}
		if err := p.usage.RecordMeta(meta); err != nil {
			log.Printf("Warning: failed to record step assist usage: %v", err)
		}
	}

	raw := &rawAssistResult{}
	if err := json.Unmarshal([]byte(resp.Content), raw); err != nil {
		log.Printf("Step assist returned malformed JSON for %q, using rule parser: %v", rec.Name, err)
		return p.rules.ParseSteps(ctx, rec)
	}

	steps, err := sanitizeAssistSteps(raw.Steps, len(rec.PrepSteps))
	if err != nil {
		log.Printf("Step assist output rejected for %q, using rule parser: %v", rec.Name, err)
		return p.rules.ParseSteps(ctx, rec)
	}
	return steps, nil
}

// sanitizeAssistSteps enforces the PrepStep contract on model output.
func sanitizeAssistSteps(steps []PrepStep, wantLines int) ([]PrepStep, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps returned")
	}
	if wantLines > 0 && len(steps) != wantLines {
		return nil, fmt.Errorf("expected %d steps, got %d", wantLines, len(steps))
	}

	out := make([]PrepStep, 0, len(steps))
	for i, s := range steps {
		if s.Action == "" {
			return nil, fmt.Errorf("step %d has no action", i+1)
		}
		if !ValidEquipment(s.Equipment) {
			return nil, fmt.Errorf("step %d has unknown equipment %q", i+1, s.Equipment)
		}
		if !ValidPhase(s.Phase) {
			return nil, fmt.Errorf("step %d has unknown phase %q", i+1, s.Phase)
		}
		if s.DurationMinutes < 0 {
			return nil, fmt.Errorf("step %d has negative duration", i+1)
		}
		if s.DurationMinutes == 0 {
			s.DurationMinutes = 1
		}
		s.CanBatch = s.BatchKey != ""
		s.SourceRecipes = nil
		s.StepNumber = 0
		out = append(out, s)
	}
	return out, nil
}

func buildAssistPrompt(rec recipe.Recipe) (string, error) {
	tmpl, err := template.New("assist").Parse(assistPrompt)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, rec); err != nil {
		return "", err
	}
	return buf.String(), nil
}
