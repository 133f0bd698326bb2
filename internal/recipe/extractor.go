package recipe

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"preppilot/internal/llm"
	"preppilot/internal/shared"
)

//go:embed extractor_prompt.md
var extractorPrompt string

// PostData is the raw recipe post handed to the extractor.
type PostData struct {
	ID    string
	Title string
	HTML  string
}

// NormalizeHTML turns a raw recipe post into a structured Recipe using an
// LLM. The result is validated before it is returned; a recipe that fails
// validation is rejected rather than silently stored.
func NormalizeHTML(ctx context.Context, textGen llm.TextGenerator, data PostData) (Recipe, shared.AgentMeta, error) {
	start := time.Now()

	prompt, err := buildExtractorPrompt(data)
	if err != nil {
		return Recipe{}, shared.AgentMeta{}, err
	}

	llmResp, err := textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return Recipe{}, shared.AgentMeta{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	meta := shared.AgentMeta{
		AgentName: "Extractor",
		Usage:     llmResp.Usage,
		Latency:   time.Since(start),
	}

	var rec Recipe
	if err := json.Unmarshal([]byte(llmResp.Content), &rec); err != nil {
		return Recipe{}, meta, fmt.Errorf("failed to unmarshal LLM response: %w", err)
	}

	rec.ID = data.ID
	if rec.Name == "" {
		rec.Name = data.Title
	}
	if err := rec.Validate(); err != nil {
		return Recipe{}, meta, fmt.Errorf("extracted recipe is invalid: %w", err)
	}

	return rec, meta, nil
}

func buildExtractorPrompt(data PostData) (string, error) {
	tmpl, err := template.New("extractor").Parse(extractorPrompt)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
