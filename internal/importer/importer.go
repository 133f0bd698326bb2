package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"preppilot/internal/llm"
	"preppilot/internal/recipe"
	"preppilot/internal/shared"
	"preppilot/internal/source"
)

// UsageRecorder receives token usage metadata from LLM calls.
type UsageRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

// Importer pulls recipes into the engine: clipping web pages into the CMS
// and ingesting CMS posts into the local recipe store.
type Importer struct {
	cms     source.Client
	textGen llm.TextGenerator
	recipes *recipe.Repository
	usage   UsageRecorder
}

// ExtractedRecipe is the flat shape the clipping prompt asks for.
type ExtractedRecipe struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	PrepTime    string   `json:"prep_time"`
	Servings    string   `json:"servings"`
}

// New creates an Importer. usage may be nil.
func New(cms source.Client, textGen llm.TextGenerator, recipes *recipe.Repository, usage UsageRecorder) *Importer {
	return &Importer{
		cms:     cms,
		textGen: textGen,
		recipes: recipes,
		usage:   usage,
	}
}

// ClipURL fetches the URL, extracts the recipe with the LLM, and publishes
// it to the CMS as a post. Ingest later picks it up.
func (im *Importer) ClipURL(ctx context.Context, url string) (*source.Post, error) {
	content, err := im.fetchAndCleanHTML(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	prompt := fmt.Sprintf(`
You are a recipe extraction expert. Extract the recipe details from the following HTML content.
Return the result strictly as a JSON object with this structure:
{
  "title": "Recipe Title",
  "ingredients": ["item 1", "item 2", ...],
  "steps": ["Step 1 description", "Step 2 description", ...],
  "prep_time": "e.g. 30 mins",
  "servings": "e.g. 4 people"
}

HTML Content:
%s
`, content)

	start := time.Now()
	llmResp, err := im.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ai extraction failed: %w", err)
	}
	im.recordUsage("Clipper", llmResp.Usage, time.Since(start))

	var extracted ExtractedRecipe
	if err := json.Unmarshal([]byte(llmResp.Content), &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w. Response: %s", err, llmResp.Content)
	}

	html := formatToHTML(extracted, url)

	post, err := im.cms.CreatePost(extracted.Title, html, true)
	if err != nil {
		return nil, fmt.Errorf("failed to save to cms: %w", err)
	}

	return post, nil
}

// Ingest fetches all CMS posts, normalizes each into a structured recipe
// and upserts it into the local store. Posts that fail extraction are
// logged and skipped; returns the number of recipes saved.
func (im *Importer) Ingest(ctx context.Context) (int, error) {
	posts, err := im.cms.FetchRecipes()
	if err != nil {
		return 0, fmt.Errorf("failed to fetch posts: %w", err)
	}

	saved := 0
	for _, post := range posts {
		rec, meta, err := recipe.NormalizeHTML(ctx, im.textGen, recipe.PostData{
			ID:    post.ID,
			Title: post.Title,
			HTML:  post.HTML,
		})
		im.recordUsage(meta.AgentName, meta.Usage, meta.Latency)
		if err != nil {
			log.Printf("ingest: skipping post %q: %v", post.Title, err)
			continue
		}
		if err := im.recipes.Save(ctx, rec); err != nil {
			return saved, fmt.Errorf("failed to save recipe %q: %w", rec.Name, err)
		}
		saved++
	}
	return saved, nil
}

func (im *Importer) recordUsage(agent string, usage shared.TokenUsage, latency time.Duration) {
	if im.usage == nil {
		return
	}
	if err := im.usage.RecordMeta(shared.AgentMeta{AgentName: agent, Usage: usage, Latency: latency}); err != nil {
		log.Printf("failed to record usage for %s: %v", agent, err)
	}
}

func (im *Importer) fetchAndCleanHTML(url string) (string, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text(), nil
}

func formatToHTML(r ExtractedRecipe, sourceURL string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<p><i>Imported from: <a href=\"%s\">%s</a></i></p>", sourceURL, sourceURL))

	sb.WriteString("<h2>Ingredients</h2><ul>")
	for _, ing := range r.Ingredients {
		sb.WriteString(fmt.Sprintf("<li>%s</li>", ing))
	}
	sb.WriteString("</ul>")

	sb.WriteString("<h2>Instructions</h2><ol>")
	for _, step := range r.Steps {
		sb.WriteString(fmt.Sprintf("<li>%s</li>", step))
	}
	sb.WriteString("</ol>")

	sb.WriteString("<hr>")
	sb.WriteString(fmt.Sprintf("<p><strong>Prep Time:</strong> %s | <strong>Servings:</strong> %s</p>", r.PrepTime, r.Servings))

	return sb.String()
}
