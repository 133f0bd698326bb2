package steps

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"preppilot/internal/recipe"
)

// Parser converts a recipe's free-text prep steps into structured prep
// steps. Implementations must emit the same PrepStep contract; the
// rule-based path is deterministic for identical input.
type Parser interface {
	ParseSteps(ctx context.Context, rec recipe.Recipe) ([]PrepStep, error)
}

// RuleParser is the deterministic rule-based parser. It is the default
// implementation and the fallback for the LLM assist.
type RuleParser struct{}

// ParseSteps implements Parser. It never fails: unclassifiable lines fall
// back to a generic unbatchable step rather than being dropped.
func (RuleParser) ParseSteps(_ context.Context, rec recipe.Recipe) ([]PrepStep, error) {
	return ParseRecipe(rec), nil
}

// ParseRecipe parses every prep step line of a recipe.
func ParseRecipe(rec recipe.Recipe) []PrepStep {
	fallback := fallbackMinutes(rec)

	var out []PrepStep
	for _, line := range rec.PrepSteps {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, parseLine(line, rec, fallback))
	}
	return out
}

var (
	wordRe    = regexp.MustCompile(`[a-zA-Zé-]+`)
	minutesRe = regexp.MustCompile(`(\d+)(?:\s*(?:-|–|to)\s*(\d+))?\s*(?:minutes|minute|mins|min)\b`)
	hoursRe   = regexp.MustCompile(`(\d+)\s*(?:hours|hour|hrs|hr)\b`)
)

// objectStopwords are skipped when deriving the action object from the words
// following the verb.
var objectStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "all": true, "of": true,
	"and": true, "to": true, "in": true, "on": true, "into": true,
	"with": true, "for": true, "until": true, "then": true, "over": true,
	"each": true, "some": true, "your": true, "them": true, "it": true,
}

func parseLine(line string, rec recipe.Recipe, fallback int) PrepStep {
	normalized := strings.ToLower(strings.TrimSpace(line))
	normalized = strings.TrimRight(normalized, ".!")

	words := wordRe.FindAllString(normalized, -1)

	verb := ""
	verbIdx := -1
	for i, w := range words {
		if v, ok := canonicalVerb(w); ok {
			verb = v
			verbIdx = i
			break
		}
	}

	explicit, hasExplicit := explicitDuration(normalized)

	if verb == "" {
		// No recognizable action: keep the step, unbatchable.
		dur := fallback
		if hasExplicit {
			dur = explicit
		}
		return PrepStep{
			Action:          normalized,
			DurationMinutes: dur,
			CanBatch:        false,
			Equipment:       EquipmentNone,
			IsPassive:       false,
			Phase:           PhaseNone,
		}
	}

	rule := verbTable[verb]
	dur := rule.defaultMinutes
	if hasExplicit {
		dur = explicit
	}

	ingredient := matchIngredient(normalized, rec)

	object := ""
	if ingredient != "" {
		object = singular(strings.ToLower(ingredient))
	} else {
		for _, w := range words[verbIdx+1:] {
			if objectStopwords[w] {
				continue
			}
			if _, isVerb := canonicalVerb(w); isVerb {
				break
			}
			object = singular(w)
			break
		}
	}

	action := verb
	if object != "" {
		action = verb + " " + object
	}

	return PrepStep{
		Action:          action,
		Ingredient:      ingredient,
		DurationMinutes: dur,
		CanBatch:        true,
		BatchKey:        action,
		Equipment:       rule.equipment,
		IsPassive:       rule.passiveOK && dur > passiveThresholdMinutes,
		Phase:           rule.phase,
	}
}

// explicitDuration extracts an explicit "for N minutes" style duration. A
// range takes its upper bound.
func explicitDuration(line string) (int, bool) {
	if m := minutesRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		if m[2] != "" {
			if hi, err := strconv.Atoi(m[2]); err == nil && hi > n {
				n = hi
			}
		}
		return n, true
	}
	if m := hoursRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 60, true
	}
	return 0, false
}

// matchIngredient finds the recipe ingredient mentioned in the line,
// preferring the longest name; ties keep recipe order.
func matchIngredient(line string, rec recipe.Recipe) string {
	best := ""
	for _, ing := range rec.Ingredients {
		name := strings.ToLower(ing.Name)
		if name == "" {
			continue
		}
		if strings.Contains(line, name) || strings.Contains(line, singular(name)) {
			if len(name) > len(best) {
				best = ing.Name
			}
		}
	}
	return best
}

// singular applies a few plural-folding rules so "onions" and "onion" share
// a batch key.
func singular(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "oes"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && !strings.HasSuffix(word, "us"):
		return word[:len(word)-1]
	}
	return word
}

// fallbackMinutes is the recipe-level default duration for unclassifiable
// lines: the recipe's prep time spread evenly over its steps.
func fallbackMinutes(rec recipe.Recipe) int {
	if rec.PrepTimeMinutes > 0 && len(rec.PrepSteps) > 0 {
		if per := rec.PrepTimeMinutes / len(rec.PrepSteps); per > 0 {
			return per
		}
		return 1
	}
	return 5
}
