package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Step parser assist providers.
const (
	AssistOff    = "off"
	AssistGemini = "gemini"
	AssistGroq   = "groq"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	CatalogPath  string

	// Recipe CMS (content + admin APIs)
	SourceURL        string
	SourceContentKey string
	SourceAdminKey   string

	// LLM assist
	GeminiAPIKey string
	GroqAPIKey   string
	StepAssist   string // off | gemini | groq

	// Engine policy
	ExpiryThresholdDays     int
	SimplifyAfterMissedDays int

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
}

// NewFromEnv creates a new Config object from environment variables.
// Only the settings needed by the selected features are required.
func NewFromEnv() (*Config, error) {
	cfg := &Config{
		DatabasePath:            envOr("PREPPILOT_DB_PATH", "data/preppilot.db"),
		CatalogPath:             envOr("PREPPILOT_CATALOG_PATH", "catalog.yaml"),
		SourceURL:               os.Getenv("RECIPE_SOURCE_URL"),
		SourceContentKey:        os.Getenv("RECIPE_SOURCE_CONTENT_KEY"),
		SourceAdminKey:          os.Getenv("RECIPE_SOURCE_ADMIN_KEY"),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:              os.Getenv("GROQ_API_KEY"),
		StepAssist:              envOr("STEP_ASSIST", AssistOff),
		ExpiryThresholdDays:     2,
		SimplifyAfterMissedDays: 2,
		TelegramBotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:      os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	if cfg.SourceAdminKey == "" {
		// Fallback to content key if only one is provided
		cfg.SourceAdminKey = cfg.SourceContentKey
	}

	switch cfg.StepAssist {
	case AssistOff:
	case AssistGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("STEP_ASSIST=gemini requires GEMINI_API_KEY to be set")
		}
	case AssistGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("STEP_ASSIST=groq requires GROQ_API_KEY to be set")
		}
	default:
		return nil, fmt.Errorf("invalid STEP_ASSIST value %q (want off, gemini or groq)", cfg.StepAssist)
	}

	if v := os.Getenv("EXPIRY_THRESHOLD_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid EXPIRY_THRESHOLD_DAYS value %q", v)
		}
		cfg.ExpiryThresholdDays = n
	}

	if v := os.Getenv("SIMPLIFY_AFTER_MISSED_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid SIMPLIFY_AFTER_MISSED_DAYS value %q", v)
		}
		cfg.SimplifyAfterMissedDays = n
	}

	if v := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q", part)
			}
			cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
		}
	}

	return cfg, nil
}

// RequireSource validates that the recipe CMS settings are present. Called by
// the import/ingest commands that talk to the CMS.
func (c *Config) RequireSource() error {
	if c.SourceURL == "" {
		return fmt.Errorf("RECIPE_SOURCE_URL environment variable not set")
	}
	if c.SourceContentKey == "" {
		return fmt.Errorf("RECIPE_SOURCE_CONTENT_KEY environment variable not set")
	}
	return nil
}

// RequireTelegram validates that the bot settings are present.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
