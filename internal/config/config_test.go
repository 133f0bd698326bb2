package config

import (
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PREPPILOT_DB_PATH", "PREPPILOT_CATALOG_PATH",
		"RECIPE_SOURCE_URL", "RECIPE_SOURCE_CONTENT_KEY", "RECIPE_SOURCE_ADMIN_KEY",
		"GEMINI_API_KEY", "GROQ_API_KEY", "STEP_ASSIST",
		"EXPIRY_THRESHOLD_DAYS", "SIMPLIFY_AFTER_MISSED_DAYS",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_WEBHOOK_URL", "TELEGRAM_ALLOWED_USER_IDS",
	} {
		t.Setenv(key, "")
	}
}

func TestNewFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := NewFromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.DatabasePath != "data/preppilot.db" {
		t.Errorf("Unexpected default db path %q", cfg.DatabasePath)
	}
	if cfg.CatalogPath != "catalog.yaml" {
		t.Errorf("Unexpected default catalog path %q", cfg.CatalogPath)
	}
	if cfg.StepAssist != AssistOff {
		t.Errorf("Step assist should default off, got %q", cfg.StepAssist)
	}
	if cfg.ExpiryThresholdDays != 2 || cfg.SimplifyAfterMissedDays != 2 {
		t.Errorf("Unexpected default thresholds: %d/%d", cfg.ExpiryThresholdDays, cfg.SimplifyAfterMissedDays)
	}
}

func TestNewFromEnvStepAssist(t *testing.T) {
	t.Run("GeminiNeedsKey", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STEP_ASSIST", "gemini")
		if _, err := NewFromEnv(); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
			t.Errorf("Expected GEMINI_API_KEY error, got %v", err)
		}
	})

	t.Run("GroqNeedsKey", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STEP_ASSIST", "groq")
		if _, err := NewFromEnv(); err == nil || !strings.Contains(err.Error(), "GROQ_API_KEY") {
			t.Errorf("Expected GROQ_API_KEY error, got %v", err)
		}
	})

	t.Run("GroqWithKey", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STEP_ASSIST", "groq")
		t.Setenv("GROQ_API_KEY", "gsk_test")
		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.StepAssist != AssistGroq {
			t.Errorf("Unexpected assist mode %q", cfg.StepAssist)
		}
	})

	t.Run("InvalidValue", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STEP_ASSIST", "chatgpt")
		if _, err := NewFromEnv(); err == nil {
			t.Error("Expected error for unknown assist provider")
		}
	})
}

func TestNewFromEnvThresholds(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPIRY_THRESHOLD_DAYS", "3")
	t.Setenv("SIMPLIFY_AFTER_MISSED_DAYS", "4")

	cfg, err := NewFromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.ExpiryThresholdDays != 3 || cfg.SimplifyAfterMissedDays != 4 {
		t.Errorf("Thresholds not applied: %d/%d", cfg.ExpiryThresholdDays, cfg.SimplifyAfterMissedDays)
	}

	t.Setenv("EXPIRY_THRESHOLD_DAYS", "nope")
	if _, err := NewFromEnv(); err == nil {
		t.Error("Expected error for non-numeric threshold")
	}
}

func TestNewFromEnvTelegramUsers(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "123, 456,789")

	cfg, err := NewFromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(cfg.TelegramAllowedUserIDs) != 3 || cfg.TelegramAllowedUserIDs[1] != 456 {
		t.Errorf("Unexpected allow list %v", cfg.TelegramAllowedUserIDs)
	}

	t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "abc")
	if _, err := NewFromEnv(); err == nil {
		t.Error("Expected error for non-numeric user ID")
	}
}

func TestRequireHelpers(t *testing.T) {
	clearEnv(t)
	cfg, err := NewFromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := cfg.RequireSource(); err == nil {
		t.Error("RequireSource should fail without a CMS URL")
	}
	if err := cfg.RequireTelegram(); err == nil {
		t.Error("RequireTelegram should fail without a bot token")
	}

	cfg.SourceURL = "https://recipes.example.com"
	cfg.SourceContentKey = "content-key"
	if err := cfg.RequireSource(); err != nil {
		t.Errorf("RequireSource should pass, got %v", err)
	}

	cfg.TelegramBotToken = "token"
	cfg.TelegramWebhookURL = "https://bot.example.com/webhook"
	if err := cfg.RequireTelegram(); err != nil {
		t.Errorf("RequireTelegram should pass, got %v", err)
	}
}

func TestAdminKeyFallsBackToContentKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECIPE_SOURCE_CONTENT_KEY", "content-key")

	cfg, err := NewFromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.SourceAdminKey != "content-key" {
		t.Errorf("Admin key should fall back to the content key, got %q", cfg.SourceAdminKey)
	}
}
