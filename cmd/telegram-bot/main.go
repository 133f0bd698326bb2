package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"preppilot/internal/config"
	"preppilot/internal/database"
	"preppilot/internal/engine"
	"preppilot/internal/importer"
	"preppilot/internal/llm"
	"preppilot/internal/metrics"
	"preppilot/internal/source"
	"preppilot/internal/steps"
	"preppilot/internal/telegram"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("Telegram is not configured: %v", err)
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	metricsStore := metrics.NewStore(db.SQL)

	var parser steps.Parser = steps.RuleParser{}
	switch cfg.StepAssist {
	case config.AssistGemini:
		client, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		defer client.Close()
		parser = steps.NewAssistParser(client, metricsStore)
	case config.AssistGroq:
		parser = steps.NewAssistParser(llm.NewGroqClient(cfg), metricsStore)
	}

	app := engine.New(cfg, db, parser)

	// The importer is optional; without a CMS the bot still plans and
	// tracks, it just cannot clip URLs.
	var imp *importer.Importer
	if err := cfg.RequireSource(); err != nil {
		log.Printf("Recipe import disabled: %v", err)
	} else if cfg.GroqAPIKey == "" {
		log.Print("Recipe import disabled: GROQ_API_KEY is not set")
	} else {
		imp = importer.New(source.NewClient(cfg), llm.NewGroqClient(cfg), app.Recipes(), metricsStore)
	}

	bot, err := telegram.NewBot(cfg, app, imp)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	bot.RegisterHandlers()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	go func() {
		log.Printf("Telegram Bot Server listening on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
