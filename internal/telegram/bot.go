package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"preppilot/internal/adaptive"
	"preppilot/internal/config"
	"preppilot/internal/engine"
	"preppilot/internal/fridge"
	"preppilot/internal/importer"
	"preppilot/internal/plan"
	"preppilot/internal/prep"
	"preppilot/internal/recipe"
)

// Bot wraps the Telegram API around the engine.
type Bot struct {
	api *tgbotapi.BotAPI
	app *engine.App
	imp *importer.Importer
	cfg *config.Config

	// pending holds the last /adapt proposal per chat until it is
	// confirmed or replaced.
	mu      sync.Mutex
	pending map[int64]*adaptive.Output
}

// NewBot initializes the Telegram bot and sets the webhook. imp may be nil
// when no CMS is configured; URL clipping is then disabled.
func NewBot(cfg *config.Config, app *engine.App, imp *importer.Importer) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	wh, _ := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api:     bot,
		app:     app,
		imp:     imp,
		cfg:     cfg,
		pending: make(map[int64]*adaptive.Output),
	}, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		if b.allowed(update.CallbackQuery.From.ID) {
			b.handleCallbackQuery(update.CallbackQuery)
		}
		return
	}

	if update.Message == nil {
		return
	}

	if !b.allowed(update.Message.From.ID) {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) allowed(userID int64) bool {
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if userID == id {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		b.handleClipRequest(msg)
		return
	}

	cmd, args := splitCommand(text)
	switch cmd {
	case "/plan":
		b.handlePlan(msg.Chat.ID, args)
	case "/timeline":
		b.handleTimeline(msg.Chat.ID, args)
	case "/done":
		b.handleMark(msg.Chat.ID, args, plan.StatusDone)
	case "/skip":
		b.handleMark(msg.Chat.ID, args, plan.StatusSkipped)
	case "/catchup":
		b.handleCatchUp(msg.Chat.ID)
	case "/adapt":
		b.handleAdapt(msg.Chat.ID)
	case "/fridge":
		b.handleFridge(msg.Chat.ID, args)
	case "/metrics":
		b.handleMetrics(msg.Chat.ID)
	default:
		b.reply(msg.Chat.ID, "Commands:\n/plan [diet] [days]\n/timeline [YYYY-MM-DD]\n/done <breakfast|lunch|dinner> [date]\n/skip <meal> [date]\n/catchup\n/adapt\n/fridge [add name|qty|days]\n/metrics\n\nOr send a recipe URL to import it.")
	}
}

func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (b *Bot) handlePlan(chatID int64, args []string) {
	diet := ""
	days := 7
	if len(args) > 0 {
		diet = args[0]
	}
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			days = n
		}
	}

	ctx := context.Background()
	p, err := b.app.GeneratePlan(ctx, diet, time.Now(), days, recipe.AllMealTypes)
	if err != nil {
		b.replyError(chatID, "Error generating plan", err)
		return
	}
	b.reply(chatID, formatPlan(p))
}

func (b *Bot) handleTimeline(chatID int64, args []string) {
	date := time.Now()
	if len(args) > 0 {
		parsed, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			b.reply(chatID, "Date must be YYYY-MM-DD.")
			return
		}
		date = parsed
	}

	ctx := context.Background()
	p, err := b.app.LatestPlan(ctx)
	if err != nil {
		b.replyError(chatID, "No plan found", err)
		return
	}
	tl, err := b.app.PrepTimeline(ctx, p.ID, date)
	if err != nil {
		b.replyError(chatID, "Error building timeline", err)
		return
	}
	b.reply(chatID, formatTimeline(tl))
}

func (b *Bot) handleMark(chatID int64, args []string, status plan.PrepStatus) {
	if len(args) == 0 {
		b.reply(chatID, "Which meal? e.g. /done dinner")
		return
	}
	mt, err := recipe.ParseMealType(args[0])
	if err != nil {
		b.reply(chatID, "Meal must be breakfast, lunch or dinner.")
		return
	}
	date := time.Now()
	if len(args) > 1 {
		parsed, err := time.Parse("2006-01-02", args[1])
		if err != nil {
			b.reply(chatID, "Date must be YYYY-MM-DD.")
			return
		}
		date = parsed
	}

	ctx := context.Background()
	p, err := b.app.LatestPlan(ctx)
	if err != nil {
		b.replyError(chatID, "No plan found", err)
		return
	}
	if _, err := b.app.MarkPrep(ctx, p.ID, date, mt, status); err != nil {
		b.replyError(chatID, "Error updating slot", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Marked %s on %s as %s.", mt, plan.Midnight(date).Format("2006-01-02"), status))
}

func (b *Bot) handleCatchUp(chatID int64) {
	ctx := context.Background()
	p, err := b.app.LatestPlan(ctx)
	if err != nil {
		b.replyError(chatID, "No plan found", err)
		return
	}
	sug, err := b.app.CatchUp(ctx, p.ID)
	if err != nil {
		b.replyError(chatID, "Error checking plan", err)
		return
	}
	b.reply(chatID, formatSuggestions(sug))
}

func (b *Bot) handleAdapt(chatID int64) {
	ctx := context.Background()
	p, err := b.app.LatestPlan(ctx)
	if err != nil {
		b.replyError(chatID, "No plan found", err)
		return
	}
	out, err := b.app.Adapt(ctx, p.ID)
	if err != nil {
		b.replyError(chatID, "Error adapting plan", err)
		return
	}

	if len(out.AdaptationSummary) == 0 {
		b.reply(chatID, "👍 The plan is on track, nothing to adapt.")
		return
	}

	b.mu.Lock()
	b.pending[chatID] = &out
	b.mu.Unlock()

	text := formatAdaptation(out)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Apply", "adapt_apply"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Discard", "adapt_discard"),
		),
	)
	msg.ReplyMarkup = keyboard
	b.api.Send(msg)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	b.mu.Lock()
	out := b.pending[chatID]
	delete(b.pending, chatID)
	b.mu.Unlock()

	switch query.Data {
	case "adapt_apply":
		if out == nil {
			b.edit(chatID, query.Message.MessageID, "That proposal expired. Run /adapt again.")
			return
		}
		if err := b.app.ConfirmAdaptation(context.Background(), *out); err != nil {
			b.edit(chatID, query.Message.MessageID, fmt.Sprintf("❌ Could not apply: %v\nThe plan changed underneath; run /adapt again.", err))
			return
		}
		b.edit(chatID, query.Message.MessageID, "✅ Plan updated.")
	case "adapt_discard":
		b.edit(chatID, query.Message.MessageID, "Discarded. The plan is unchanged.")
	}
}

func (b *Bot) handleFridge(chatID int64, args []string) {
	ctx := context.Background()

	if len(args) > 0 && args[0] == "add" {
		// /fridge add chicken breast|500g|3
		parts := strings.Split(strings.Join(args[1:], " "), "|")
		if len(parts) != 3 {
			b.reply(chatID, "Usage: /fridge add <name>|<quantity>|<freshness days>")
			return
		}
		days, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			b.reply(chatID, "Freshness days must be a number.")
			return
		}
		item, err := b.app.AddFridgeItem(ctx, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), days)
		if err != nil {
			b.replyError(chatID, "Error adding item", err)
			return
		}
		b.reply(chatID, fmt.Sprintf("🧊 Added %s (%s), fresh for %d days.", item.IngredientName, item.Quantity, item.DaysRemaining))
		return
	}

	items, err := b.app.ListFridge(ctx)
	if err != nil {
		b.replyError(chatID, "Error listing fridge", err)
		return
	}
	b.reply(chatID, formatFridge(items))
}

func (b *Bot) handleClipRequest(msg *tgbotapi.Message) {
	if b.imp == nil {
		b.reply(msg.Chat.ID, "Recipe import is not configured.")
		return
	}

	statusText := "✂️ *Clipping recipe...*"
	replyMsg := tgbotapi.NewMessage(msg.Chat.ID, statusText)
	replyMsg.ParseMode = "Markdown"
	sentMsg, err := b.api.Send(replyMsg)
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	post, err := b.imp.ClipURL(ctx, msg.Text)
	var finalText string
	if err != nil {
		log.Printf("Error clipping recipe: %v", err)
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		finalText = fmt.Sprintf("❌ *Error clipping recipe:*\n```\n%v\n```", safeErr)
	} else {
		finalText = fmt.Sprintf("✅ *Recipe saved!*\n\n*Title:* %s\nRun /adapt after ingesting to use it.", post.Title)
		go b.ingestInBackground()
	}
	b.edit(msg.Chat.ID, sentMsg.MessageID, finalText)
}

// ingestInBackground pulls new CMS posts into the local store.
func (b *Bot) ingestInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := b.imp.Ingest(ctx)
	if err != nil {
		log.Printf("Background ingest failed: %v", err)
		return
	}
	log.Printf("Background ingest saved %d recipes", n)
}

func (b *Bot) handleMetrics(chatID int64) {
	usage, err := b.app.Usage().GetDailyUsage(7)
	if err != nil {
		b.reply(chatID, "❌ Error fetching metrics.")
		return
	}

	health := b.app.Health()

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))

	b.reply(chatID, sb.String())
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	b.api.Send(msg)
}

func (b *Bot) replyError(chatID int64, prefix string, err error) {
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	b.reply(chatID, fmt.Sprintf("❌ *%s:*\n```\n%s\n```", prefix, safeErr))
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	b.api.Send(edit)
}

func formatPlan(p *plan.Plan) string {
	var sb strings.Builder
	sb.WriteString("📅 *Meal Plan*\n")
	if p.DietType != "" {
		sb.WriteString(fmt.Sprintf("_Diet: %s_\n", p.DietType))
	}
	sb.WriteString("\n")

	for d := p.StartDate; !d.After(p.EndDate); d = d.AddDate(0, 0, 1) {
		sb.WriteString(fmt.Sprintf("*%s*\n", d.Format("Mon 2006-01-02")))
		for _, slot := range p.SlotsOn(d) {
			marker := "•"
			switch slot.PrepStatus {
			case plan.StatusDone:
				marker = "✅"
			case plan.StatusSkipped:
				marker = "⏭"
			}
			sb.WriteString(fmt.Sprintf("%s %s: %s (%d min)\n", marker, slot.MealType, slot.Recipe.Name, slot.Recipe.PrepTimeMinutes))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatTimeline(tl prep.Timeline) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔪 *Prep Timeline: %s*\n\n", tl.PrepDate.Format("2006-01-02")))

	if len(tl.Steps) == 0 {
		sb.WriteString("_Nothing scheduled._")
		return sb.String()
	}

	for _, step := range tl.Steps {
		sb.WriteString(fmt.Sprintf("%d. %s (%d min", step.StepNumber, step.Action, step.DurationMinutes))
		if step.IsPassive {
			sb.WriteString(", passive")
		}
		sb.WriteString(")")
		if len(step.SourceRecipes) > 1 {
			sb.WriteString(fmt.Sprintf(" _batched: %s_", strings.Join(step.SourceRecipes, ", ")))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n⏱ Total: %d min", tl.TotalTimeMinutes))
	if tl.BatchedSavingsMinutes > 0 {
		sb.WriteString(fmt.Sprintf(" (saved %d min by batching)", tl.BatchedSavingsMinutes))
	}
	return sb.String()
}

func formatSuggestions(sug adaptive.Suggestions) string {
	var sb strings.Builder
	sb.WriteString("🧭 *Catch-up Report*\n\n")

	if len(sug.MissedPreps) == 0 {
		sb.WriteString("No missed preps.\n")
	} else {
		sb.WriteString("*Missed prep days:*\n")
		for _, d := range sug.MissedPreps {
			sb.WriteString(fmt.Sprintf("• %s\n", d.Format("2006-01-02")))
		}
	}

	if len(sug.ExpiringItems) > 0 {
		sb.WriteString("\n*Expiring soon:*\n")
		for _, item := range sug.ExpiringItems {
			sb.WriteString(fmt.Sprintf("• %s (%d days left)\n", item.IngredientName, item.DaysRemaining))
		}
	}

	sb.WriteString(fmt.Sprintf("\nPending meals: %d\n", len(sug.PendingMeals)))
	if sug.NeedsAdaptation {
		sb.WriteString("\n⚠️ The plan has drifted. Run /adapt to fix it.")
	} else {
		sb.WriteString("\n👍 The plan is on track.")
	}
	return sb.String()
}

func formatAdaptation(out adaptive.Output) string {
	var sb strings.Builder
	sb.WriteString("🛠 *Proposed Adaptation*\n\n")
	for _, r := range out.AdaptationSummary {
		sb.WriteString(fmt.Sprintf("• [%s] %s\n", r.Type, r.Reason))
	}

	if len(out.PriorityIngredients) > 0 {
		sb.WriteString("\n*Use first:* " + strings.Join(out.PriorityIngredients, ", ") + "\n")
	}
	if len(out.GroceryAdjustments) > 0 {
		sb.WriteString("\n*Grocery changes:*\n")
		for _, g := range out.GroceryAdjustments {
			sb.WriteString(fmt.Sprintf("• %s\n", g))
		}
	}
	if out.EstimatedRecoveryTimeMinutes > 0 {
		sb.WriteString(fmt.Sprintf("\n⏱ Recovery cooking time: %d min\n", out.EstimatedRecoveryTimeMinutes))
	}
	return sb.String()
}

func formatFridge(items []fridge.Item) string {
	if len(items) == 0 {
		return "🧊 The fridge is empty."
	}
	var sb strings.Builder
	sb.WriteString("🧊 *Fridge*\n\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("• %s (%s): %d days left, %d%% fresh\n",
			item.IngredientName, item.Quantity, item.DaysRemaining, item.FreshnessPercentage))
	}
	return sb.String()
}
