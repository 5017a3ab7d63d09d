package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/dmarkin/regimecast-ai-go/internal/config"
)

var errTelegramDisabled = errors.New("telegram notifications are disabled")

// checkTelegramConfig verifies the alert channel settings without touching
// the network. main performs the live API probe afterwards.
func checkTelegramConfig(cfg config.TelegramConfig) error {
	if !cfg.Enabled {
		return errTelegramDisabled
	}
	if cfg.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not configured")
	}
	if cfg.ChatID == "" {
		return errors.New("TELEGRAM_CHAT_ID is not configured")
	}
	if _, err := strconv.ParseInt(cfg.ChatID, 10, 64); err != nil {
		return fmt.Errorf("TELEGRAM_CHAT_ID %q is not a numeric chat id", cfg.ChatID)
	}
	return nil
}

func main() {
	fmt.Println("🔧 Validating Telegram alert configuration...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Warning: Could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := checkTelegramConfig(cfg.Telegram); err != nil {
		if errors.Is(err, errTelegramDisabled) {
			fmt.Println("ℹ️  telegram.enabled is false; nothing to validate")
			return
		}
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ TELEGRAM_BOT_TOKEN is configured (length: %d)\n", len(cfg.Telegram.BotToken))
	fmt.Printf("✅ TELEGRAM_CHAT_ID is configured: %s\n", cfg.Telegram.ChatID)

	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		fmt.Printf("❌ Failed to create Telegram bot: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Telegram bot created successfully")

	// Probe the API so a revoked token is caught before the first alert.
	fmt.Println("🔍 Testing bot API connection...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	botInfo, err := b.GetMe(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get bot info: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Bot API connection successful!\n")
	fmt.Printf("   Bot Name: %s\n", botInfo.FirstName)
	fmt.Printf("   Bot Username: @%s\n", botInfo.Username)
	fmt.Printf("   Bot ID: %d\n", botInfo.ID)

	fmt.Println("\n🎉 Telegram alert channel is ready for signal notifications!")
}
