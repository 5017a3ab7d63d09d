package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/dmarkin/regimecast-ai-go/internal/config"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// telegramSender is the subset of the bot client the notifier uses. Tests
// substitute a recording fake.
type telegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// TelegramNotifier pushes high-confidence signal alerts to one configured
// chat.
type TelegramNotifier struct {
	sender telegramSender
	chatID int64
	logger *logrus.Logger
}

// NewTelegramNotifier builds the notifier from config. A disabled config
// yields (nil, nil); an enabled one with a bad token or chat id fails so a
// misconfigured alert channel is caught at startup rather than at the first
// missed alert.
func NewTelegramNotifier(cfg config.TelegramConfig, logger *logrus.Logger) (*TelegramNotifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram notifier enabled but bot_token or chat_id is missing")
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	b, err := bot.New(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	return &TelegramNotifier{
		sender: b,
		chatID: chatID,
		logger: logger,
	}, nil
}

// NotifySignal sends one formatted alert for a completed prediction.
func (n *TelegramNotifier) NotifySignal(ctx context.Context, ticker string, prediction models.CurrentPrediction, stats models.ClusterStatistics) error {
	message := formatSignalMessage(ticker, prediction, stats)

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      message,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"signal": prediction.Signal,
	}).Info("Sent signal alert")
	return nil
}

// formatSignalMessage renders the alert body in Telegram Markdown.
func formatSignalMessage(ticker string, prediction models.CurrentPrediction, stats models.ClusterStatistics) string {
	emoji := "📈"
	if prediction.Signal == models.SignalSell {
		emoji = "📉"
	}

	message := fmt.Sprintf("%s *%s SIGNAL: %s*\n\n", emoji, prediction.Signal, ticker)
	message += fmt.Sprintf("🎯 *Confidence:* %s\n", prediction.Confidence)
	message += fmt.Sprintf("📅 *As of:* %s\n", prediction.Date)
	message += fmt.Sprintf("📊 *Regime Sharpe:* %.2f\n", stats.Sharpe)
	message += fmt.Sprintf("💰 *Mean Daily Return:* %.3f%%\n", stats.MeanReturn*100)
	message += fmt.Sprintf("✅ *Win Rate:* %.0f%%\n", stats.WinRate*100)
	message += fmt.Sprintf("🔢 *Sample Size:* %d bars\n", stats.TotalPoints)
	message += "\n⚠️ Statistical signal from regime clustering, not financial advice."
	return message
}
