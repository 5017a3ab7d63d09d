package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkin/regimecast-ai-go/internal/config"
)

func TestCheckTelegramConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TelegramConfig
		wantErr string
	}{
		{
			name: "valid config",
			cfg:  config.TelegramConfig{Enabled: true, BotToken: "1234567890:ABCDEF", ChatID: "-1001234567890"},
		},
		{
			name:    "missing token",
			cfg:     config.TelegramConfig{Enabled: true, ChatID: "42"},
			wantErr: "TELEGRAM_BOT_TOKEN",
		},
		{
			name:    "missing chat id",
			cfg:     config.TelegramConfig{Enabled: true, BotToken: "1234567890:ABCDEF"},
			wantErr: "TELEGRAM_CHAT_ID",
		},
		{
			name:    "non-numeric chat id",
			cfg:     config.TelegramConfig{Enabled: true, BotToken: "1234567890:ABCDEF", ChatID: "my-channel"},
			wantErr: "not a numeric chat id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTelegramConfig(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCheckTelegramConfig_Disabled(t *testing.T) {
	err := checkTelegramConfig(config.TelegramConfig{Enabled: false})
	assert.ErrorIs(t, err, errTelegramDisabled)
}

func TestConfigLoadPicksUpTelegramEnv(t *testing.T) {
	t.Setenv("TELEGRAM_ENABLED", "true")
	t.Setenv("TELEGRAM_BOT_TOKEN", "1234567890:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijk")
	t.Setenv("TELEGRAM_CHAT_ID", "987654321")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, "1234567890:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijk", cfg.Telegram.BotToken)
	assert.Equal(t, "987654321", cfg.Telegram.ChatID)
	assert.NoError(t, checkTelegramConfig(cfg.Telegram))
}
