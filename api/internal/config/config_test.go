package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", " 123:abc ")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("WEBHOOK_URL", "")
	t.Setenv("RENDER_EXTERNAL_HOSTNAME", "")
	t.Setenv("OWNER_USERNAME", "")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, int64(42), cfg.OwnerID)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, "Arabic", cfg.Language)
	assert.Equal(t, 20000, cfg.MaxInputChars)
	assert.Equal(t, 50, cfg.MaxQuestions)
	assert.InDelta(t, 0.4, cfg.Temperature, 1e-6)
	assert.Equal(t, 8192, cfg.MaxOutputTokens)
	assert.Equal(t, 300*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 3, cfg.GenerationAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.PollDelay)
	assert.Equal(t, 10, cfg.PollPacingThreshold)
	assert.Equal(t, 20*time.Minute, cfg.SessionTimeout)
	assert.False(t, cfg.UseWebhook())
}

func TestFromEnv_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("GEMINI_API_KEY", "  ")
	t.Setenv("OWNER_ID", "0")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, err.Error(), "OWNER_ID")
}

func TestFromEnv_RenderHostnameFallback(t *testing.T) {
	setRequired(t)
	t.Setenv("RENDER_EXTERNAL_HOSTNAME", "mcq.onrender.com")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://mcq.onrender.com", cfg.WebhookURL)
	assert.True(t, cfg.UseWebhook())
}

func TestFromEnv_WebhookTrailingSlash(t *testing.T) {
	setRequired(t)
	t.Setenv("WEBHOOK_URL", "https://bot.example.com/")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com", cfg.WebhookURL)
}

func TestValidate(t *testing.T) {
	setRequired(t)
	t.Setenv("MCQ_MAX_QUESTIONS", "0")
	t.Setenv("GENERATION_ATTEMPTS", "0")
	t.Setenv("WEBHOOK_URL", "http://insecure.example.com")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCQ_MAX_QUESTIONS")
	assert.Contains(t, err.Error(), "GENERATION_ATTEMPTS")
	assert.Contains(t, err.Error(), "WEBHOOK_URL")
}

func TestIsOwner(t *testing.T) {
	cfg := &Config{OwnerID: 7, OwnerUsername: "owner"}

	assert.True(t, cfg.IsOwner(7))
	assert.False(t, cfg.IsOwner(99), "username alone never grants access")
	assert.False(t, cfg.IsOwner(0))
	assert.False(t, (&Config{}).IsOwner(0))
}
