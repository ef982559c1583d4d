package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	OwnerID       int64  `envconfig:"OWNER_ID" required:"true"`
	OwnerUsername string `envconfig:"OWNER_USERNAME"`

	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel    string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel    string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	DeepSeekAPIKey string `envconfig:"DEEPSEEK_API_KEY"`
	DeepSeekModel  string `envconfig:"DEEPSEEK_MODEL" default:"deepseek-chat"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	Language        string  `envconfig:"MCQ_LANGUAGE" default:"Arabic"`
	MaxInputChars   int     `envconfig:"MCQ_MAX_INPUT_CHARS" default:"20000"`
	MaxQuestions    int     `envconfig:"MCQ_MAX_QUESTIONS" default:"50"`
	Temperature     float32 `envconfig:"MCQ_TEMPERATURE" default:"0.4"`
	MaxOutputTokens int     `envconfig:"MCQ_MAX_OUTPUT_TOKENS" default:"8192"`

	GenerationTimeout    time.Duration `envconfig:"GENERATION_TIMEOUT" default:"300s"`
	GenerationAttempts   int           `envconfig:"GENERATION_ATTEMPTS" default:"3"`
	GenerationRetryDelay time.Duration `envconfig:"GENERATION_RETRY_DELAY" default:"2s"`

	PollDelay           time.Duration `envconfig:"POLL_DELAY" default:"250ms"`
	PollPacingThreshold int           `envconfig:"POLL_PACING_THRESHOLD" default:"10"`

	SessionTimeout time.Duration `envconfig:"SESSION_TIMEOUT" default:"20m"`
	StatsRetention time.Duration `envconfig:"STATS_RETENTION" default:"720h"`
}

// Load читает .env (если есть), затем окружение.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.WebhookURL = strings.TrimRight(strings.TrimSpace(cfg.WebhookURL), "/")
	if cfg.WebhookURL == "" {
		// Render выставляет внешний хост сам
		if h := strings.TrimSpace(os.Getenv("RENDER_EXTERNAL_HOSTNAME")); h != "" {
			cfg.WebhookURL = "https://" + h
		}
	}
	cfg.OwnerUsername = strings.TrimPrefix(strings.TrimSpace(cfg.OwnerUsername), "@")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is empty"))
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is empty"))
	}
	if c.OwnerID == 0 {
		errs = append(errs, errors.New("OWNER_ID must be non-zero"))
	}
	if c.MaxQuestions < 1 {
		errs = append(errs, fmt.Errorf("MCQ_MAX_QUESTIONS must be >= 1, got %d", c.MaxQuestions))
	}
	if c.MaxInputChars < 1 {
		errs = append(errs, fmt.Errorf("MCQ_MAX_INPUT_CHARS must be >= 1, got %d", c.MaxInputChars))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("MCQ_TEMPERATURE must be in [0,2], got %v", c.Temperature))
	}
	if c.MaxOutputTokens < 1 {
		errs = append(errs, fmt.Errorf("MCQ_MAX_OUTPUT_TOKENS must be >= 1, got %d", c.MaxOutputTokens))
	}
	if c.GenerationAttempts < 1 {
		errs = append(errs, fmt.Errorf("GENERATION_ATTEMPTS must be >= 1, got %d", c.GenerationAttempts))
	}
	if c.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	if c.PollDelay < 0 || c.GenerationRetryDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if c.SessionTimeout <= 0 {
		errs = append(errs, errors.New("SESSION_TIMEOUT must be positive"))
	}
	if c.WebhookURL != "" && !strings.HasPrefix(c.WebhookURL, "https://") {
		errs = append(errs, fmt.Errorf("WEBHOOK_URL must be https, got %q", c.WebhookURL))
	}
	return errors.Join(errs...)
}

// UseWebhook: true, когда внешний адрес известен.
func (c *Config) UseWebhook() bool { return c.WebhookURL != "" }

// IsOwner: доступ только по OWNER_ID.
func (c *Config) IsOwner(userID int64) bool {
	return userID != 0 && userID == c.OwnerID
}
