package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"mcq-bot/api/internal/llm"
)

const (
	defaultModel = "gpt-4o-mini"

	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	deepSeekModel   = "deepseek-chat"
)

type Engine struct {
	Model string

	name   string
	client *goopenai.Client
	log    *zap.Logger
}

// New. baseURL пустой: api.openai.com.
func New(apiKey, model, baseURL string, log *zap.Logger) (*Engine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("OPENAI_API_KEY is empty")
	}
	return newEngine("gpt", apiKey, model, defaultModel, baseURL, log), nil
}

// NewDeepSeek: тот же chat completions протокол, другой хост.
func NewDeepSeek(apiKey, model, baseURL string, log *zap.Logger) (*Engine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("DEEPSEEK_API_KEY is empty")
	}
	if baseURL == "" {
		baseURL = DeepSeekBaseURL
	}
	return newEngine("deepseek", apiKey, model, deepSeekModel, baseURL, log), nil
}

func newEngine(name, apiKey, model, fallback, baseURL string, log *zap.Logger) *Engine {
	apiKey = strings.TrimSpace(apiKey)
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}

	model = strings.TrimSpace(model)
	if model == "" {
		model = fallback
	}
	return &Engine{
		Model:  model,
		name:   name,
		client: goopenai.NewClientWithConfig(cfg),
		log:    log.Named(name),
	}
}

func (e *Engine) Name() string     { return e.name }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, req llm.Request) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = e.Model
	}
	temp := req.Temperature
	// gpt-5 принимает только temperature=1
	if strings.Contains(model, "gpt-5") {
		temp = 1
	}

	resp, err := e.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:               model,
		Temperature:         temp,
		MaxCompletionTokens: req.MaxOutputTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", e.name, err)
	}
	if len(resp.Choices) == 0 {
		e.log.Warn("empty generation", zap.String("model", model), zap.String("reason", "no choices"))
		return "", nil
	}
	out := resp.Choices[0].Message.Content
	if strings.TrimSpace(out) == "" {
		e.log.Warn("empty generation", zap.String("model", model),
			zap.String("reason", "finish "+string(resp.Choices[0].FinishReason)))
		return "", nil
	}
	return llm.StripCodeFences(out), nil
}
