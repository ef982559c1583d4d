package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"mcq-bot/api/internal/llm"
)

// generator: то, что нам нужно от *genai.GenerativeModel.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Engine struct {
	Model string

	client   *genai.Client
	log      *zap.Logger
	newModel func(name string, req llm.Request) generator
}

// New создаёт клиента один раз на процесс.
func New(ctx context.Context, apiKey, model string, log *zap.Logger) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	e := &Engine{
		Model:  strings.TrimSpace(model),
		client: cl,
		log:    log.Named("gemini"),
	}
	e.newModel = e.configure
	return e, nil
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *Engine) configure(name string, req llm.Request) generator {
	m := e.client.GenerativeModel(name)
	m.SetTemperature(req.Temperature)
	if req.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	m.SafetySettings = safetySettings()
	return m
}

func safetySettings() []*genai.SafetySetting {
	cats := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(cats))
	for _, c := range cats {
		out = append(out, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockMediumAndAbove})
	}
	return out
}

// Generate returns the text of the first part of the first candidate.
// Blocked or empty responses give "" without error.
func (e *Engine) Generate(ctx context.Context, req llm.Request) (string, error) {
	name := strings.TrimSpace(req.Model)
	if name == "" {
		name = e.Model
	}
	if name == "" {
		return "", errors.New("gemini: model is empty")
	}
	m := e.newModel(name, req)

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	txt, why := firstText(resp)
	if txt == "" {
		e.log.Warn("empty generation", zap.String("model", name), zap.String("reason", why))
		return "", nil
	}
	return llm.StripCodeFences(txt), nil
}

// firstText: candidates[0].content.parts[0], если это текст; иначе причина пустоты.
func firstText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil {
		return "", "nil response"
	}
	if len(resp.Candidates) == 0 {
		if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != genai.BlockReasonUnspecified {
			return "", "prompt blocked: " + pf.BlockReason.String()
		}
		return "", "no candidates"
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", "no content, finish reason " + c.FinishReason.String()
	}
	t, ok := c.Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Sprintf("first part is %T", c.Content.Parts[0])
	}
	if strings.TrimSpace(string(t)) == "" {
		return "", "blank text"
	}
	return string(t), ""
}
