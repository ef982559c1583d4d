package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mcq-bot/api/internal/llm"
)

type fakeModel struct {
	resp   *genai.GenerateContentResponse
	err    error
	prompt string
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if t, ok := parts[0].(genai.Text); ok {
			f.prompt = string(t)
		}
	}
	return f.resp, f.err
}

func newTestEngine(f *fakeModel, log *zap.Logger) (*Engine, *string) {
	var used string
	e := &Engine{Model: "gemini-2.5-flash", log: log}
	e.newModel = func(name string, _ llm.Request) generator {
		used = name
		return f
	}
	return e, &used
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func TestGenerate_FirstPartText(t *testing.T) {
	f := &fakeModel{resp: textResponse(genai.Text("Question: x"), genai.Text("ignored"))}
	e, used := newTestEngine(f, zap.NewNop())

	out, err := e.Generate(context.Background(), llm.Request{Prompt: "make mcqs"})

	require.NoError(t, err)
	assert.Equal(t, "Question: x", out)
	assert.Equal(t, "make mcqs", f.prompt)
	assert.Equal(t, "gemini-2.5-flash", *used)
}

func TestGenerate_ModelOverride(t *testing.T) {
	f := &fakeModel{resp: textResponse(genai.Text("ok"))}
	e, used := newTestEngine(f, zap.NewNop())

	_, err := e.Generate(context.Background(), llm.Request{Prompt: "p", Model: "gemini-2.5-pro"})

	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", *used)
}

func TestGenerate_StripsFences(t *testing.T) {
	f := &fakeModel{resp: textResponse(genai.Text("```\nQuestion: x\n```"))}
	e, _ := newTestEngine(f, zap.NewNop())

	out, err := e.Generate(context.Background(), llm.Request{Prompt: "p"})

	require.NoError(t, err)
	assert.Equal(t, "Question: x", out)
}

func TestGenerate_EmptyShapesAreNotErrors(t *testing.T) {
	cases := map[string]*genai.GenerateContentResponse{
		"nil":           nil,
		"no candidates": {},
		"blocked": {PromptFeedback: &genai.PromptFeedback{
			BlockReason: genai.BlockReasonSafety,
		}},
		"nil content":    {Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}},
		"no parts":       textResponse(),
		"non-text first": textResponse(genai.Blob{MIMEType: "image/png"}, genai.Text("late text")),
		"blank text":     textResponse(genai.Text("  \n ")),
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			e, _ := newTestEngine(&fakeModel{resp: resp}, zap.New(core))

			out, err := e.Generate(context.Background(), llm.Request{Prompt: "p"})

			require.NoError(t, err)
			assert.Empty(t, out)
			assert.Equal(t, 1, logs.FilterMessage("empty generation").Len())
		})
	}
}

func TestGenerate_BlockReasonIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	resp := &genai.GenerateContentResponse{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}}
	e, _ := newTestEngine(&fakeModel{resp: resp}, zap.New(core))

	_, _ = e.Generate(context.Background(), llm.Request{Prompt: "p"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["reason"], "prompt blocked")
}

func TestGenerate_TransportError(t *testing.T) {
	boom := errors.New("503 unavailable")
	e, _ := newTestEngine(&fakeModel{err: boom}, zap.NewNop())

	_, err := e.Generate(context.Background(), llm.Request{Prompt: "p"})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_NoModel(t *testing.T) {
	e, _ := newTestEngine(&fakeModel{}, zap.NewNop())
	e.Model = ""

	_, err := e.Generate(context.Background(), llm.Request{Prompt: "p"})
	require.Error(t, err)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(context.Background(), " ", "gemini-2.5-flash", zap.NewNop())
	require.Error(t, err)
}

func TestSafetySettings(t *testing.T) {
	ss := safetySettings()
	require.Len(t, ss, 4)
	for _, s := range ss {
		assert.Equal(t, genai.HarmBlockMediumAndAbove, s.Threshold)
	}
}
