package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mcq-bot/api/internal/llm"
)

type capturedRequest struct {
	Model               string  `json:"model"`
	Temperature         float32 `json:"temperature"`
	MaxCompletionTokens int     `json:"max_completion_tokens"`
	Messages            []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, status int, body string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, 200, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Question: x"},"finish_reason":"stop"}]}`, &got)
	e, err := New("sk-test", "", srv.URL+"/v1", zap.NewNop())
	require.NoError(t, err)

	out, err := e.Generate(context.Background(), llm.Request{Prompt: "make mcqs", Temperature: 0.4, MaxOutputTokens: 512})

	require.NoError(t, err)
	assert.Equal(t, "Question: x", out)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.4, got.Temperature, 1e-6)
	assert.Equal(t, 512, got.MaxCompletionTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "make mcqs", got.Messages[0].Content)
}

func TestGenerate_ModelOverrideAndGpt5Temperature(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, 200, `{"choices":[{"message":{"content":"ok"}}]}`, &got)
	e, err := New("sk-test", "gpt-4o-mini", srv.URL+"/v1", zap.NewNop())
	require.NoError(t, err)

	_, err = e.Generate(context.Background(), llm.Request{Prompt: "p", Model: "gpt-5-mini", Temperature: 0.4})

	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini", got.Model)
	assert.InDelta(t, 1, got.Temperature, 1e-6)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := newServer(t, 200, `{"choices":[]}`, nil)
	e, err := New("sk-test", "", srv.URL+"/v1", zap.NewNop())
	require.NoError(t, err)

	out, err := e.Generate(context.Background(), llm.Request{Prompt: "p"})

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenerate_APIError(t *testing.T) {
	srv := newServer(t, 500, `{"error":{"message":"overloaded","type":"server_error"}}`, nil)
	e, err := New("sk-test", "", srv.URL+"/v1", zap.NewNop())
	require.NoError(t, err)

	_, err = e.Generate(context.Background(), llm.Request{Prompt: "p"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New("", "gpt-4o-mini", "", zap.NewNop())
	require.Error(t, err)
}

func TestEngineIdentity(t *testing.T) {
	e, err := New("sk-test", "gpt-4.1", "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "gpt", e.Name())
	assert.Equal(t, "gpt-4.1", e.GetModel())
}

func TestDeepSeek(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, 200, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Question: y"},"finish_reason":"stop"}]}`, &got)
	e, err := NewDeepSeek("sk-test", "", srv.URL+"/v1", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "deepseek", e.Name())
	assert.Equal(t, "deepseek-chat", e.GetModel())

	out, err := e.Generate(context.Background(), llm.Request{Prompt: "p", Temperature: 0.4})
	require.NoError(t, err)
	assert.Equal(t, "Question: y", out)
	assert.Equal(t, "deepseek-chat", got.Model)

	_, err = NewDeepSeek(" ", "", "", zap.NewNop())
	require.Error(t, err)
}
