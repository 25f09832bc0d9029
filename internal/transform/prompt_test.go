package transform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxlog/voxlog/internal/model"
)

type fakeChat struct {
	lastReq ChatRequest
	out     string
	err     error
}

func (f *fakeChat) Complete(_ context.Context, req ChatRequest) (string, error) {
	f.lastReq = req
	return f.out, f.err
}

func TestPromptTransform_SubstitutesPlaceholder(t *testing.T) {
	chat := &fakeChat{out: "rewritten"}
	tr, err := New(model.Transformation{
		Kind: model.KindPromptTransform,
		PromptTransform: &model.PromptTransformParams{
			Model:        "gpt-4o-mini",
			SystemPrompt: "You fix dictation.",
			UserPrompt:   "Clean this up: {{text}}",
		},
	}, chat)
	require.NoError(t, err)

	out, err := tr.Apply(context.Background(), "um so like the thing")
	require.NoError(t, err)
	require.Equal(t, "rewritten", out)

	require.Equal(t, "gpt-4o-mini", chat.lastReq.Model)
	require.Len(t, chat.lastReq.Messages, 2)
	require.Equal(t, "system", chat.lastReq.Messages[0].Role)
	require.Equal(t, "You fix dictation.", chat.lastReq.Messages[0].Content)
	require.Equal(t, "Clean this up: um so like the thing", chat.lastReq.Messages[1].Content)
}

func TestPromptTransform_AppendsInputWithoutPlaceholder(t *testing.T) {
	chat := &fakeChat{out: "ok"}
	tr, err := New(model.Transformation{
		Kind: model.KindPromptTransform,
		PromptTransform: &model.PromptTransformParams{
			Model:      "gpt-4o-mini",
			UserPrompt: "Summarize the following.",
		},
	}, chat)
	require.NoError(t, err)

	_, err = tr.Apply(context.Background(), "the transcript")
	require.NoError(t, err)

	require.Len(t, chat.lastReq.Messages, 1)
	require.Contains(t, chat.lastReq.Messages[0].Content, "the transcript")
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello from the model"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key"})
	out, err := c.Complete(context.Background(), ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello from the model", out)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

func TestOpenAIClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL})
	for i := 0; i < 6; i++ {
		_, _ = c.Complete(context.Background(), ChatRequest{Model: "m"})
	}

	_, err := c.Complete(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)
	// Once open, calls fail fast without reaching the server.
	require.ErrorContains(t, err, "circuit breaker is open")
}
