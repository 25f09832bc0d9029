package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxlog/voxlog/internal/model"
)

// textPlaceholder marks where the input text lands in the user prompt.
const textPlaceholder = "{{text}}"

// ChatMessage is one turn of a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks a language model to rewrite text.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatClient sends chat-completion requests to a language-model provider.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// promptTransform rewrites text through a chat-completion model. The user
// prompt template carries a {{text}} placeholder substituted at apply time.
type promptTransform struct {
	params model.PromptTransformParams
	chat   ChatClient
}

func newPromptTransform(p model.PromptTransformParams, chat ChatClient) Transformer {
	return &promptTransform{params: p, chat: chat}
}

func (p *promptTransform) Apply(ctx context.Context, input string) (string, error) {
	userPrompt := p.params.UserPrompt
	if strings.Contains(userPrompt, textPlaceholder) {
		userPrompt = strings.ReplaceAll(userPrompt, textPlaceholder, input)
	} else {
		// Without a placeholder the input is appended so it is never lost.
		userPrompt = userPrompt + "\n\n" + input
	}

	var messages []ChatMessage
	if p.params.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: p.params.SystemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: userPrompt})

	out, err := p.chat.Complete(ctx, ChatRequest{Model: p.params.Model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("prompt transform: %w", err)
	}
	return out, nil
}
