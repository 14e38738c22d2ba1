package services

import (
	"context"

	"github.com/siralabs/sira-api/services/mistral"
)

// ChatCompleter generates AI responses from a message transcript.
// StreamComplete delivers content deltas through onChunk in arrival order; a
// callback error aborts the stream.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []mistral.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, messages []mistral.ChatMessage, onChunk func(delta string) error) error
}

// MistralCompleter adapts the Mistral client to the ChatCompleter interface
type MistralCompleter struct {
	client      *mistral.Client
	temperature float64
	maxTokens   int
}

// NewMistralCompleter creates a completer backed by the Mistral API
func NewMistralCompleter(client *mistral.Client) *MistralCompleter {
	return &MistralCompleter{
		client:      client,
		temperature: 0.7,
		maxTokens:   4096,
	}
}

// Complete implements ChatCompleter
func (c *MistralCompleter) Complete(ctx context.Context, messages []mistral.ChatMessage) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, mistral.ChatCompletionRequest{
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.ExtractContent(), nil
}

// StreamComplete implements ChatCompleter
func (c *MistralCompleter) StreamComplete(ctx context.Context, messages []mistral.ChatMessage, onChunk func(delta string) error) error {
	return c.client.StreamChatCompletion(ctx, mistral.ChatCompletionRequest{
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}, func(chunk mistral.StreamChunk) error {
		content := chunk.GetContent()
		if content == "" {
			return nil
		}
		return onChunk(content)
	})
}
