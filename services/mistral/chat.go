package mistral

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatCompletionRequest represents a request for chat completion
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatCompletionResponse represents a response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Created int64 `json:"created"`
}

// ExtractContent extracts the content from a chat completion response
func (r *ChatCompletionResponse) ExtractContent() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// GetUsage returns the token usage from the response
func (r *ChatCompletionResponse) GetUsage() (prompt, completion, total int) {
	return r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Usage.TotalTokens
}

// StreamChunkDelta represents the delta content in a streaming chunk
type StreamChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChunkChoice represents a choice in a streaming chunk
type StreamChunkChoice struct {
	Index        int              `json:"index"`
	Delta        StreamChunkDelta `json:"delta"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// StreamUsage represents token usage reported in the final chunk
type StreamUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk represents a chunk in a streaming response
type StreamChunk struct {
	ID      string              `json:"id"`
	Object  string              `json:"object,omitempty"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []StreamChunkChoice `json:"choices"`
	Usage   *StreamUsage        `json:"usage,omitempty"`
}

// GetContent returns the delta content from the first choice
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// GetFinishReason returns the finish reason from the first choice
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].FinishReason
}

// IsDone returns true if the stream is done
func (c *StreamChunk) IsDone() bool {
	return c.GetFinishReason() == "stop"
}

// CreateChatCompletion creates a chat completion (non-streaming)
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = false

	var result ChatCompletionResponse
	if err := c.doRequest(ctx, "POST", "/v1/chat/completions", req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// StreamChatCompletion creates a streaming chat completion.
// Includes automatic retry with exponential backoff for transient failures,
// but only before any chunk was delivered to the callback.
func (c *Client) StreamChatCompletion(ctx context.Context, req ChatCompletionRequest, callback func(StreamChunk) error) error {
	retryConfig := c.GetRetryConfig()
	var lastErr error

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := CalculateBackoff(attempt-1, retryConfig)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		delivered := false
		wrapped := func(chunk StreamChunk) error {
			delivered = true
			return callback(chunk)
		}

		err := c.doStreamRequest(ctx, req, wrapped)
		if err == nil {
			return nil
		}

		lastErr = err
		// Once content reached the caller a retry would duplicate it
		if delivered || !isStreamErrorRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("streaming failed after %d attempts: %w", retryConfig.MaxRetries+1, lastErr)
}

// isStreamErrorRetryable determines if a streaming error should trigger a retry
func isStreamErrorRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	for _, code := range []string{"408", "429", "500", "502", "503", "504"} {
		if strings.Contains(errStr, fmt.Sprintf("status %s", code)) {
			return true
		}
	}

	return false
}

// doStreamRequest performs the actual streaming request
func (c *Client) doStreamRequest(ctx context.Context, req ChatCompletionRequest, callback func(StreamChunk) error) error {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = true

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	// Streaming client: no client-level timeout, transport handles connection timeouts
	resp, err := c.GetStreamingClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == 429 {
			if retryAfter := ParseRetryAfter(resp); retryAfter > 0 {
				return fmt.Errorf("rate limited (status 429), retry after %v: %s", retryAfter, string(body))
			}
		}
		return fmt.Errorf("streaming failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")

			if data == "[DONE]" {
				break
			}

			var chunk StreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Skip malformed chunks, keep reading the stream
				continue
			}

			if err := callback(chunk); err != nil {
				return fmt.Errorf("callback error: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream reading error: %w", err)
	}

	return nil
}
