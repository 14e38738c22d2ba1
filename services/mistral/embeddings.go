package mistral

import (
	"context"
	"fmt"
)

// EmbeddingRequest represents a request for text embeddings
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse represents a response from the embeddings endpoint
type EmbeddingResponse struct {
	ID   string `json:"id"`
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// CreateEmbedding embeds a single text and returns its vector
func (c *Client) CreateEmbedding(ctx context.Context, text string) ([]float64, error) {
	req := EmbeddingRequest{
		Model: c.embedModel,
		Input: []string{text},
	}

	var result EmbeddingResponse
	if err := c.doRequest(ctx, "POST", "/v1/embeddings", req, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	return result.Data[0].Embedding, nil
}
