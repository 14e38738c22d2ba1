package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default HTTP client timeout for index queries
	DefaultTimeout = 30 * time.Second
)

// Embedder turns query text into a vector before hitting the index
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Client queries a Pinecone serverless index over its data-plane REST API
type Client struct {
	apiKey     string
	indexHost  string
	httpClient *http.Client
	embedder   Embedder
}

// Config holds configuration for the Pinecone client
type Config struct {
	APIKey    string
	IndexHost string // Index data-plane host, e.g. https://programs-xxxx.svc.pinecone.io
	Timeout   time.Duration
}

// NewClient creates a new Pinecone index client
func NewClient(config Config, embedder Embedder) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	host := strings.TrimSuffix(config.IndexHost, "/")
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}

	return &Client{
		apiKey:    config.APIKey,
		indexHost: host,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		embedder: embedder,
	}
}

// queryRequest is the Pinecone /query request body
type queryRequest struct {
	Vector          []float64              `json:"vector"`
	TopK            int                    `json:"topK"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
	IncludeMetadata bool                   `json:"includeMetadata"`
}

// Match is a single scored result from the index
type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// queryResponse is the Pinecone /query response body
type queryResponse struct {
	Matches   []Match `json:"matches"`
	Namespace string  `json:"namespace,omitempty"`
}

// Query embeds the text and runs a filtered similarity search against the
// index. A nil or empty filter means unconstrained semantic search. Matches
// come back in the index's score order.
func (c *Client) Query(ctx context.Context, query string, filter map[string]interface{}, topK int) ([]Match, error) {
	vector, err := c.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	req := queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		req.Filter = filter
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.indexHost+"/query", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Api-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result queryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Matches, nil
}

// HealthCheck verifies the index host is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.indexHost+"/describe_index_stats", nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("index stats returned status %d", resp.StatusCode)
	}
	return nil
}
