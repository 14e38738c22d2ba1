package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	// BaseURL is the Mistral API base URL
	BaseURL = "https://api.mistral.ai"
	// DefaultTimeout is the default HTTP client timeout for regular API calls
	DefaultTimeout = 120 * time.Second
	// DefaultDialTimeout is the timeout for establishing TCP connections
	DefaultDialTimeout = 10 * time.Second
	// DefaultTLSTimeout is the timeout for TLS handshake
	DefaultTLSTimeout = 10 * time.Second
	// DefaultHeaderTimeout is the timeout for waiting for response headers
	DefaultHeaderTimeout = 30 * time.Second
	// DefaultIdleTimeout is the timeout for idle connections
	DefaultIdleTimeout = 90 * time.Second
)

// Client handles all Mistral API interactions
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	embedModel      string
	httpClient      *http.Client // For regular API calls
	streamingClient *http.Client // For streaming requests (no client-level timeout)
	retryConfig     RetryConfig
	rateLimiter     *RateLimiter
}

// Config holds configuration for the Mistral client
type Config struct {
	APIKey            string
	Model             string
	EmbedModel        string
	Timeout           time.Duration
	BaseURL           string
	RetryConfig       *RetryConfig
	RateLimiterConfig *RateLimiterConfig
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts (default: 2)
	InitialBackoff time.Duration // Initial backoff duration (default: 500ms)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 30s)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// NewClient creates a new Mistral API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Model == "" {
		config.Model = "mistral-large-latest"
	}
	if config.EmbedModel == "" {
		config.EmbedModel = "mistral-embed"
	}

	retryConfig := DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}

	rateLimiterConfig := DefaultRateLimiterConfig()
	if config.RateLimiterConfig != nil {
		rateLimiterConfig = *config.RateLimiterConfig
	}

	// Streaming transport: connection-establishment timeouts only.
	// Do NOT set http.Client.Timeout for streaming, it kills long-running streams.
	streamingTransport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultIdleTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   DefaultTLSTimeout,
		ResponseHeaderTimeout: DefaultHeaderTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
	}

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		model:      config.Model,
		embedModel: config.EmbedModel,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		streamingClient: &http.Client{
			Transport: streamingTransport,
		},
		retryConfig: retryConfig,
		rateLimiter: NewRateLimiter(rateLimiterConfig),
	}
}

// GetStreamingClient returns the streaming HTTP client (for use in streaming methods)
func (c *Client) GetStreamingClient() *http.Client {
	return c.streamingClient
}

// GetRetryConfig returns the retry configuration
func (c *Client) GetRetryConfig() RetryConfig {
	return c.retryConfig
}

// Model returns the configured chat model name
func (c *Client) Model() string {
	return c.model
}

// IsRetryableStatusCode checks if an HTTP status code should trigger a retry
// Retryable codes: 408 (Timeout), 409 (Conflict), 429 (Rate Limit), 5xx (Server errors)
func IsRetryableStatusCode(statusCode int) bool {
	return statusCode == 408 || statusCode == 409 || statusCode == 429 || statusCode >= 500
}

// CalculateBackoff returns the backoff duration for a given retry attempt
// Uses exponential backoff: initialBackoff * 2^attempt, capped at maxBackoff
func CalculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := config.InitialBackoff * time.Duration(1<<uint(attempt))
	if backoff > config.MaxBackoff {
		return config.MaxBackoff
	}
	return backoff
}

// ParseRetryAfter extracts the retry-after header value from a response
// Returns 0 if the header is not present or cannot be parsed
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	return 0
}

// doRequest performs an HTTP request to the Mistral API
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait cancelled: %w", err)
		}
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == 429 {
			if retryAfter := ParseRetryAfter(resp); retryAfter > 0 {
				fmt.Printf("[Mistral] Rate limited. Retry-After: %v\n", retryAfter)
			}
			if c.rateLimiter != nil {
				c.rateLimiter.SetBackoffMultiplier(2.0)
			}
		}

		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// APIError represents a Mistral API error response
type APIError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("Mistral API error (status %d): %s", e.StatusCode, e.Message)
}

// HealthCheck verifies the client can reach the Mistral API
func (c *Client) HealthCheck(ctx context.Context) error {
	var result struct {
		Data []interface{} `json:"data"`
	}
	return c.doRequest(ctx, "GET", "/v1/models", nil, &result)
}
