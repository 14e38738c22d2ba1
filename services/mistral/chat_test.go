package mistral

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		RetryConfig: &RetryConfig{
			MaxRetries:     0,
			InitialBackoff: 1,
			MaxBackoff:     1,
		},
	})
}

func TestCreateChatCompletion(t *testing.T) {
	var gotAuth string
	var gotReq ChatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)

		fmt.Fprint(w, `{
			"id": "cmpl-1",
			"model": "mistral-large-latest",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Bonjour!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Salut"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "mistral-large-latest" {
		t.Errorf("default model not filled in, got %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("non-streaming request must not set stream")
	}
	if got := resp.ExtractContent(); got != "Bonjour!" {
		t.Errorf("content = %q", got)
	}

	_, _, total := resp.GetUsage()
	if total != 15 {
		t.Errorf("total tokens = %d, want 15", total)
	}
}

func TestCreateChatCompletionAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type": "invalid_api_key", "message": "Unauthorized"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected an error")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 401 || apiErr.Message != "Unauthorized" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestStreamChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("accept header = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")

		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, `data: {"id":"1","choices":[{"index":0,"delta":{"content":"Hel"}}]}`+"\n\n")
		fmt.Fprint(w, "data: this is not json\n\n")
		fmt.Fprint(w, `data: {"id":"1","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	var chunks []string
	var finished bool
	err := client.StreamChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(chunk StreamChunk) error {
		chunks = append(chunks, chunk.GetContent())
		if chunk.IsDone() {
			finished = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Malformed lines and comments are skipped, well-formed chunks delivered
	if len(chunks) != 2 || chunks[0] != "Hel" || chunks[1] != "lo" {
		t.Errorf("chunks = %v", chunks)
	}
	if !finished {
		t.Error("final chunk should report finish_reason stop")
	}
}

func TestStreamChatCompletionCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"id":"1","choices":[{"index":0,"delta":{"content":"x"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"1","choices":[{"index":0,"delta":{"content":"y"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	calls := 0
	err := client.StreamChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(chunk StreamChunk) error {
		calls++
		return fmt.Errorf("stop now")
	})
	if err == nil {
		t.Fatal("callback error must abort the stream")
	}
	if calls != 1 {
		t.Errorf("callback called %d times after aborting, want 1", calls)
	}
}

func TestStreamChatCompletionNoRetryAfterDelivery(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		// Deliver one chunk, then cut the connection mid-stream
		fmt.Fprint(w, `data: {"id":"1","choices":[{"index":0,"delta":{"content":"partial"}}]}`+"\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		RetryConfig: &RetryConfig{
			MaxRetries:     2,
			InitialBackoff: 1,
			MaxBackoff:     1,
		},
	})

	delivered := 0
	err := client.StreamChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(chunk StreamChunk) error {
		delivered++
		return nil
	})
	if err == nil {
		t.Fatal("severed stream must surface an error")
	}
	if attempts != 1 {
		t.Errorf("stream was retried %d times after content was delivered", attempts)
	}
	if delivered != 1 {
		t.Errorf("delivered = %d chunks, want 1", delivered)
	}
}

func TestCreateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req EmbeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "mistral-embed" {
			t.Errorf("default embed model not filled in, got %q", req.Model)
		}

		fmt.Fprint(w, `{"data": [{"index": 0, "embedding": [0.1, 0.2, 0.3]}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vector, err := client.CreateEmbedding(context.Background(), "some text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 3 || vector[0] != 0.1 {
		t.Errorf("vector = %v", vector)
	}
}
