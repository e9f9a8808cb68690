package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroqClient(url string) *GroqClient {
	return NewGroqClientWithConfig(Config{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "llama-3.1-8b-instant",
		Timeout: 5 * time.Second,
	})
}

func TestGroqChat(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotBody, _ = io.ReadAll(r.Body)

		resp := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "Transformers use self-attention.",
					},
					"finish_reason": "stop",
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestGroqClient(server.URL)
	msg, err := client.Chat(context.Background(), ChatRequest{
		Messages:    []ChatMessage{{Role: "user", Content: "explain transformers"}},
		Temperature: 0,
		MaxTokens:   1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "Transformers use self-attention.", msg.Content)

	var req ChatRequest
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "llama-3.1-8b-instant", req.Model)
	assert.Equal(t, 1024, req.MaxTokens)
	// Temperature 0 must reach the wire; the provider default is not 0.
	assert.Contains(t, string(gotBody), `"temperature":0`)
}

func TestGroqChatReturnsToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "search_arxiv", "arguments": "{\"query\":\"llm\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer server.Close()

	client := newTestGroqClient(server.URL)
	msg, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "q"}},
	})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "search_arxiv", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"llm"}`, msg.ToolCalls[0].Function.Arguments)
}

func TestGroqChatNoKey(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewGroqClientWithConfig(Config{BaseURL: server.URL})
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "q"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
	assert.Equal(t, int32(0), calls.Load())
}

func TestGroqChatServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestGroqClient(server.URL)
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "q"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGroqChatRateLimitSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestGroqClient(server.URL)
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "q"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded (429)")
	// The loop falls back instead of retrying, so exactly one attempt.
	assert.Equal(t, int32(1), calls.Load())
}

func TestGroqChatAPIErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	client := newTestGroqClient(server.URL)
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "q"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestGroqChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := newTestGroqClient(server.URL)
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "q"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response choices")
}

func TestGroqChatRequestSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer server.Close()

	client := newTestGroqClient(server.URL)
	req := ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "q"}}}

	_, err := client.Chat(context.Background(), req)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Chat(context.Background(), req)
	require.NoError(t, err)

	if elapsed := time.Since(start); elapsed < minRequestInterval {
		t.Fatalf("second request after %v, want at least %v", elapsed, minRequestInterval)
	}
}
