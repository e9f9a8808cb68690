package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// minRequestInterval spaces outbound calls to stay under provider rate
// limits.
const minRequestInterval = 100 * time.Millisecond

// GroqClient speaks the OpenAI chat-completions protocol against Groq.
// It performs a single attempt per call: the agent loop's failure policy is
// falling back to the parallel fan-out, not retrying.
type GroqClient struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// DefaultGroqConfig returns the production Groq settings.
func DefaultGroqConfig() Config {
	return Config{
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama-3.1-8b-instant",
		Timeout: 60 * time.Second,
	}
}

// NewGroqClient creates a client with default configuration.
func NewGroqClient(apiKey string) *GroqClient {
	cfg := DefaultGroqConfig()
	cfg.APIKey = apiKey
	return NewGroqClientWithConfig(cfg)
}

// NewGroqClientWithConfig creates a client with custom configuration.
func NewGroqClientWithConfig(cfg Config) *GroqClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGroqConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGroqConfig().Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultGroqConfig().Timeout
	}
	return &GroqClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Model returns the configured model name.
func (c *GroqClient) Model() string {
	return c.model
}

// Configured reports whether an API key is present.
func (c *GroqClient) Configured() bool {
	return c.apiKey != ""
}

// Chat performs one chat-completion call and returns the assistant message.
// The request's Model is filled from the client when empty.
func (c *GroqClient) Chat(ctx context.Context, req ChatRequest) (ChatMessage, error) {
	if c.apiKey == "" {
		return ChatMessage{}, fmt.Errorf("API key not configured")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if req.Model == "" {
		req.Model = c.model
	}

	// Rate limiting: space requests out.
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < minRequestInterval {
		time.Sleep(minRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	body, err := json.Marshal(req)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatMessage{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ChatMessage{}, fmt.Errorf("rate limit exceeded (429)")
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return ChatMessage{}, fmt.Errorf("API request failed with status %d: %s",
			resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return ChatMessage{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if chatResp.Error != nil {
		return ChatMessage{}, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return ChatMessage{}, fmt.Errorf("no response choices returned")
	}

	return chatResp.Choices[0].Message, nil
}
