package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient speaks the Anthropic messages API. Unlike the Groq client
// it retries, because its callers (summarize, categorize) have no fallback
// path of their own.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// DefaultAnthropicConfig returns the production Anthropic settings.
func DefaultAnthropicConfig() Config {
	return Config{
		BaseURL: "https://api.anthropic.com/v1",
		Model:   "claude-3-haiku-20240307",
		Timeout: 30 * time.Second,
	}
}

// NewAnthropicClient creates a client with default configuration.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	cfg := DefaultAnthropicConfig()
	cfg.APIKey = apiKey
	return NewAnthropicClientWithConfig(cfg)
}

// NewAnthropicClientWithConfig creates a client with custom configuration.
func NewAnthropicClientWithConfig(cfg Config) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicConfig().Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultAnthropicConfig().Timeout
	}
	return &AnthropicClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: 4,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Configured reports whether an API key is present.
func (c *AnthropicClient) Configured() bool {
	return c.apiKey != ""
}

// Complete sends a single user turn and returns the first text block,
// trimmed. Transport errors and 429s are retried with exponential backoff
// (1s, 2s, 4s).
func (c *AnthropicClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(AnthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []AnthropicMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s.
			time.Sleep(time.Duration(1<<uint(i-1)) * time.Second)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return text, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *AnthropicClient) doRequest(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < minRequestInterval {
		time.Sleep(minRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("rate limit exceeded (429)")
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", false, fmt.Errorf("API request failed with status %d: %s",
			resp.StatusCode, string(respBody))
	}

	var msgResp AnthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w", err)
	}

	if msgResp.Error != nil {
		return "", false, fmt.Errorf("API error: %s", msgResp.Error.Message)
	}
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), false, nil
		}
	}
	return "", false, fmt.Errorf("no text content in response")
}
