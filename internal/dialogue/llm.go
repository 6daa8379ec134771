package dialogue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// LLMClient calls an OpenAI-compatible chat-completions endpoint.
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	BaseURL string // e.g. https://api.openai.com/v1
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewLLMClient creates a chat client.
func NewLLMClient(cfg *LLMConfig) (*LLMClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url cannot be empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	return &LLMClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends one system+user exchange and returns the raw assistant content.
// JSON output is requested; parsing is the caller's concern.
func (c *LLMClient) Chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   300,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		llmCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		llmCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("read chat response: %w", err)
	}

	llmLatencySeconds.Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		llmCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("chat http %d", resp.StatusCode)
	}

	var parsed chatResponse
	err = json.Unmarshal(raw, &parsed)
	if err != nil {
		llmCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		llmCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("chat error: %s", parsed.Error.Message)
	}

	if len(parsed.Choices) == 0 {
		llmCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("chat response has no choices")
	}

	llmCallsTotal.WithLabelValues("ok").Inc()

	return parsed.Choices[0].Message.Content, nil
}
