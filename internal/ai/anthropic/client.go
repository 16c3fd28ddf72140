// Package anthropic implements ai.Provider on the Anthropic messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/shortlister/internal/ai"
)

const (
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultBaseURL = "https://api.anthropic.com"

	anthropicVersion = "2023-06-01"
	temperature      = 0.2
	requestTimeout   = 60 * time.Second
	// The messages API requires max_tokens.
	defaultMaxTokens = 350
)

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

type Client struct {
	HTTPClient *http.Client
	BaseURL    string

	apiKey    string
	model     string
	maxTokens int
}

var _ ai.Provider = (*Client)(nil)

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	c := &Client{
		HTTPClient: &http.Client{Timeout: requestTimeout},
		BaseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		model:      strings.TrimSpace(cfg.Model),
		maxTokens:  cfg.MaxTokens,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		c.BaseURL = baseURL
	}

	return c, nil
}

func (c *Client) Name() string  { return "anthropic" }
func (c *Client) Model() string { return c.model }

// Send returns the text blocks of the answer joined together.
func (c *Client) Send(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.BaseURL, "/")+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var decoded messagesResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return "", fmt.Errorf("decode response: %w", err)
	}

	if decoded.Error != nil {
		return "", fmt.Errorf("anthropic error (status %d): %s: %s", resp.StatusCode, decoded.Error.Type, decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic error (status %d)", resp.StatusCode)
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		text.WriteString(block.Text)
	}
	return text.String(), nil
}
