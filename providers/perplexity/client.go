// Package perplexity implements the Perplexity research adapter. The API
// speaks the chat-completions shape; there is no alternate endpoint, so
// failures are terminal after the HTTP client's retry budget.
package perplexity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kmcneish/go-studio-server/httpclient"
	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/providers"
)

const (
	providerName   = "perplexity"
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar"

	chatCompletionsPath = "/chat/completions"
)

// Config holds the adapter configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	Timeout    time.Duration
	MaxRetries int

	HTTPClient *http.Client
	OnRetry    func(attempt int)
}

// Client talks to the Perplexity API through the retrying HTTP client.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{cfg: cfg}
}

// ResearchRequest describes one research query.
type ResearchRequest struct {
	Query     string
	System    string
	MaxTokens int
}

// ResearchResult is the normalized answer plus source citations.
type ResearchResult struct {
	Content   string
	Citations []string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Research runs one query against the Perplexity chat-completions API.
func (c *Client) Research(ctx context.Context, req ResearchRequest) (*ResearchResult, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Query})

	raw, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: messages, MaxTokens: req.MaxTokens})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal research request: %w", err)
	}

	resp, err := httpclient.Do(ctx, http.MethodPost, c.cfg.BaseURL+chatCompletionsPath, raw, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"Content-Type":  "application/json",
	}, httpclient.Options{
		Timeout: c.cfg.Timeout,
		Retries: c.cfg.MaxRetries,
		Client:  c.cfg.HTTPClient,
		OnRetry: c.cfg.OnRetry,
	})
	if err != nil {
		return nil, &providers.RequestError{Provider: providerName, Message: "research request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read research response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providers.RequestError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       providers.Snippet(string(body), 512),
			Message:    "research request failed",
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", interrors.ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, interrors.ErrEmptyContent
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, interrors.ErrEmptyContent
	}

	return &ResearchResult{Content: content, Citations: parsed.Citations}, nil
}
