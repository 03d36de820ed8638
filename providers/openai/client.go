// Package openai implements the OpenAI adapter: text generation with a
// chat-completions to responses-API fallback, a TTL model-list cache, and
// thin image/video pass-throughs.
package openai

import (
	"net/http"
	"sync"
	"time"

	"github.com/kmcneish/go-studio-server/providers"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	chatCompletionsPath = "/chat/completions"
	responsesPath       = "/responses"
	modelsPath          = "/models"
	imagesPath          = "/images/generations"
	videosPath          = "/videos"
)

// Config holds the adapter configuration. Zero values fall back to
// sensible defaults in New.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// Timeout is the per-attempt deadline for generation calls.
	Timeout time.Duration
	// StatusTimeout is the per-attempt deadline for model-list and
	// status-poll calls.
	StatusTimeout time.Duration
	// VideoTimeout is the per-attempt deadline for video calls.
	VideoTimeout time.Duration

	// MaxRetries is the retry budget handed to the HTTP client.
	MaxRetries int

	// CacheTTL bounds how long a fetched model catalog is served.
	CacheTTL time.Duration

	// HTTPClient overrides the transport (used by tests).
	HTTPClient *http.Client

	// OnRetry is forwarded to the HTTP client for retry accounting.
	OnRetry func(attempt int)
}

// Client talks to the OpenAI API through the retrying HTTP client.
type Client struct {
	cfg Config

	cacheMu sync.Mutex
	cache   *cacheEntry
}

// New creates an OpenAI client. The API key may be empty; calls will then
// fail upstream, so callers gate on configuration before constructing.
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
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 6 * time.Second
	}
	if cfg.VideoTimeout <= 0 {
		cfg.VideoTimeout = 120 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Client{cfg: cfg}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"Content-Type":  "application/json",
	}
}

func (c *Client) requestError(status int, body, message string, cause error) *providers.RequestError {
	return &providers.RequestError{
		Provider:   providerName,
		StatusCode: status,
		Body:       providers.Snippet(body, 512),
		Message:    message,
		Cause:      cause,
	}
}
