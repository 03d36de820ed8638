package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kmcneish/go-studio-server/httpclient"
	interrors "github.com/kmcneish/go-studio-server/internal/errors"
)

// GenerateRequest describes one text-generation call.
type GenerateRequest struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int

	// ResponseFormat is an optional structured-output hint
	// (e.g. "json_object"). Passed through in each endpoint's own field.
	ResponseFormat string

	// Timeout overrides the client's generation deadline when positive.
	Timeout time.Duration
}

// responsesHintRe matches the known phrasings the primary endpoint uses to
// ask callers to switch to the responses API.
var responsesHintRe = regexp.MustCompile(`(?i)(responses\s+api|/v1/responses|use\s+responses)`)

// GenerateContent issues a chat-completions request and, when the endpoint
// shape is rejected (404/405, or 400 with a responses-API hint), retries
// once against the responses API. Both payload shapes are normalized to
// plain text.
func (c *Client) GenerateContent(ctx context.Context, req GenerateRequest) (string, error) {
	timeout := c.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	status, body, err := c.post(ctx, chatCompletionsPath, c.chatPayload(req), timeout)
	if err != nil {
		return "", c.requestError(0, "", "chat completion request failed", err)
	}

	if status >= 200 && status < 300 {
		text, err := extractChatText(body)
		if err != nil {
			return "", c.requestError(status, string(body), "chat completion returned no usable content", err)
		}
		return text, nil
	}

	if !fallbackEligible(status, string(body)) {
		return "", c.requestError(status, string(body), "chat completion failed", nil)
	}

	log.Warn().Int("status", status).Msg("chat completions rejected request shape, falling back to responses API")

	status, body, err = c.post(ctx, responsesPath, c.responsesPayload(req), timeout)
	if err != nil {
		return "", c.requestError(0, "", "responses fallback request failed", err)
	}
	if status < 200 || status >= 300 {
		return "", c.requestError(status, string(body), "responses fallback failed", nil)
	}

	text, err := extractResponsesText(body)
	if err != nil {
		return "", c.requestError(status, string(body), "responses fallback returned no usable content", err)
	}
	return text, nil
}

// fallbackEligible classifies a primary-endpoint failure as recoverable
// via the responses API.
func fallbackEligible(status int, body string) bool {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return true
	case http.StatusBadRequest:
		return responsesHintRe.MatchString(body)
	}
	return false
}

func (c *Client) post(ctx context.Context, path string, payload any, timeout time.Duration) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := httpclient.Do(ctx, http.MethodPost, c.cfg.BaseURL+path, raw, c.headers(), httpclient.Options{
		Timeout: timeout,
		Retries: c.cfg.MaxRetries,
		Client:  c.cfg.HTTPClient,
		OnRetry: c.cfg.OnRetry,
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// ---------- Chat-completions shape ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string               `json:"model"`
	Messages       []chatMessage        `json:"messages"`
	Temperature    float64              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormatField `json:"response_format,omitempty"`
}

type responseFormatField struct {
	Type string `json:"type"`
}

func (c *Client) chatPayload(req GenerateRequest) chatRequest {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat != "" {
		payload.ResponseFormat = &responseFormatField{Type: req.ResponseFormat}
	}
	return payload
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			// Content is either a flat string or an ordered list of
			// typed segments, so it is decoded in a second pass.
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type contentSegment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// extractChatText pulls the assistant text out of a chat-completions
// response, handling both the flat-string and segmented representations.
func extractChatText(body []byte) (string, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", interrors.ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", interrors.ErrEmptyContent
	}

	raw := parsed.Choices[0].Message.Content
	var flat string
	if err := json.Unmarshal(raw, &flat); err == nil {
		flat = strings.TrimSpace(flat)
		if flat == "" {
			return "", interrors.ErrEmptyContent
		}
		return flat, nil
	}

	var segments []contentSegment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return "", fmt.Errorf("%w: unexpected content shape", interrors.ErrMalformedResponse)
	}
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", interrors.ErrEmptyContent
	}
	return text, nil
}

// ---------- Responses-API shape ----------

type responsesInputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesInput struct {
	Role    string                  `json:"role"`
	Content []responsesInputContent `json:"content"`
}

type responsesRequest struct {
	Model           string           `json:"model"`
	Input           []responsesInput `json:"input"`
	Temperature     float64          `json:"temperature"`
	MaxOutputTokens int              `json:"max_output_tokens,omitempty"`
	Text            *responsesText   `json:"text,omitempty"`
}

type responsesText struct {
	Format responseFormatField `json:"format"`
}

func (c *Client) responsesPayload(req GenerateRequest) responsesRequest {
	input := make([]responsesInput, 0, 2)
	if req.System != "" {
		input = append(input, responsesInput{
			Role:    "system",
			Content: []responsesInputContent{{Type: "input_text", Text: req.System}},
		})
	}
	input = append(input, responsesInput{
		Role:    "user",
		Content: []responsesInputContent{{Type: "input_text", Text: req.Prompt}},
	})

	payload := responsesRequest{
		Model:           c.cfg.Model,
		Input:           input,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.ResponseFormat != "" {
		payload.Text = &responsesText{Format: responseFormatField{Type: req.ResponseFormat}}
	}
	return payload
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type  string `json:"type"`
			Text  string `json:"text"`
			Value string `json:"value"`
		} `json:"content"`
	} `json:"output"`
}

// extractResponsesText prefers the consolidated output_text field and
// otherwise walks the output blocks in document order.
func extractResponsesText(body []byte) (string, error) {
	var parsed responsesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", interrors.ErrMalformedResponse, err)
	}

	if text := strings.TrimSpace(parsed.OutputText); text != "" {
		return text, nil
	}

	var parts []string
	for _, block := range parsed.Output {
		for _, content := range block.Content {
			if t := strings.TrimSpace(content.Text); t != "" {
				parts = append(parts, t)
			} else if v := strings.TrimSpace(content.Value); v != "" {
				parts = append(parts, v)
			}
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return "", interrors.ErrEmptyContent
	}
	return text, nil
}
