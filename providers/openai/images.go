package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kmcneish/go-studio-server/httpclient"
)

// ImageRequest describes one image-generation call. The endpoint is a
// plain pass-through; no fallback shape exists for images.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Size   string `json:"size,omitempty"`
	N      int    `json:"n,omitempty"`
}

// Image is one generated image, either a URL or inline base64 payload.
type Image struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

type imageResponse struct {
	Data []Image `json:"data"`
}

// GenerateImage proxies an image-generation request upstream.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) ([]Image, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image request: %w", err)
	}

	resp, err := httpclient.Do(ctx, http.MethodPost, c.cfg.BaseURL+imagesPath, raw, c.headers(), httpclient.Options{
		Timeout: c.cfg.VideoTimeout,
		Retries: c.cfg.MaxRetries,
		Client:  c.cfg.HTTPClient,
		OnRetry: c.cfg.OnRetry,
	})
	if err != nil {
		return nil, c.requestError(0, "", "image generation request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.requestError(resp.StatusCode, string(body), "image generation failed", nil)
	}

	var parsed imageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode image response: %w", err)
	}
	return parsed.Data, nil
}
