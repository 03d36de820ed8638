package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kmcneish/go-studio-server/httpclient"
)

// VideoJob is the upstream video-generation job state, passed through
// as-is. The provider API is polled directly; there is no local job queue.
type VideoJob struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress,omitempty"`
	Model    string `json:"model,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CreateVideo starts a video-generation job upstream and returns its
// initial state.
func (c *Client) CreateVideo(ctx context.Context, prompt, model string) (*VideoJob, error) {
	payload := map[string]string{"prompt": prompt}
	if model != "" {
		payload["model"] = model
	}
	raw, _ := json.Marshal(payload)

	return c.videoCall(ctx, http.MethodPost, c.cfg.BaseURL+videosPath, raw)
}

// VideoStatus polls the state of a previously created job.
func (c *Client) VideoStatus(ctx context.Context, id string) (*VideoJob, error) {
	return c.videoCall(ctx, http.MethodGet, c.cfg.BaseURL+videosPath+"/"+id, nil)
}

func (c *Client) videoCall(ctx context.Context, method, url string, body []byte) (*VideoJob, error) {
	resp, err := httpclient.Do(ctx, method, url, body, c.headers(), httpclient.Options{
		Timeout: c.cfg.VideoTimeout,
		Retries: c.cfg.MaxRetries,
		Client:  c.cfg.HTTPClient,
		OnRetry: c.cfg.OnRetry,
	})
	if err != nil {
		return nil, c.requestError(0, "", "video request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.requestError(resp.StatusCode, string(raw), "video request failed", nil)
	}

	var job VideoJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode video response: %w", err)
	}
	return &job, nil
}
