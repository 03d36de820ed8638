package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kmcneish/go-studio-server/httpclient"
	"github.com/kmcneish/go-studio-server/providers"
)

// ListOptions control one ListModels call.
type ListOptions struct {
	// Limit caps the number of returned models (0 = all).
	Limit int

	// ForceRefresh bypasses a still-fresh cache entry.
	ForceRefresh bool
}

type cacheEntry struct {
	models    []providers.Model
	expiresAt time.Time
}

// ListModels returns the provider's model catalog, memoized for the
// configured TTL. A fetch failure clears the cache entirely rather than
// serving stale data. Overlapping refreshes are not coalesced; the
// operation is idempotent and the last writer wins on the entry.
func (c *Client) ListModels(ctx context.Context, opts ListOptions) ([]providers.Model, error) {
	c.cacheMu.Lock()
	if !opts.ForceRefresh && c.cache != nil && time.Now().Before(c.cache.expiresAt) {
		models := limitModels(c.cache.models, opts.Limit)
		c.cacheMu.Unlock()
		return models, nil
	}
	c.cacheMu.Unlock()

	models, err := c.fetchModels(ctx)
	if err != nil {
		c.ClearCache()
		return nil, fmt.Errorf("failed to refresh model list: %w", err)
	}

	c.cacheMu.Lock()
	c.cache = &cacheEntry{models: models, expiresAt: time.Now().Add(c.cfg.CacheTTL)}
	c.cacheMu.Unlock()

	log.Debug().Int("models", len(models)).Msg("refreshed model catalog")
	return limitModels(models, opts.Limit), nil
}

// CacheInfo reports the cached entry size and its expiry. A zero time
// means the cache is empty.
func (c *Client) CacheInfo() (size int, expiresAt time.Time) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.cache == nil {
		return 0, time.Time{}
	}
	return len(c.cache.models), c.cache.expiresAt
}

// ClearCache resets the model cache to the uncached state immediately.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	c.cache = nil
	c.cacheMu.Unlock()
}

type modelListResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

func (c *Client) fetchModels(ctx context.Context) ([]providers.Model, error) {
	resp, err := httpclient.Do(ctx, http.MethodGet, c.cfg.BaseURL+modelsPath, nil, c.headers(), httpclient.Options{
		Timeout: c.cfg.StatusTimeout,
		Retries: c.cfg.MaxRetries,
		Client:  c.cfg.HTTPClient,
		OnRetry: c.cfg.OnRetry,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read model list: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.requestError(resp.StatusCode, string(body), "model list request failed", nil)
	}

	var parsed modelListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	models := make([]providers.Model, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID == "" {
			continue
		}
		models = append(models, providers.Model{ID: m.ID, Created: m.Created, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

func limitModels(models []providers.Model, limit int) []providers.Model {
	out := make([]providers.Model, len(models))
	copy(out, models)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
