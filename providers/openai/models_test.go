package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kmcneish/go-studio-server/providers/openai"
)

type fakeCatalog struct {
	calls atomic.Int32
	fail  atomic.Bool
	body  string
}

func (f *fakeCatalog) server(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

const catalogBody = `{"data":[
	{"id":"gpt-4o","created":1715367049,"owned_by":"openai"},
	{"id":"gpt-4o-mini","created":1721172741,"owned_by":"openai"},
	{"created":1721172742,"owned_by":"openai"},
	{"id":"o4-mini","created":1744225351,"owned_by":"openai"}
]}`

func newCacheClient(baseURL string, ttl time.Duration) *openai.Client {
	return openai.New(openai.Config{APIKey: "test-key", BaseURL: baseURL, CacheTTL: ttl, MaxRetries: 0})
}

func TestListModelsCachesWithinTTL(t *testing.T) {
	cat := &fakeCatalog{body: catalogBody}
	ts := cat.server(t)
	client := newCacheClient(ts.URL, time.Minute)

	first, err := client.ListModels(context.Background(), openai.ListOptions{})
	require.NoError(t, err)
	require.Len(t, first, 3) // entry without an id is dropped
	require.Equal(t, int32(1), cat.calls.Load())

	second, err := client.ListModels(context.Background(), openai.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), cat.calls.Load())
}

func TestListModelsRefreshesAfterExpiry(t *testing.T) {
	cat := &fakeCatalog{body: catalogBody}
	ts := cat.server(t)
	client := newCacheClient(ts.URL, 30*time.Millisecond)

	_, err := client.ListModels(context.Background(), openai.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, int32(1), cat.calls.Load())

	time.Sleep(50 * time.Millisecond)

	_, err = client.ListModels(context.Background(), openai.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, int32(2), cat.calls.Load())
}

func TestListModelsForceRefresh(t *testing.T) {
	cat := &fakeCatalog{body: catalogBody}
	ts := cat.server(t)
	client := newCacheClient(ts.URL, time.Minute)

	_, err := client.ListModels(context.Background(), openai.ListOptions{})
	require.NoError(t, err)

	_, err = client.ListModels(context.Background(), openai.ListOptions{ForceRefresh: true})
	require.NoError(t, err)
	require.Equal(t, int32(2), cat.calls.Load())
}

func TestListModelsLimit(t *testing.T) {
	cat := &fakeCatalog{body: catalogBody}
	ts := cat.server(t)
	client := newCacheClient(ts.URL, time.Minute)

	models, err := client.ListModels(context.Background(), openai.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "gpt-4o", models[0].ID)

	// The limit applies per call, not to the cached entry.
	size, _ := client.CacheInfo()
	require.Equal(t, 3, size)
}

func TestListModelsFailureClearsCache(t *testing.T) {
	cat := &fakeCatalog{body: catalogBody}
	ts := cat.server(t)
	client := newCacheClient(ts.URL, time.Minute)

	_, err := client.ListModels(context.Background(), openai.ListOptions{})
	require.NoError(t, err)
	size, expiresAt := client.CacheInfo()
	require.Equal(t, 3, size)
	require.True(t, expiresAt.After(time.Now()))

	cat.fail.Store(true)
	_, err = client.ListModels(context.Background(), openai.ListOptions{ForceRefresh: true})
	require.Error(t, err)

	size, expiresAt = client.CacheInfo()
	require.Equal(t, 0, size)
	require.True(t, expiresAt.IsZero())
}

func TestClearCache(t *testing.T) {
	cat := &fakeCatalog{body: catalogBody}
	ts := cat.server(t)
	client := newCacheClient(ts.URL, time.Minute)

	_, err := client.ListModels(context.Background(), openai.ListOptions{})
	require.NoError(t, err)

	client.ClearCache()
	size, _ := client.CacheInfo()
	require.Equal(t, 0, size)

	_, err = client.ListModels(context.Background(), openai.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, int32(2), cat.calls.Load())
}
