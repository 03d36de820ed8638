package perplexity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/providers"
	"github.com/kmcneish/go-studio-server/providers/perplexity"
)

func TestResearchReturnsContentAndCitations(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "sonar", req["model"])

		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"  answer  "}}],
			"citations":["https://example.com/a","https://example.com/b"]
		}`))
	}))
	t.Cleanup(ts.Close)

	client := perplexity.New(perplexity.Config{APIKey: "test-key", BaseURL: ts.URL})
	result, err := client.Research(context.Background(), perplexity.ResearchRequest{Query: "what is up"})
	require.NoError(t, err)
	require.Equal(t, "answer", result.Content)
	require.Len(t, result.Citations, 2)
}

func TestResearchUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	}))
	t.Cleanup(ts.Close)

	client := perplexity.New(perplexity.Config{APIKey: "bad", BaseURL: ts.URL})
	_, err := client.Research(context.Background(), perplexity.ResearchRequest{Query: "q"})

	var reqErr *providers.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
}

func TestResearchEmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	t.Cleanup(ts.Close)

	client := perplexity.New(perplexity.Config{APIKey: "k", BaseURL: ts.URL})
	_, err := client.Research(context.Background(), perplexity.ResearchRequest{Query: "q"})
	require.ErrorIs(t, err, interrors.ErrEmptyContent)
}
