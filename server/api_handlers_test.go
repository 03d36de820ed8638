package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kmcneish/go-studio-server/internal/config"
	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/providers"
	"github.com/kmcneish/go-studio-server/providers/openai"
	"github.com/kmcneish/go-studio-server/providers/perplexity"
	"github.com/kmcneish/go-studio-server/server"
	"github.com/kmcneish/go-studio-server/sessions"
)

type fakeAI struct {
	content     string
	generateErr error
	lastRequest openai.GenerateRequest

	models   []providers.Model
	listErr  error
	lastOpts openai.ListOptions

	cacheSize    int
	cacheExpires time.Time
	cleared      bool

	job *openai.VideoJob
}

func (f *fakeAI) GenerateContent(_ context.Context, req openai.GenerateRequest) (string, error) {
	f.lastRequest = req
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.content, nil
}

func (f *fakeAI) ListModels(_ context.Context, opts openai.ListOptions) ([]providers.Model, error) {
	f.lastOpts = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}

func (f *fakeAI) CacheInfo() (int, time.Time) { return f.cacheSize, f.cacheExpires }
func (f *fakeAI) ClearCache()                 { f.cleared = true }

func (f *fakeAI) GenerateImage(_ context.Context, req openai.ImageRequest) ([]openai.Image, error) {
	return []openai.Image{{URL: "https://img.example.com/1.png"}}, nil
}

func (f *fakeAI) CreateVideo(_ context.Context, prompt, model string) (*openai.VideoJob, error) {
	return f.job, nil
}

func (f *fakeAI) VideoStatus(_ context.Context, id string) (*openai.VideoJob, error) {
	return f.job, nil
}

type fakeResearch struct {
	result *perplexity.ResearchResult
	err    error
}

func (f *fakeResearch) Research(_ context.Context, req perplexity.ResearchRequest) (*perplexity.ResearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type apiFixture struct {
	server   *server.Server
	ai       *fakeAI
	research *fakeResearch
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	t.Setenv("SESSION_SECRET", "unit-test-session-secret")

	ai := &fakeAI{content: "generated text"}
	research := &fakeResearch{result: &perplexity.ResearchResult{
		Content:   "research findings",
		Citations: []string{"https://example.com/source"},
	}}

	srv, err := server.New(config.New(), sessions.NewInMemoryRepo(), ai, research,
		server.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)

	return apiFixture{server: srv, ai: ai, research: research}
}

func (f apiFixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w.Result()
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestGenerateReturnsContent(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/generate", `{"prompt":"write a post about cats"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, true, body["ok"])
	require.Equal(t, "generated text", body["content"])
	require.Equal(t, "write a post about cats", f.ai.lastRequest.Prompt)
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/generate", `{"prompt":"   "}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, false, body["ok"])
}

func TestGenerateRejectsInvalidJSON(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/generate", `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateWithoutIntegrationIs503(t *testing.T) {
	t.Setenv("SESSION_SECRET", "unit-test-session-secret")

	srv, err := server.New(config.New(), sessions.NewInMemoryRepo(), nil, nil,
		server.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Result().StatusCode)
}

func TestGenerateMapsUpstreamErrorTo502(t *testing.T) {
	f := newAPIFixture(t)
	f.ai.generateErr = &providers.RequestError{
		Provider:   "openai",
		StatusCode: 500,
		Message:    "chat completion request failed",
	}

	resp := f.do(t, http.MethodPost, "/api/generate", `{"prompt":"hi"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "upstream provider error", body["error"])
}

func TestGenerateMapsEmptyContentTo500(t *testing.T) {
	f := newAPIFixture(t)
	f.ai.generateErr = interrors.ErrEmptyContent

	resp := f.do(t, http.MethodPost, "/api/generate", `{"prompt":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "provider returned an unusable response", body["error"])
}

func TestContentAnalysisUsesStructuredOutput(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/content/analysis", `{"content":"my draft article"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "json_object", f.ai.lastRequest.ResponseFormat)
	require.Equal(t, "my draft article", f.ai.lastRequest.Prompt)
	require.NotEmpty(t, f.ai.lastRequest.System)
}

func TestContentAnalysisRequiresContent(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/content/analysis", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResearchReturnsCitations(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/research", `{"query":"history of espresso"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "research findings", body["content"])
	require.Equal(t, []any{"https://example.com/source"}, body["citations"])
}

func TestListModelsPassesOptions(t *testing.T) {
	f := newAPIFixture(t)
	f.ai.models = []providers.Model{{ID: "gpt-4o"}, {ID: "gpt-4o-mini"}}

	resp := f.do(t, http.MethodGet, "/api/integrations/openai/models?limit=2&refresh=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, openai.ListOptions{Limit: 2, ForceRefresh: true}, f.ai.lastOpts)

	body := decodeBody(t, resp)
	require.Len(t, body["models"], 2)
}

func TestListModelsRejectsBadLimit(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/integrations/openai/models?limit=nope", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestModelCacheInfoAndClear(t *testing.T) {
	f := newAPIFixture(t)
	f.ai.cacheSize = 3
	f.ai.cacheExpires = time.Now().Add(5 * time.Minute)

	info := f.do(t, http.MethodGet, "/api/integrations/openai/models/cache", "")
	require.Equal(t, http.StatusOK, info.StatusCode)
	body := decodeBody(t, info)
	require.Equal(t, float64(3), body["size"])
	require.NotEmpty(t, body["expiresAt"])

	cleared := f.do(t, http.MethodDelete, "/api/integrations/openai/models/cache", "")
	require.Equal(t, http.StatusOK, cleared.StatusCode)
	require.True(t, f.ai.cleared)
}

func TestVideoStatus(t *testing.T) {
	f := newAPIFixture(t)
	f.ai.job = &openai.VideoJob{ID: "video-1", Status: "in_progress", Progress: 40}

	resp := f.do(t, http.MethodGet, "/api/videos/video-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	job := body["job"].(map[string]any)
	require.Equal(t, "video-1", job["id"])
	require.Equal(t, "in_progress", job["status"])
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, "up", body["status"])
}
