package openai_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/providers"
	"github.com/kmcneish/go-studio-server/providers/openai"
)

type fakeUpstream struct {
	chatCalls      atomic.Int32
	responsesCalls atomic.Int32

	chatStatus int
	chatBody   string

	responsesStatus int
	responsesBody   string
}

func (f *fakeUpstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		w.WriteHeader(f.chatStatus)
		_, _ = w.Write([]byte(f.chatBody))
	})
	mux.HandleFunc("/responses", func(w http.ResponseWriter, r *http.Request) {
		f.responsesCalls.Add(1)
		w.WriteHeader(f.responsesStatus)
		_, _ = w.Write([]byte(f.responsesBody))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(baseURL string) *openai.Client {
	return openai.New(openai.Config{APIKey: "test-key", BaseURL: baseURL, MaxRetries: 0})
}

// captureWarnings redirects the global logger and returns a counter of
// warn-level lines emitted during the test.
func captureWarnings(t *testing.T) func() int {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return func() int {
		return strings.Count(buf.String(), `"level":"warn"`)
	}
}

func TestGenerateContentHappyPath(t *testing.T) {
	up := &fakeUpstream{
		chatStatus: http.StatusOK,
		chatBody:   `{"choices":[{"message":{"content":"hello"}}]}`,
	}
	ts := up.server(t)

	text, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hello", text)
	require.Equal(t, int32(1), up.chatCalls.Load())
	require.Equal(t, int32(0), up.responsesCalls.Load())
}

func TestGenerateContentSegmentedContent(t *testing.T) {
	up := &fakeUpstream{
		chatStatus: http.StatusOK,
		chatBody:   `{"choices":[{"message":{"content":[{"type":"text","text":"hel"},{"type":"text","text":"lo "}]}}]}`,
	}
	ts := up.server(t)

	text, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestGenerateContentFallsBackOnMethodNotAllowed(t *testing.T) {
	warnings := captureWarnings(t)
	up := &fakeUpstream{
		chatStatus:      http.StatusMethodNotAllowed,
		chatBody:        `{"error":{"message":"not allowed"}}`,
		responsesStatus: http.StatusOK,
		responsesBody:   `{"output_text":"  hi  "}`,
	}
	ts := up.server(t)

	text, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", text)
	require.Equal(t, int32(1), up.chatCalls.Load())
	require.Equal(t, int32(1), up.responsesCalls.Load())
	require.Equal(t, 1, warnings())
}

func TestGenerateContentFallsBackOnBadRequestWithHint(t *testing.T) {
	up := &fakeUpstream{
		chatStatus:      http.StatusBadRequest,
		chatBody:        `{"error":{"message":"This model is only supported in the Responses API"}}`,
		responsesStatus: http.StatusOK,
		responsesBody:   `{"output":[{"content":[{"type":"output_text","text":"first"},{"type":"output_text","value":"second"}]}]}`,
	}
	ts := up.server(t)

	text, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "first\nsecond", text)
	require.Equal(t, int32(1), up.responsesCalls.Load())
}

func TestGenerateContentTerminalFailureSkipsFallback(t *testing.T) {
	up := &fakeUpstream{
		chatStatus: http.StatusUnauthorized,
		chatBody:   `{"error":{"message":"bad key"}}`,
	}
	ts := up.server(t)

	_, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)

	var reqErr *providers.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	require.Equal(t, int32(1), up.chatCalls.Load())
	require.Equal(t, int32(0), up.responsesCalls.Load())
}

func TestGenerateContentDoubleFailureReportsFallback(t *testing.T) {
	up := &fakeUpstream{
		chatStatus:      http.StatusMethodNotAllowed,
		chatBody:        ``,
		responsesStatus: http.StatusBadRequest,
		responsesBody:   `{"error":{"message":"bad input"}}`,
	}
	ts := up.server(t)

	_, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fallback")

	var reqErr *providers.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	require.Equal(t, int32(1), up.chatCalls.Load())
	require.Equal(t, int32(1), up.responsesCalls.Load())
}

func TestGenerateContentEmptyContent(t *testing.T) {
	up := &fakeUpstream{
		chatStatus: http.StatusOK,
		chatBody:   `{"choices":[{"message":{"content":"   "}}]}`,
	}
	ts := up.server(t)

	_, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.ErrorIs(t, err, interrors.ErrEmptyContent)
}

func TestGenerateContentEmptyFallbackContent(t *testing.T) {
	up := &fakeUpstream{
		chatStatus:      http.StatusNotFound,
		chatBody:        ``,
		responsesStatus: http.StatusOK,
		responsesBody:   `{"output":[]}`,
	}
	ts := up.server(t)

	_, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.ErrorIs(t, err, interrors.ErrEmptyContent)
}

func TestGenerateContentPlainBadRequestIsTerminal(t *testing.T) {
	up := &fakeUpstream{
		chatStatus: http.StatusBadRequest,
		chatBody:   `{"error":{"message":"temperature out of range"}}`,
	}
	ts := up.server(t)

	_, err := newTestClient(ts.URL).GenerateContent(context.Background(), openai.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Equal(t, int32(0), up.responsesCalls.Load())
}
