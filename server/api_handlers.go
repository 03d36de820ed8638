package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/providers"
	"github.com/kmcneish/go-studio-server/providers/openai"
	"github.com/kmcneish/go-studio-server/providers/perplexity"
)

const maxPromptLength = 32_000

type generateRequestBody struct {
	Prompt         string  `json:"prompt"`
	System         string  `json:"system"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	ResponseFormat string  `json:"responseFormat"`
}

// GenerateHandler proxies a text-generation request to OpenAI.
func (s *Server) GenerateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ai == nil {
			jsonError(w, http.StatusServiceUnavailable, "OpenAI integration is not configured")
			return
		}

		var body generateRequestBody
		if err := decodeJSON(w, r, &body); err != nil {
			jsonError(w, http.StatusBadRequest, "request body must be valid JSON")
			return
		}
		if strings.TrimSpace(body.Prompt) == "" {
			jsonError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		if len(body.Prompt) > maxPromptLength {
			jsonError(w, http.StatusBadRequest, "prompt is too long")
			return
		}

		content, err := s.ai.GenerateContent(r.Context(), openai.GenerateRequest{
			Prompt:         body.Prompt,
			System:         body.System,
			Temperature:    body.Temperature,
			MaxTokens:      body.MaxTokens,
			ResponseFormat: body.ResponseFormat,
		})
		if err != nil {
			s.respondProviderError(w, "generate", err)
			return
		}

		jsonOK(w, map[string]any{"content": content})
	}
}

type analysisRequestBody struct {
	Content string `json:"content"`
}

// ContentAnalysisHandler asks the model for a structured review of a
// piece of content.
func (s *Server) ContentAnalysisHandler() http.HandlerFunc {
	const analysisSystemPrompt = "You are a content analyst. Review the provided content and " +
		"respond as a JSON object with fields: summary, tone, readability, suggestions."

	return func(w http.ResponseWriter, r *http.Request) {
		if s.ai == nil {
			jsonError(w, http.StatusServiceUnavailable, "OpenAI integration is not configured")
			return
		}

		var body analysisRequestBody
		if err := decodeJSON(w, r, &body); err != nil {
			jsonError(w, http.StatusBadRequest, "request body must be valid JSON")
			return
		}
		if strings.TrimSpace(body.Content) == "" {
			jsonError(w, http.StatusBadRequest, "content is required")
			return
		}
		if len(body.Content) > maxPromptLength {
			jsonError(w, http.StatusBadRequest, "content is too long")
			return
		}

		content, err := s.ai.GenerateContent(r.Context(), openai.GenerateRequest{
			Prompt:         body.Content,
			System:         analysisSystemPrompt,
			Temperature:    0.2,
			ResponseFormat: "json_object",
		})
		if err != nil {
			s.respondProviderError(w, "content analysis", err)
			return
		}

		jsonOK(w, map[string]any{"content": content})
	}
}

type researchRequestBody struct {
	Query     string `json:"query"`
	MaxTokens int    `json:"maxTokens"`
}

// ResearchHandler proxies a research query to Perplexity.
func (s *Server) ResearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.research == nil {
			jsonError(w, http.StatusServiceUnavailable, "research integration is not configured")
			return
		}

		var body researchRequestBody
		if err := decodeJSON(w, r, &body); err != nil {
			jsonError(w, http.StatusBadRequest, "request body must be valid JSON")
			return
		}
		if strings.TrimSpace(body.Query) == "" {
			jsonError(w, http.StatusBadRequest, "query is required")
			return
		}

		result, err := s.research.Research(r.Context(), perplexity.ResearchRequest{
			Query:     body.Query,
			MaxTokens: body.MaxTokens,
		})
		if err != nil {
			s.respondProviderError(w, "research", err)
			return
		}

		jsonOK(w, map[string]any{"content": result.Content, "citations": result.Citations})
	}
}

type imageRequestBody struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	N      int    `json:"n"`
}

// GenerateImageHandler proxies an image-generation request upstream.
func (s *Server) GenerateImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ai == nil {
			jsonError(w, http.StatusServiceUnavailable, "OpenAI integration is not configured")
			return
		}

		var body imageRequestBody
		if err := decodeJSON(w, r, &body); err != nil {
			jsonError(w, http.StatusBadRequest, "request body must be valid JSON")
			return
		}
		if strings.TrimSpace(body.Prompt) == "" {
			jsonError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		images, err := s.ai.GenerateImage(r.Context(), openai.ImageRequest{
			Prompt: body.Prompt,
			Size:   body.Size,
			N:      body.N,
		})
		if err != nil {
			s.respondProviderError(w, "image generation", err)
			return
		}

		jsonOK(w, map[string]any{"images": images})
	}
}

type videoRequestBody struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// CreateVideoHandler starts a video job upstream; the job is polled via
// VideoStatusHandler, never queued locally.
func (s *Server) CreateVideoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ai == nil {
			jsonError(w, http.StatusServiceUnavailable, "OpenAI integration is not configured")
			return
		}

		var body videoRequestBody
		if err := decodeJSON(w, r, &body); err != nil {
			jsonError(w, http.StatusBadRequest, "request body must be valid JSON")
			return
		}
		if strings.TrimSpace(body.Prompt) == "" {
			jsonError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		job, err := s.ai.CreateVideo(r.Context(), body.Prompt, body.Model)
		if err != nil {
			s.respondProviderError(w, "video creation", err)
			return
		}

		jsonOK(w, map[string]any{"job": job})
	}
}

// VideoStatusHandler polls an upstream video job.
func (s *Server) VideoStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ai == nil {
			jsonError(w, http.StatusServiceUnavailable, "OpenAI integration is not configured")
			return
		}

		id := r.PathValue("id")
		if id == "" {
			jsonError(w, http.StatusBadRequest, "video id is required")
			return
		}

		job, err := s.ai.VideoStatus(r.Context(), id)
		if err != nil {
			s.respondProviderError(w, "video status", err)
			return
		}

		jsonOK(w, map[string]any{"job": job})
	}
}

// ListModelsHandler serves the cached provider model catalog.
func (s *Server) ListModelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ai == nil {
			jsonError(w, http.StatusServiceUnavailable, "OpenAI integration is not configured")
			return
		}

		limit := 0
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			parsed, err := strconv.Atoi(rawLimit)
			if err != nil || parsed < 0 {
				jsonError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = parsed
		}
		forceRefresh := r.URL.Query().Get("refresh") == "true"

		models, err := s.ai.ListModels(r.Context(), openai.ListOptions{Limit: limit, ForceRefresh: forceRefresh})
		if err != nil {
			s.respondProviderError(w, "model list", err)
			return
		}

		jsonOK(w, map[string]any{"models": models})
	}
}

// ModelCacheInfoHandler reports the model-cache state.
func (s *Server) ModelCacheInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ai == nil {
			jsonError(w, http.StatusServiceUnavailable, "OpenAI integration is not configured")
			return
		}

		size, expiresAt := s.ai.CacheInfo()
		info := map[string]any{"size": size}
		if !expiresAt.IsZero() {
			info["expiresAt"] = expiresAt.Format(time.RFC3339)
		}
		jsonOK(w, info)
	}
}

// ClearModelCacheHandler drops the cached model catalog immediately.
func (s *Server) ClearModelCacheHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ai == nil {
			jsonError(w, http.StatusServiceUnavailable, "OpenAI integration is not configured")
			return
		}

		s.ai.ClearCache()
		jsonOK(w, nil)
	}
}

// HealthzHandler is the liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonOK(w, map[string]any{"status": "up"})
	}
}

// respondProviderError maps provider failures to safe client responses.
// Upstream bodies are only ever logged as truncated snippets, never
// forwarded.
func (s *Server) respondProviderError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, interrors.ErrEmptyContent) || errors.Is(err, interrors.ErrMalformedResponse) {
		log.Error().Err(err).Str("op", op).Msg("provider returned unusable content")
		jsonError(w, http.StatusInternalServerError, "provider returned an unusable response")
		return
	}

	var reqErr *providers.RequestError
	if errors.As(err, &reqErr) {
		log.Error().
			Str("op", op).
			Str("provider", reqErr.Provider).
			Int("status", reqErr.StatusCode).
			Str("body", reqErr.Body).
			Msg("upstream provider error")
		jsonError(w, http.StatusBadGateway, "upstream provider error")
		return
	}

	log.Error().Err(err).Str("op", op).Msg("unexpected provider failure")
	jsonError(w, http.StatusInternalServerError, "internal server error")
}
