package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kmcneish/go-studio-server/internal/config"
	"github.com/kmcneish/go-studio-server/providers"
	"github.com/kmcneish/go-studio-server/providers/openai"
	"github.com/kmcneish/go-studio-server/providers/perplexity"
	"github.com/kmcneish/go-studio-server/sessions"
)

// OpenAIService is the slice of the OpenAI adapter the HTTP layer uses.
// Nil means the integration is not configured and its endpoints serve 503.
type OpenAIService interface {
	GenerateContent(ctx context.Context, req openai.GenerateRequest) (string, error)
	ListModels(ctx context.Context, opts openai.ListOptions) ([]providers.Model, error)
	CacheInfo() (size int, expiresAt time.Time)
	ClearCache()
	GenerateImage(ctx context.Context, req openai.ImageRequest) ([]openai.Image, error)
	CreateVideo(ctx context.Context, prompt, model string) (*openai.VideoJob, error)
	VideoStatus(ctx context.Context, id string) (*openai.VideoJob, error)
}

// ResearchService is the slice of the Perplexity adapter the HTTP layer uses.
type ResearchService interface {
	Research(ctx context.Context, req perplexity.ResearchRequest) (*perplexity.ResearchResult, error)
}

// OAuthIdentityProvider abstracts one identity provider: building the
// authorization redirect and exchanging the callback code for an identity.
type OAuthIdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*sessions.User, error)
}

type Server struct {
	env        string // Environment (e.g., "DEV", "production")
	mux        *http.ServeMux
	routes     []string
	fileServer http.Handler
	config     config.Config
	sessions   sessions.Repo
	ai         OpenAIService
	research   ResearchService
	metrics    *Metrics

	oauthProviders map[string]OAuthIdentityProvider
	sessionSecret  []byte
}

func New(cfg config.Config, sessionRepo sessions.Repo, ai OpenAIService, research ResearchService, metrics *Metrics) (*Server, error) {
	s := &Server{
		mux:            http.NewServeMux(),
		config:         cfg,
		sessions:       sessionRepo,
		ai:             ai,
		research:       research,
		metrics:        metrics,
		oauthProviders: make(map[string]OAuthIdentityProvider),
	}
	s.env = cfg.GetEnv()
	s.fileServer = FileServerHandler()

	secret, err := resolveSessionSecret(cfg)
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	s.sessionSecret = secret

	for _, provider := range []string{"google", "facebook"} {
		if !cfg.OAuthProviderConfigured(provider) {
			continue
		}
		p, err := newIdentityProvider(provider, cfg)
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to configure %s oauth: %w", provider, err)
		}
		s.RegisterOAuthProvider(provider, p)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// RegisterOAuthProvider installs (or replaces) an identity provider under
// the given name. Exposed for tests and alternative providers.
func (s *Server) RegisterOAuthProvider(name string, p OAuthIdentityProvider) {
	s.oauthProviders[name] = p
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
