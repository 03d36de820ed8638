package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type ProvidersConfig interface {
	GetOpenAIAPIKey() string
	GetPerplexityAPIKey() string
	GetOpenAIModel() string
	GetPerplexityModel() string
	GetGenerateTimeout() time.Duration
	GetStatusTimeout() time.Duration
	GetVideoTimeout() time.Duration
	GetMaxRetries() int
	GetModelCacheTTL() time.Duration
}

// tunables are the optional file-based overrides for outbound HTTP behaviour.
// Environment variables win over the file, the file wins over defaults.
type tunables struct {
	GenerateTimeoutMS int    `yaml:"generate_timeout_ms"`
	StatusTimeoutMS   int    `yaml:"status_timeout_ms"`
	VideoTimeoutMS    int    `yaml:"video_timeout_ms"`
	MaxRetries        *int   `yaml:"max_retries"`
	ModelCacheTTLS    int    `yaml:"model_cache_ttl_seconds"`
	OpenAIModel       string `yaml:"openai_model"`
	PerplexityModel   string `yaml:"perplexity_model"`
}

type Providers struct {
	file tunables
}

var _ ProvidersConfig = Providers{}

// NewProviders loads the optional tunables file (STUDIO_CONFIG, default
// ./studio.yaml). A missing file is not an error; a malformed one is
// ignored rather than fatal since every value has a default.
func NewProviders() Providers {
	p := Providers{}
	path := GetEnv("STUDIO_CONFIG", "studio.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	_ = yaml.Unmarshal(data, &p.file)
	return p
}

// GetOpenAIAPIKey resolves the OpenAI key from several accepted variable
// names, first non-empty wins.
func (Providers) GetOpenAIAPIKey() string {
	return FirstEnv("OPENAI_API_KEY", "OPENAI_KEY", "OPENAI_TOKEN")
}

func (Providers) GetPerplexityAPIKey() string {
	return FirstEnv("PERPLEXITY_API_KEY", "PPLX_API_KEY")
}

func (p Providers) GetOpenAIModel() string {
	if m := GetEnv("OPENAI_MODEL", ""); m != "" {
		return m
	}
	if p.file.OpenAIModel != "" {
		return p.file.OpenAIModel
	}
	return "gpt-4o-mini"
}

func (p Providers) GetPerplexityModel() string {
	if m := GetEnv("PERPLEXITY_MODEL", ""); m != "" {
		return m
	}
	if p.file.PerplexityModel != "" {
		return p.file.PerplexityModel
	}
	return "sonar"
}

func (p Providers) GetGenerateTimeout() time.Duration {
	return p.timeout("GENERATE_TIMEOUT_MS", p.file.GenerateTimeoutMS, 8*time.Second)
}

func (p Providers) GetStatusTimeout() time.Duration {
	return p.timeout("STATUS_TIMEOUT_MS", p.file.StatusTimeoutMS, 6*time.Second)
}

func (p Providers) GetVideoTimeout() time.Duration {
	return p.timeout("VIDEO_TIMEOUT_MS", p.file.VideoTimeoutMS, 120*time.Second)
}

func (p Providers) GetMaxRetries() int {
	if n, err := strconv.Atoi(GetEnv("HTTP_MAX_RETRIES", "")); err == nil && n >= 0 {
		return n
	}
	if p.file.MaxRetries != nil && *p.file.MaxRetries >= 0 {
		return *p.file.MaxRetries
	}
	return 2
}

func (p Providers) GetModelCacheTTL() time.Duration {
	if n, err := strconv.Atoi(GetEnv("MODEL_CACHE_TTL_SECONDS", "")); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if p.file.ModelCacheTTLS > 0 {
		return time.Duration(p.file.ModelCacheTTLS) * time.Second
	}
	return 10 * time.Minute
}

func (p Providers) timeout(envVar string, fileMS int, def time.Duration) time.Duration {
	if n, err := strconv.Atoi(GetEnv(envVar, "")); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	if fileMS > 0 {
		return time.Duration(fileMS) * time.Millisecond
	}
	return def
}
