package config

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	ProvidersConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetBaseURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Providers
	Security
}

func New() Config {
	return mainConfig{Providers: NewProviders()}
}
