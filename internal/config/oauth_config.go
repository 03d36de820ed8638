package config

import (
	"fmt"
	"strings"
)

type OAuthConfig interface {
	GetOAuthClientID(provider string) string
	GetOAuthClientSecret(provider string) string
	GetOAuthCallbackURL(provider string) string
	OAuthProviderConfigured(provider string) bool
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// Credentials follow the GOOGLE_CLIENT_ID / FACEBOOK_CLIENT_SECRET naming scheme.
func oauthEnvPrefix(provider string) string {
	return strings.ToUpper(provider)
}

func (OAuth) GetOAuthClientID(provider string) string {
	return GetEnv(oauthEnvPrefix(provider)+"_CLIENT_ID", "")
}

func (OAuth) GetOAuthClientSecret(provider string) string {
	return GetEnv(oauthEnvPrefix(provider)+"_CLIENT_SECRET", "")
}

// GetOAuthCallbackURL returns the registered redirect URL for the provider.
// Defaults to {BASE_URL}/auth/{provider}/callback when not set explicitly.
func (o OAuth) GetOAuthCallbackURL(provider string) string {
	if url := GetEnv(oauthEnvPrefix(provider)+"_CALLBACK_URL", ""); url != "" {
		return url
	}
	return fmt.Sprintf("%s/auth/%s/callback", EnvVars{}.GetBaseURL(), provider)
}

func (o OAuth) OAuthProviderConfigured(provider string) bool {
	return o.GetOAuthClientID(provider) != "" && o.GetOAuthClientSecret(provider) != ""
}
