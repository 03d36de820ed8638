package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/kmcneish/go-studio-server/internal/config"
	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/sessions"
)

const googleIssuer = "https://accounts.google.com"

// googleProvider exchanges Google auth codes and verifies the returned
// ID token before trusting its claims.
type googleProvider struct {
	oauth2Config *oauth2.Config

	initOnce sync.Once
	initErr  error
	verifier *oidc.IDTokenVerifier
}

func newGoogleProvider(cfg config.Config) *googleProvider {
	return &googleProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.GetOAuthClientID("google"),
			ClientSecret: cfg.GetOAuthClientSecret("google"),
			RedirectURL:  cfg.GetOAuthCallbackURL("google"),
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}
}

func (g *googleProvider) AuthCodeURL(state string) string {
	return g.oauth2Config.AuthCodeURL(state)
}

// ensureVerifier performs issuer discovery on first use so construction
// does not require network access.
func (g *googleProvider) ensureVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	g.initOnce.Do(func() {
		provider, err := oidc.NewProvider(ctx, googleIssuer)
		if err != nil {
			g.initErr = fmt.Errorf("google oidc discovery: %w", err)
			return
		}
		g.verifier = provider.Verifier(&oidc.Config{ClientID: g.oauth2Config.ClientID})
	})
	return g.verifier, g.initErr
}

func (g *googleProvider) Exchange(ctx context.Context, code string) (*sessions.User, error) {
	verifier, err := g.ensureVerifier(ctx)
	if err != nil {
		return nil, err
	}

	token, err := g.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "google code exchange: %v", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "google token response missing id_token")
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "google id_token verification: %v", err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "google id_token claims: %v", err)
	}

	user := &sessions.User{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		Provider:    "google",
	}
	if claims.Email != "" {
		user.Emails = []string{claims.Email}
	}
	if claims.Picture != "" {
		user.Photos = []string{claims.Picture}
	}
	return user, nil
}
