package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/kmcneish/go-studio-server/internal/config"
	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/sessions"
)

const facebookProfileURL = "https://graph.facebook.com/v19.0/me?fields=id,name,email,picture"

// facebookProvider exchanges Facebook auth codes and reads the profile
// from the Graph API, since Facebook does not issue OIDC ID tokens here.
type facebookProvider struct {
	oauth2Config *oauth2.Config
	profileURL   string
}

func newFacebookProvider(cfg config.Config) *facebookProvider {
	return &facebookProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.GetOAuthClientID("facebook"),
			ClientSecret: cfg.GetOAuthClientSecret("facebook"),
			RedirectURL:  cfg.GetOAuthCallbackURL("facebook"),
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"public_profile", "email"},
		},
		profileURL: facebookProfileURL,
	}
}

func (f *facebookProvider) AuthCodeURL(state string) string {
	return f.oauth2Config.AuthCodeURL(state)
}

func (f *facebookProvider) Exchange(ctx context.Context, code string) (*sessions.User, error) {
	token, err := f.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "facebook code exchange: %v", err)
	}

	client := f.oauth2Config.Client(ctx, token)
	resp, err := client.Get(f.profileURL)
	if err != nil {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "facebook profile fetch: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "facebook profile fetch returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "facebook profile read: %v", err)
	}

	var profile struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "facebook profile decode: %v", err)
	}
	if profile.ID == "" {
		return nil, interrors.Wrapf(interrors.ErrOAuthExchange, "facebook profile missing id")
	}

	user := &sessions.User{
		ID:          profile.ID,
		DisplayName: profile.Name,
		Provider:    "facebook",
	}
	if profile.Email != "" {
		user.Emails = []string{profile.Email}
	}
	if profile.Picture.Data.URL != "" {
		user.Photos = []string{profile.Picture.Data.URL}
	}
	return user, nil
}

func newIdentityProvider(provider string, cfg config.Config) (OAuthIdentityProvider, error) {
	switch provider {
	case "google":
		return newGoogleProvider(cfg), nil
	case "facebook":
		return newFacebookProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown oauth provider %q", provider)
	}
}
