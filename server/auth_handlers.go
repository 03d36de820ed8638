package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kmcneish/go-studio-server/sessions"
)

// OAuthBeginHandler starts an OAuth flow: it issues a fresh state token,
// persists it on the session before responding, and redirects the browser
// to the identity provider. Re-entering the flow overwrites (invalidates)
// any previous pending token for the same provider.
func (s *Server) OAuthBeginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := r.PathValue("provider")
		provider, ok := s.oauthProviders[providerName]
		if !ok {
			http.Error(w, "Unknown provider", http.StatusNotFound)
			return
		}

		session, err := s.ensureSession(w, r)
		if err != nil {
			log.Error().Err(err).Str("provider", providerName).Msg("failed to establish session for oauth flow")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		token := sessions.GenerateStateToken()
		session.PendingOAuthStates.Issue(providerName, token)

		// The session write must land before the redirect goes out, or
		// the callback could race an unsaved token.
		if err := s.sessions.Upsert(session); err != nil {
			log.Error().Err(err).Str("provider", providerName).Msg("failed to persist oauth state")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, provider.AuthCodeURL(token), http.StatusFound)
	}
}

// OAuthCallbackHandler validates the returned state token before anything
// else: the pending token is consumed single-use, compared in constant
// time, and a forged callback never reaches the code exchange.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := r.PathValue("provider")
		provider, ok := s.oauthProviders[providerName]
		if !ok {
			http.Error(w, "Unknown provider", http.StatusNotFound)
			return
		}

		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")

		session, hasSession := s.sessionFromRequest(r)
		valid := false
		if hasSession {
			valid = session.PendingOAuthStates.Consume(providerName, state)
			// Persist the consumption whatever the outcome so a replayed
			// callback finds no pending token.
			if err := s.sessions.Upsert(session); err != nil {
				log.Error().Err(err).Str("provider", providerName).Msg("failed to persist state consumption")
				http.Error(w, "Login failed", http.StatusInternalServerError)
				return
			}
		}

		if !valid || code == "" {
			// Token values are never logged, only the fact of the mismatch.
			log.Warn().Str("provider", providerName).Bool("session", hasSession).Msg("oauth state validation failed")
			s.recordLogin(providerName, "state_rejected")
			http.Redirect(w, r, RouteLoginPage+"?error="+providerName+"_oauth_state", http.StatusFound)
			return
		}

		if errParam := r.URL.Query().Get("error"); errParam != "" {
			log.Warn().Str("provider", providerName).Str("error", errParam).Msg("identity provider returned an error")
			s.recordLogin(providerName, "provider_error")
			http.Redirect(w, r, RouteLoginPage+"?error="+providerName+"_oauth_failed", http.StatusFound)
			return
		}

		user, err := provider.Exchange(r.Context(), code)
		if err != nil {
			log.Error().Err(err).Str("provider", providerName).Msg("oauth code exchange failed")
			s.recordLogin(providerName, "exchange_failed")
			http.Redirect(w, r, RouteLoginPage+"?error="+providerName+"_oauth_failed", http.StatusFound)
			return
		}

		session.User = user
		if err := s.sessions.Upsert(session); err != nil {
			log.Error().Err(err).Str("provider", providerName).Msg("failed to persist authenticated session")
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}

		s.recordLogin(providerName, "success")
		http.Redirect(w, r, RouteDashboardPage, http.StatusFound)
	}
}

// LogoutHandler drops the server-side session and clears the cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if session, ok := s.sessionFromRequest(r); ok {
			if err := s.sessions.Delete(session.ID); err != nil {
				log.Error().Err(err).Msg("failed to delete session on logout")
			}
		}
		s.clearSessionCookie(w, r)
		http.Redirect(w, r, RouteLoginPage, http.StatusFound)
	}
}

// MeHandler returns the authenticated identity for the current session.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.sessionFromRequest(r)
		if !ok || session.User == nil {
			jsonError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		jsonOK(w, map[string]any{"user": session.User})
	}
}

func (s *Server) recordLogin(provider, outcome string) {
	if s.metrics != nil {
		s.metrics.OAuthLogins.WithLabelValues(provider, outcome).Inc()
	}
}
