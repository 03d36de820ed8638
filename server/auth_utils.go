package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/kmcneish/go-studio-server/internal/config"
	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/sessions"
)

const (
	// sessionCookieName carries the signed session ID.
	sessionCookieName = "studio_session"
)

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// resolveSessionSecret enforces a configured secret outside DEV. In DEV a
// throwaway secret is generated so sessions survive only one process.
func resolveSessionSecret(cfg config.Config) ([]byte, error) {
	secret := cfg.GetSessionSecret()
	if secret != "" {
		return []byte(secret), nil
	}
	if cfg.GetEnv() != "DEV" {
		return nil, interrors.ErrMissingSessionSecret
	}
	log.Warn().Msg("SESSION_SECRET not set, using an ephemeral secret (DEV only)")
	return []byte(generateRandomString(32)), nil
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// encodeSessionCookie signs the session ID into a compact JWT so the
// cookie is tamper-evident.
func (s *Server) encodeSessionCookie(sessionID string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	return token.SignedString(s.sessionSecret)
}

// decodeSessionCookie verifies the cookie signature and returns the
// session ID.
func (s *Server) decodeSessionCookie(value string) (string, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.sessionSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", interrors.ErrSessionNotFound
	}
	return claims.SessionID, nil
}

func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, session sessions.Session) error {
	value, err := s.encodeSessionCookie(session.ID, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionFromRequest loads the request's session, if any.
func (s *Server) sessionFromRequest(r *http.Request) (sessions.Session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return sessions.Session{}, false
	}
	sessionID, err := s.decodeSessionCookie(cookie.Value)
	if err != nil {
		return sessions.Session{}, false
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return sessions.Session{}, false
	}
	if session.Expired(time.Now()) {
		_ = s.sessions.Delete(session.ID)
		return sessions.Session{}, false
	}
	return session, true
}

// ensureSession returns the request's session, creating and persisting a
// fresh anonymous one when none exists.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) (sessions.Session, error) {
	if session, ok := s.sessionFromRequest(r); ok {
		return session, nil
	}

	session := sessions.New(s.config.GetMaxSessionAge())
	if err := s.sessions.Upsert(session); err != nil {
		return sessions.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.SetSessionCookie(w, r, session); err != nil {
		return sessions.Session{}, err
	}
	return session, nil
}
