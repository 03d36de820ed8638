// Package sessions holds the browser session model: the authenticated
// identity and the per-provider pending OAuth state tokens.
package sessions

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// User is the authenticated identity established by a successful OAuth
// callback.
type User struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Provider    string   `json:"provider"`
	Emails      []string `json:"emails"`
	Photos      []string `json:"photos"`
}

// PendingOAuthStates maps a provider name to its pending CSRF state token.
// At most one token is pending per provider; issuing a new one overwrites
// (and thereby invalidates) the previous token.
type PendingOAuthStates map[string]string

// Issue records a new pending token for the provider, overwriting any
// prior pending token.
func (p PendingOAuthStates) Issue(provider, token string) {
	p[provider] = token
}

// Consume deletes the provider's pending token unconditionally (single
// use, whatever the outcome) and reports whether the presented value
// matches it. The comparison is constant-time after a length check, so
// neither a mismatch nor a missing token leaks timing information.
func (p PendingOAuthStates) Consume(provider, presented string) bool {
	pending, ok := p[provider]
	delete(p, provider)
	if !ok || presented == "" {
		return false
	}
	if len(pending) != len(presented) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pending), []byte(presented)) == 1
}

// Session is one browser session, carried by a cookie. Lifecycle runs
// from first OAuth redirect to logout or expiry.
type Session struct {
	ID                 string             `json:"id"`
	User               *User              `json:"user,omitempty"`
	PendingOAuthStates PendingOAuthStates `json:"pendingOAuthStates"`
	CreatedAt          time.Time          `json:"createdAt"`
	ExpiresAt          time.Time          `json:"expiresAt"`
}

// New creates an anonymous session with a fresh identifier.
func New(maxAge time.Duration) Session {
	now := time.Now()
	return Session{
		ID:                 uuid.NewString(),
		PendingOAuthStates: PendingOAuthStates{},
		CreatedAt:          now,
		ExpiresAt:          now.Add(maxAge),
	}
}

// Expired reports whether the session has passed its expiry.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// GenerateStateToken creates a 256-bit random base64url token for the
// OAuth state parameter.
func GenerateStateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
