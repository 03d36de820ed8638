package sessions

import (
	"fmt"
	"sync"
	"time"

	interrors "github.com/kmcneish/go-studio-server/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{sessions: make(map[string]Session)}
}

// Upsert stores or updates a session
func (r *InMemoryRepo) Upsert(session Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = copySession(session)
	return nil
}

// Get retrieves a session by ID
func (r *InMemoryRepo) Get(sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("session ID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, interrors.ErrSessionNotFound
	}
	return copySession(session), nil
}

// Delete removes a session
func (r *InMemoryRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// DeleteExpired removes every session past its expiry
func (r *InMemoryRepo) DeleteExpired(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// copySession deep-copies the mutable parts to prevent external modifications
func copySession(session Session) Session {
	states := make(PendingOAuthStates, len(session.PendingOAuthStates))
	for provider, token := range session.PendingOAuthStates {
		states[provider] = token
	}
	session.PendingOAuthStates = states

	if session.User != nil {
		user := *session.User
		user.Emails = append([]string(nil), session.User.Emails...)
		user.Photos = append([]string(nil), session.User.Photos...)
		session.User = &user
	}
	return session
}
