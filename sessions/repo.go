package sessions

import "time"

type Repo interface {
	Upsert(session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error

	// DeleteExpired removes every session past its expiry and returns
	// how many were removed.
	DeleteExpired(now time.Time) (int, error)
}
