package sessions

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	interrors "github.com/kmcneish/go-studio-server/internal/errors"
)

// SQLiteRepo persists sessions to a local SQLite database so logins
// survive process restarts. Single-writer access is enforced by SQLite
// itself; the session payload is stored as JSON.
type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo opens (and migrates) the session database at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate session db: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Upsert(session Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		session.ID, string(data), session.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) Get(sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("session ID is required")
	}

	var data string
	err := r.db.QueryRow(`SELECT data FROM sessions WHERE id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, interrors.ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.PendingOAuthStates == nil {
		session.PendingOAuthStates = PendingOAuthStates{}
	}
	return session, nil
}

func (r *SQLiteRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) DeleteExpired(now time.Time) (int, error) {
	res, err := r.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the underlying database.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}
