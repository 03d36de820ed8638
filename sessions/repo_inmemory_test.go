package sessions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	interrors "github.com/kmcneish/go-studio-server/internal/errors"
	"github.com/kmcneish/go-studio-server/sessions"
)

func TestInMemoryRepoRoundTrip(t *testing.T) {
	repo := sessions.NewInMemoryRepo()

	session := sessions.New(time.Hour)
	session.PendingOAuthStates.Issue("google", "token-1")
	require.NoError(t, repo.Upsert(session))

	loaded, err := repo.Get(session.ID)
	require.NoError(t, err)
	require.Equal(t, session.ID, loaded.ID)
	require.Equal(t, "token-1", loaded.PendingOAuthStates["google"])
}

func TestInMemoryRepoGetUnknown(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	_, err := repo.Get("nope")
	require.ErrorIs(t, err, interrors.ErrSessionNotFound)
}

func TestInMemoryRepoIsolatesCopies(t *testing.T) {
	repo := sessions.NewInMemoryRepo()

	session := sessions.New(time.Hour)
	session.PendingOAuthStates.Issue("google", "token-1")
	require.NoError(t, repo.Upsert(session))

	// Mutating a loaded copy must not leak into the stored session.
	loaded, err := repo.Get(session.ID)
	require.NoError(t, err)
	loaded.PendingOAuthStates.Consume("google", "token-1")

	reloaded, err := repo.Get(session.ID)
	require.NoError(t, err)
	require.Equal(t, "token-1", reloaded.PendingOAuthStates["google"])
}

func TestInMemoryRepoDelete(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	session := sessions.New(time.Hour)
	require.NoError(t, repo.Upsert(session))
	require.NoError(t, repo.Delete(session.ID))

	_, err := repo.Get(session.ID)
	require.ErrorIs(t, err, interrors.ErrSessionNotFound)
}

func TestInMemoryRepoDeleteExpired(t *testing.T) {
	repo := sessions.NewInMemoryRepo()

	fresh := sessions.New(time.Hour)
	stale := sessions.New(-time.Minute)
	require.NoError(t, repo.Upsert(fresh))
	require.NoError(t, repo.Upsert(stale))

	removed, err := repo.DeleteExpired(time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = repo.Get(stale.ID)
	require.ErrorIs(t, err, interrors.ErrSessionNotFound)
	_, err = repo.Get(fresh.ID)
	require.NoError(t, err)
}
