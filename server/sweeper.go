package server

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/kmcneish/go-studio-server/sessions"
)

// StartSessionSweeper runs a periodic job that removes expired sessions
// from the repo. The returned cron should be stopped on shutdown.
func StartSessionSweeper(repo sessions.Repo) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("@every 10m", func() {
		removed, err := repo.DeleteExpired(time.Now())
		if err != nil {
			log.Error().Err(err).Msg("session sweep failed")
			return
		}
		if removed > 0 {
			log.Info().Int("removed", removed).Msg("swept expired sessions")
		}
	})
	if err != nil {
		// The schedule is a constant; this cannot fail at runtime.
		log.Error().Err(err).Msg("failed to schedule session sweep")
		return c
	}
	c.Start()
	return c
}
