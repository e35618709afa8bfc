package tokencache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often expired entries are swept.
const DefaultSweepInterval = time.Hour

// Sweeper periodically removes expired cache entries. Sweeping is idempotent
// and needs no coordination with in-flight requests beyond the row-level
// atomicity of the repo's delete.
type Sweeper struct {
	repo     Repo
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper creates a Sweeper. A non-positive interval falls back to the
// default hourly schedule.
func NewSweeper(repo Repo, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{repo: repo, interval: interval, log: log}
}

// Run sweeps on a fixed ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.repo.SweepExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("swept expired upstream sessions")
	}
}
