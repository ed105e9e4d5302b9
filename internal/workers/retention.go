package workers

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/open-builders/giveaway-bot/internal/common/logger"
	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
	"github.com/open-builders/giveaway-bot/internal/repository/memory"
)

// RetentionSweeper deletes finished giveaways once they are older than the
// retention window. Ended records are kept until then so they can be rerolled.
type RetentionSweeper struct {
	registry  *memory.Registry
	retention time.Duration
	schedule  string
	now       func() time.Time
	onRemove  func()
	cron      *cron.Cron
	logger    zerolog.Logger
}

func NewRetentionSweeper(reg *memory.Registry, retention time.Duration, schedule string, onRemove func()) *RetentionSweeper {
	if onRemove == nil {
		onRemove = func() {}
	}
	return &RetentionSweeper{
		registry:  reg,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
		onRemove:  onRemove,
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:    logger.Component("retention_sweeper"),
	}
}

// Sweep removes expired records now and returns their IDs.
func (s *RetentionSweeper) Sweep() []string {
	cutoff := s.now().Add(-s.retention)
	removed := s.registry.RemoveWhere(func(g *dg.Giveaway) bool {
		if g.IsActive() {
			return false
		}
		finished := g.EndedAt
		if finished.IsZero() {
			finished = g.EndTime
		}
		return finished.Before(cutoff)
	})
	if len(removed) > 0 {
		s.onRemove()
		s.logger.Info().Int("removed", len(removed)).Time("cutoff", cutoff).Msg("Old giveaways removed")
	}
	return removed
}

// Start registers the sweep on the cron schedule and starts the scheduler.
func (s *RetentionSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Dur("retention", s.retention).Msg("Retention sweeper started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	<-s.cron.Stop().Done()
}
