package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docverify/docverify-backend/pkg/logger"
)

// Janitor purges expired records on a cron schedule
type Janitor struct {
	cron    *cron.Cron
	ttl     time.Duration
	purgers map[string]Purger
	logger  *logger.Logger
	now     func() time.Time
}

// NewJanitor creates a janitor that removes records older than ttl
func NewJanitor(ttl time.Duration, log *logger.Logger) *Janitor {
	return &Janitor{
		cron:    cron.New(),
		ttl:     ttl,
		purgers: make(map[string]Purger),
		logger:  log.WithComponent("janitor"),
		now:     time.Now,
	}
}

// Register adds a store to every sweep
func (j *Janitor) Register(kind string, p Purger) {
	j.purgers[kind] = p
}

// Start schedules sweeps. schedule accepts standard cron specs and
// descriptors such as "@every 10m".
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	j.logger.Info().Str("schedule", schedule).Dur("ttl", j.ttl).Msg("record janitor started")
	return nil
}

// Stop waits for a running sweep to finish
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep purges every registered store once and returns the number of
// records removed
func (j *Janitor) Sweep(ctx context.Context) int {
	cutoff := j.now().Add(-j.ttl)
	total := 0
	for kind, p := range j.purgers {
		n, err := p.Purge(ctx, cutoff)
		if err != nil {
			j.logger.Error().Err(err).Str("kind", kind).Msg("failed to purge expired records")
			continue
		}
		if n > 0 {
			j.logger.Debug().Str("kind", kind).Int("removed", n).Msg("purged expired records")
		}
		total += n
	}
	return total
}
