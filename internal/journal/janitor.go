package journal

import (
	"context"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/internal/metrics"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
	"github.com/rs/zerolog"
)

// DepthReporter reports pending work. *pool.Pool implements it.
type DepthReporter interface {
	Depth() int
}

// Janitor performs periodic housekeeping: pruning records past their TTL,
// updating gauges.
type Janitor struct {
	store    storage.Store
	jobs     DepthReporter
	interval time.Duration
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewJanitor creates a Janitor. jobs may be nil.
func NewJanitor(store storage.Store, jobs DepthReporter, interval, ttl time.Duration, log zerolog.Logger) *Janitor {
	return &Janitor{
		store:    store,
		jobs:     jobs,
		interval: interval,
		ttl:      ttl,
		log:      log.With().Str("component", "janitor").Logger(),
		now:      time.Now,
	}
}

// Run executes the janitor loop until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.tick()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.tick()
		}
	}
}

func (j *Janitor) tick() {
	pruned, err := j.store.PruneOlderThan(j.now().Add(-j.ttl))
	if err != nil {
		j.log.Warn().Err(err).Msg("janitor: prune expired records failed")
	} else if pruned > 0 {
		j.log.Info().Int("count", pruned).Msg("janitor: pruned expired records")
	}

	if n, err := j.store.Count(); err != nil {
		j.log.Warn().Err(err).Msg("janitor: count records failed")
	} else {
		metrics.JournalRecords.Set(float64(n))
	}

	// Update DB size gauge
	size, err := j.store.SizeBytes()
	if err != nil {
		j.log.Warn().Err(err).Msg("janitor: read db size failed")
	} else {
		metrics.DBSizeBytes.Set(float64(size))
	}

	// Update queue depth gauge
	if j.jobs != nil {
		metrics.WorkerQueueDepth.Set(float64(j.jobs.Depth()))
	}

	j.log.Debug().Msg("janitor: tick complete")
}
