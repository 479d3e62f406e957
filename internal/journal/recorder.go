// Package journal persists gateway dispatches to the event store and keeps
// the store bounded.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/events"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/metrics"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/pool"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
	"github.com/rs/zerolog"
)

// Source opens event subscriptions. *events.Router implements it.
type Source interface {
	SubscribeMany(ctx context.Context, types ...string) *events.Subscription
}

// Enqueuer accepts journal jobs without blocking. *pool.Pool implements it.
type Enqueuer interface {
	Enqueue(job pool.Job) bool
}

// Recorder forwards subscribed dispatches to the worker pool.
type Recorder struct {
	src   Source
	jobs  Enqueuer
	types []string
	log   zerolog.Logger

	mu  sync.Mutex
	sub *events.Subscription
}

// NewRecorder returns a Recorder for types. An empty list records every
// dispatch type.
func NewRecorder(src Source, jobs Enqueuer, types []string, log zerolog.Logger) *Recorder {
	if len(types) == 0 {
		types = []string{events.All}
	}
	return &Recorder{
		src:   src,
		jobs:  jobs,
		types: types,
		log:   log.With().Str("component", "journal").Logger(),
	}
}

// Attach opens the subscription ahead of Run so dispatches published before
// Run starts are still recorded.
func (r *Recorder) Attach(ctx context.Context) *events.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		r.sub = r.src.SubscribeMany(ctx, r.types...)
	}
	return r.sub
}

// Run subscribes and enqueues until ctx is cancelled. Full queues drop the
// event; the gateway is never slowed by journaling.
func (r *Recorder) Run(ctx context.Context) error {
	sub := r.Attach(ctx)
	defer func() {
		sub.Close()
		r.mu.Lock()
		r.sub = nil
		r.mu.Unlock()
	}()
	r.log.Info().Strs("types", r.types).Msg("journal recording")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			r.jobs.Enqueue(pool.Job{
				Action:     "append",
				Type:       ev.Type,
				Sequence:   ev.Sequence,
				Data:       []byte(ev.Data),
				ReceivedAt: time.Now(),
			})
		}
	}
}

// MakeJobHandler returns a JobHandler that appends each job to store.
func MakeJobHandler(store storage.Store, log zerolog.Logger) pool.JobHandler {
	log = log.With().Str("component", "journal").Logger()
	return func(_ context.Context, job pool.Job) error {
		seq, err := store.Append(storage.Record{
			RecordedAt: job.ReceivedAt,
			Type:       job.Type,
			GatewaySeq: job.Sequence,
			Data:       job.Data,
		})
		if errors.Is(err, storage.ErrClosed) {
			return pool.Permanent(fmt.Errorf("append %s: %w", job.Type, err))
		}
		if err != nil {
			return fmt.Errorf("append %s: %w", job.Type, err)
		}
		metrics.JournalRecords.Inc()
		log.Trace().Str("type", job.Type).Uint64("record", seq).Msg("event journaled")
		return nil
	}
}
