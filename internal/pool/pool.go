// Package pool runs journal writes off the gateway path on a bounded set of
// workers.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/internal/metrics"
	"github.com/rs/zerolog"
)

// Job is one dispatch waiting to be written to the journal.
type Job struct {
	Action     string // "append"
	Type       string // dispatch type, e.g. "MESSAGE_CREATE"
	Sequence   int64  // gateway sequence number
	Data       []byte
	ReceivedAt time.Time
}

// JobHandler writes a single Job. A plain error is retried; wrap it with
// Permanent to give up at once.
type JobHandler func(ctx context.Context, job Job) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Config holds worker pool configuration.
type Config struct {
	Workers    int
	QueueDepth int
	MaxRetries int
	RetryBase  time.Duration
	// MaxBackoff caps the wait between attempts. Default 10s.
	MaxBackoff time.Duration
	// MaxAge drops jobs received longer ago than this instead of writing
	// them. Zero keeps every job.
	MaxAge time.Duration
}

// Pool is a fixed set of workers draining a bounded job channel.
type Pool struct {
	cfg      Config
	jobs     chan Job
	handler  JobHandler
	log      zerolog.Logger
	wg       sync.WaitGroup
	stopOnce sync.Once
	now      func() time.Time
}

// New creates a Pool with the given config and handler.
func New(cfg Config, handler JobHandler, log zerolog.Logger) (*Pool, error) {
	if cfg.Workers < 1 || cfg.Workers > 64 {
		return nil, fmt.Errorf("POOL_WORKERS must be 1–64, got %d", cfg.Workers)
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 4096
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &Pool{
		cfg:     cfg,
		jobs:    make(chan Job, cfg.QueueDepth),
		handler: handler,
		log:     log.With().Str("component", "pool").Logger(),
		now:     time.Now,
	}, nil
}

// Start launches the worker goroutines. ctx controls worker lifetime.
func (p *Pool) Start(ctx context.Context) {
	for i := range p.cfg.Workers {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Enqueue hands job to the workers without blocking. It reports false and
// drops the job when the queue is full.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.jobs <- job:
		metrics.JobsEnqueued.WithLabelValues(job.Action).Inc()
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		return true
	default:
		metrics.JobsDropped.WithLabelValues("buffer_full").Inc()
		p.log.Warn().Str("dispatch_type", job.Type).Int64("gateway_seq", job.Sequence).
			Int("queue_depth", cap(p.jobs)).Msg("journal queue full, dispatch not recorded")
		return false
	}
}

// Stop closes the job channel and waits for the workers to drain it.
// Enqueue must not be called after Stop.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

// Depth returns the current number of pending jobs.
func (p *Pool) Depth() int {
	return len(p.jobs)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker_id", id).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
			p.write(ctx, job, log)
		}
	}
}

// write runs the handler inline until it succeeds, fails permanently, runs
// out of attempts, or the job outlives MaxAge. Retrying inline keeps a
// failed job from being sent on a channel Stop may have closed.
func (p *Pool) write(ctx context.Context, job Job, log zerolog.Logger) {
	log = log.With().Str("dispatch_type", job.Type).Int64("gateway_seq", job.Sequence).Logger()

	for attempt := 0; ; attempt++ {
		if p.expired(job) {
			metrics.JobsDropped.WithLabelValues("expired").Inc()
			log.Warn().Time("received_at", job.ReceivedAt).Int("attempt", attempt).
				Msg("dispatch older than journal retention, not recorded")
			return
		}

		err := p.handler(ctx, job)
		if err == nil {
			metrics.JobsProcessed.WithLabelValues(job.Action, "success").Inc()
			return
		}
		if IsPermanent(err) {
			metrics.JobsProcessed.WithLabelValues(job.Action, "rejected").Inc()
			log.Error().Err(err).Msg("journal write rejected")
			return
		}
		if attempt >= p.cfg.MaxRetries {
			metrics.JobsProcessed.WithLabelValues(job.Action, "error").Inc()
			log.Error().Err(err).Int("max_retries", p.cfg.MaxRetries).Msg("journal write failed, giving up")
			return
		}

		metrics.JobsProcessed.WithLabelValues(job.Action, "retried").Inc()
		wait := p.backoff(attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", wait).Msg("journal write failed, retrying")
		select {
		case <-ctx.Done():
			metrics.JobsProcessed.WithLabelValues(job.Action, "error").Inc()
			return
		case <-time.After(wait):
		}
	}
}

func (p *Pool) expired(job Job) bool {
	return p.cfg.MaxAge > 0 && !job.ReceivedAt.IsZero() && p.now().Sub(job.ReceivedAt) > p.cfg.MaxAge
}

// backoff doubles RetryBase per failed attempt up to MaxBackoff.
func (p *Pool) backoff(failures int) time.Duration {
	d := p.cfg.RetryBase
	for range failures {
		d *= 2
		if d >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	return min(d, p.cfg.MaxBackoff)
}
