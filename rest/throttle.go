// Package rest serializes and rate-limits outbound REST calls per bucket.
package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/internal/metrics"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/sasha-s/go-csync"
	"github.com/valyala/fasthttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"
)

// BucketKey names a rate-limit partition. Calls sharing a key are strictly
// serialized; calls on different keys run concurrently.
type BucketKey string

// Key builds an override key for limits partitioned by resource rather than
// by endpoint, e.g. Key("member-roles", guildID).
func Key(class, resourceID string) BucketKey {
	return BucketKey(class + ":" + resourceID)
}

// Call is a deferred network operation, executed once per attempt.
type Call func(ctx context.Context) (*Response, error)

// Config holds throttle parameters. Zero values fall back to defaults.
type Config struct {
	// CallTimeout bounds each attempt. Default 10s.
	CallTimeout time.Duration
	// RetryInterval is the fixed wait before retrying a transient failure. Default 1s.
	RetryInterval time.Duration
}

// bucket is the rate-limit record for one key. remaining == -1 means unknown.
type bucket struct {
	gate      csync.Mutex
	remaining int
	reset     time.Time
}

// Throttle executes calls through per-bucket gates, honouring the limits the
// server advertises and retrying transient failures indefinitely.
type Throttle struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex // guards buckets and every bucket's remaining/reset
	buckets map[BucketKey]*bucket
}

// NewThrottle returns a Throttle with an empty bucket table.
func NewThrottle(cfg Config, log zerolog.Logger) *Throttle {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = time.Second
	}
	return &Throttle{
		cfg:     cfg,
		log:     log.With().Str("component", "throttle").Logger(),
		buckets: make(map[BucketKey]*bucket),
	}
}

// Bucket returns the current record for key; unseen keys report (-1, zero time).
func (t *Throttle) Bucket(key BucketKey) (remaining int, reset time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[key]
	if !ok {
		return -1, time.Time{}
	}
	return b.remaining, b.reset
}

func (t *Throttle) bucket(key BucketKey) *bucket {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{remaining: -1}
		t.buckets[key] = b
	}
	return b
}

// Execute runs call under key's gate and returns the JSON body, or nil for an
// empty successful response. Transient network failures and 5xx hiccups are
// retried until ctx ends; other HTTP failures surface as *HTTPError.
func (t *Throttle) Execute(ctx context.Context, key BucketKey, call Call) (jsoniter.RawMessage, error) {
	b := t.bucket(key)
	if err := b.gate.CLock(ctx); err != nil {
		return nil, err
	}
	defer b.gate.Unlock()

	for {
		if err := t.waitWindow(ctx, key, b); err != nil {
			return nil, err
		}

		resp, err := t.attempt(ctx, key, call)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !IsTransient(err) {
				return nil, err
			}
			metrics.APIRetries.WithLabelValues("network").Inc()
			t.log.Warn().Err(err).Str("bucket", string(key)).
				Dur("retry_in", t.cfg.RetryInterval).Msg("transient network failure, retrying")
			if err := sleep(ctx, t.cfg.RetryInterval); err != nil {
				return nil, err
			}
			continue
		}

		t.record(b, resp)

		switch {
		case resp.StatusCode == 429:
			wait := retryAfter(resp)
			t.mu.Lock()
			b.remaining = 0
			b.reset = time.Now().Add(wait)
			t.mu.Unlock()
			metrics.APIRetries.WithLabelValues("rate_limited").Inc()
			t.log.Warn().Str("bucket", string(key)).Dur("retry_after", wait).Msg("rate limited by server")
			continue
		case isHiccup(resp.StatusCode):
			metrics.APIRetries.WithLabelValues("server").Inc()
			t.log.Warn().Str("bucket", string(key)).Int("status", resp.StatusCode).Msg("server hiccup, retrying")
			if err := sleep(ctx, t.cfg.RetryInterval); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode >= 400:
			return nil, newHTTPError(resp)
		}

		if len(bytes.TrimSpace(resp.Body)) == 0 {
			return nil, nil
		}
		return resp.Body, nil
	}
}

// waitWindow sleeps until the bucket's reset when its quota is exhausted.
func (t *Throttle) waitWindow(ctx context.Context, key BucketKey, b *bucket) error {
	t.mu.Lock()
	remaining, reset := b.remaining, b.reset
	t.mu.Unlock()

	if remaining != 0 {
		return nil
	}
	wait := time.Until(reset)
	if wait <= 0 {
		return nil
	}
	metrics.ThrottleWaits.WithLabelValues(string(key)).Inc()
	t.log.Debug().Str("bucket", string(key)).Dur("wait", wait).Msg("bucket exhausted, waiting for reset")
	return sleep(ctx, wait)
}

func (t *Throttle) attempt(ctx context.Context, key BucketKey, call Call) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	resp, err := call(callCtx)
	elapsed := time.Since(start)

	if err != nil {
		metrics.APICalls.WithLabelValues(string(key), "error").Inc()
		return nil, err
	}
	metrics.APICalls.WithLabelValues(string(key), fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()
	metrics.APIDuration.WithLabelValues(string(key)).Observe(elapsed.Seconds())
	t.log.Debug().Str("bucket", string(key)).Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).Msg("rest response")
	return resp, nil
}

// record updates the bucket from the response headers, or marks it unknown
// when the server sent none.
func (t *Throttle) record(b *bucket, resp *Response) {
	remaining, reset, ok := parseLimitHeaders(resp)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !ok {
		b.remaining = -1
		b.reset = time.Time{}
		return
	}
	b.remaining = remaining
	b.reset = reset
}

func parseLimitHeaders(resp *Response) (int, time.Time, bool) {
	if resp.Header == nil {
		return 0, time.Time{}, false
	}
	rawRemaining := resp.Header.Get(headerRemaining)
	rawReset := resp.Header.Get(headerReset)
	if rawRemaining == "" || rawReset == "" {
		return 0, time.Time{}, false
	}
	remaining, err := strconv.Atoi(rawRemaining)
	if err != nil {
		return 0, time.Time{}, false
	}
	epoch, err := strconv.ParseFloat(rawReset, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return remaining, time.Unix(sec, nsec), true
}

// retryAfter reads the wait from a 429 response: the Retry-After header, or
// the retry_after field of the JSON body. Defaults to one second.
func retryAfter(resp *Response) time.Duration {
	if resp.Header != nil {
		if ra := resp.Header.Get(headerRetryAfter); ra != "" {
			if secs, err := strconv.ParseFloat(ra, 64); err == nil && secs >= 0 {
				return time.Duration(secs * float64(time.Second))
			}
		}
	}
	var body struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(resp.Body, &body) == nil && body.RetryAfter > 0 {
		return time.Duration(body.RetryAfter * float64(time.Second))
	}
	return time.Second
}

func isHiccup(status int) bool {
	switch status {
	case 500, 502, 503, 504:
		return true
	}
	return false
}

// IsTransient reports whether err is a network failure worth retrying:
// timeouts, resets, refused connections and truncated responses. Other
// dial failures such as an unknown host are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, fasthttp.ErrTimeout) ||
		errors.Is(err, fasthttp.ErrConnectionClosed) ||
		errors.Is(err, fasthttp.ErrDialTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
