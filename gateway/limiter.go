package gateway

import (
	"context"
	"time"

	"github.com/sasha-s/go-csync"
)

// sendLimiter caps outbound frames per minute. Holding it also serializes
// writes on the connection: callers Wait, write, then Unlock.
type sendLimiter struct {
	mu csync.Mutex

	perMinute int
	remaining int
	reset     time.Time
}

func newSendLimiter(perMinute int) *sendLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	return &sendLimiter{perMinute: perMinute}
}

// Wait acquires the limiter, sleeping for the next window when the current
// one is spent. On error the limiter is not held.
func (l *sendLimiter) Wait(ctx context.Context) error {
	if err := l.mu.CLock(ctx); err != nil {
		return err
	}

	now := time.Now()
	if !l.reset.After(now) {
		l.reset = now.Add(time.Minute)
		l.remaining = l.perMinute
	}

	if l.remaining == 0 {
		timer := time.NewTimer(l.reset.Sub(now))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			l.mu.Unlock()
			return ctx.Err()
		case <-timer.C:
		}
		l.reset = time.Now().Add(time.Minute)
		l.remaining = l.perMinute
	}

	l.remaining--
	return nil
}

func (l *sendLimiter) Unlock() {
	l.mu.Unlock()
}
