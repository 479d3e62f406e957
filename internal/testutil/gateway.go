package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/gateway"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Frame is an outbound gateway frame as the fake server sees it.
type Frame struct {
	Op int                 `json:"op"`
	D  jsoniter.RawMessage `json:"d"`
}

// FakeDialer implements gateway.Dialer. Every successful Dial creates a
// FakeConn that the test retrieves with Next.
type FakeDialer struct {
	mu       sync.Mutex
	urls     []string
	failures int
	conns    chan *FakeConn
}

// NewFakeDialer returns a dialer with no queued connections.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{conns: make(chan *FakeConn, 16)}
}

// FailNext makes the next n dials fail.
func (d *FakeDialer) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

func (d *FakeDialer) Dial(ctx context.Context, url string) (gateway.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	if d.failures > 0 {
		d.failures--
		d.mu.Unlock()
		return nil, errors.New("dial refused")
	}
	d.mu.Unlock()

	c := NewFakeConn()
	select {
	case d.conns <- c:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c, nil
}

// URLs returns every URL dialed so far, in order.
func (d *FakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// Next waits for the next dialed connection.
func (d *FakeDialer) Next(t testing.TB) *FakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gateway dial")
		return nil
	}
}

// FakeConn implements gateway.Conn. The test plays the server: Push feeds
// frames to ReadFrame and NextSent returns frames the session wrote.
type FakeConn struct {
	in   chan []byte
	sent chan Frame

	closeOnce sync.Once
	closed    chan struct{}

	mu        sync.Mutex
	readErr   error
	closeCode int
}

// NewFakeConn returns an open connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		in:     make(chan []byte, 64),
		sent:   make(chan Frame, 256),
		closed: make(chan struct{}),
	}
}

func (c *FakeConn) ReadFrame() ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.readErr
	}
}

func (c *FakeConn) WriteFrame(data []byte) error {
	select {
	case <-c.closed:
		return fmt.Errorf("%w: write on closed conn", gateway.ErrClosed)
	default:
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.sent <- f
	return nil
}

func (c *FakeConn) Close(code int) error {
	c.shutdown(code, fmt.Errorf("%w: closed locally", gateway.ErrClosed))
	return nil
}

func (c *FakeConn) shutdown(code int, readErr error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.readErr = readErr
		c.mu.Unlock()
		close(c.closed)
	})
}

// CloseCode returns the code of the first Close, or 0 while open.
func (c *FakeConn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Closed is closed once the connection is shut down from either side.
func (c *FakeConn) Closed() <-chan struct{} { return c.closed }

// Push queues a raw inbound frame.
func (c *FakeConn) Push(raw []byte) {
	c.in <- raw
}

// PushJSON queues v encoded as an inbound frame.
func (c *FakeConn) PushJSON(t testing.TB, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	c.Push(raw)
}

// Hello queues the opening hello frame.
func (c *FakeConn) Hello(t testing.TB, interval time.Duration) {
	c.PushJSON(t, map[string]any{"op": 10, "d": map[string]any{"heartbeat_interval": interval.Milliseconds()}})
}

// Dispatch queues an op 0 frame.
func (c *FakeConn) Dispatch(t testing.TB, seq int64, typ string, data any) {
	c.PushJSON(t, map[string]any{"op": 0, "s": seq, "t": typ, "d": data})
}

// Op queues a bare control frame.
func (c *FakeConn) Op(t testing.TB, op int, data any) {
	c.PushJSON(t, map[string]any{"op": op, "d": data})
}

// Drop simulates a network failure: reads fail with gateway.ErrClosed.
func (c *FakeConn) Drop() {
	c.shutdown(0, fmt.Errorf("%w: connection reset", gateway.ErrClosed))
}

// CloseWith simulates a server close frame.
func (c *FakeConn) CloseWith(code int, reason string) {
	c.shutdown(code, &gateway.CloseError{Code: code, Reason: reason})
}

// NextSent waits for the next frame written by the session.
func (c *FakeConn) NextSent(t testing.TB) Frame {
	t.Helper()
	select {
	case f := <-c.sent:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return Frame{}
	}
}

// NextSentOp skips frames until one with op arrives.
func (c *FakeConn) NextSentOp(t testing.TB, op int) Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-c.sent:
			if f.Op == op {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for op %d", op)
			return Frame{}
		}
	}
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(t testing.TB, v any) {
	t.Helper()
	if err := json.Unmarshal(f.D, v); err != nil {
		t.Fatalf("decode op %d payload: %v", f.Op, err)
	}
}
