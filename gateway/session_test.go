package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/igo95862/DiscordBot-lib-sub000/gateway"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/testutil"
	"github.com/rs/zerolog"
)

const slowBeat = time.Minute

type identifyPayload struct {
	Token   string `json:"token"`
	Intents int    `json:"intents"`
}

type resumePayload struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       *int64 `json:"seq"`
}

func newTestSession(d *testutil.FakeDialer) *gateway.Session {
	return gateway.New(gateway.Config{
		URL:                 "wss://gateway.test",
		Token:               "tok",
		Intents:             513,
		ReconnectDelay:      10 * time.Millisecond,
		InvalidSessionDelay: 10 * time.Millisecond,
		Dialer:              d,
	}, zerolog.Nop())
}

func start(t *testing.T, s *gateway.Session) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()
	return errc
}

func wait(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

// handlerChan records dispatch types in arrival order.
func handlerChan(s *gateway.Session) <-chan gateway.Envelope {
	ch := make(chan gateway.Envelope, 64)
	s.OnDispatch(func(env gateway.Envelope) { ch <- env })
	return ch
}

func waitType(t *testing.T, ch <-chan gateway.Envelope, typ string) gateway.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-ch:
			if env.Type == typ {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s dispatch", typ)
			return gateway.Envelope{}
		}
	}
}

func ready(sessionID string) map[string]any {
	return map[string]any{
		"v":                  10,
		"session_id":         sessionID,
		"resume_gateway_url": "wss://resume.test",
		"user":               map[string]any{"id": "1", "username": "bot"},
		"guilds":             []any{},
	}
}

// TestSession_Identify verifies that a fresh session identifies after hello.
func TestSession_Identify(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	errc := start(t, s)

	conn := d.Next(t)
	conn.Hello(t, slowBeat)

	f := conn.NextSent(t)
	if f.Op != int(gateway.OpIdentify) {
		t.Fatalf("expected identify, got op %d", f.Op)
	}
	var p identifyPayload
	f.Decode(t, &p)
	if p.Token != "tok" || p.Intents != 513 {
		t.Errorf("unexpected identify payload: %+v", p)
	}

	s.Stop()
	if err := wait(t, errc); err != nil {
		t.Fatalf("expected clean stop, got: %v", err)
	}
}

// TestSession_ResumeAfterDrop verifies that a dropped connection reconnects
// and resumes with the captured session id and sequence.
func TestSession_ResumeAfterDrop(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	events := handlerChan(s)
	errc := start(t, s)

	conn1 := d.Next(t)
	conn1.Hello(t, slowBeat)
	conn1.NextSentOp(t, int(gateway.OpIdentify))
	conn1.Dispatch(t, 1, "READY", ready("abc"))
	conn1.Dispatch(t, 2, "MESSAGE_CREATE", map[string]any{"id": "m1", "channel_id": "c1"})
	waitType(t, events, "MESSAGE_CREATE")

	conn1.Drop()

	conn2 := d.Next(t)
	conn2.Hello(t, slowBeat)
	f := conn2.NextSent(t)
	if f.Op != int(gateway.OpResume) {
		t.Fatalf("expected resume, got op %d", f.Op)
	}
	var p resumePayload
	f.Decode(t, &p)
	if p.SessionID != "abc" {
		t.Errorf("resume session_id = %q, want abc", p.SessionID)
	}
	if p.Seq == nil || *p.Seq != 2 {
		t.Errorf("resume seq = %v, want 2", p.Seq)
	}

	urls := d.URLs()
	if len(urls) != 2 || urls[0] != "wss://gateway.test" || urls[1] != "wss://resume.test" {
		t.Errorf("dialed urls = %v", urls)
	}

	s.Stop()
	if err := wait(t, errc); err != nil {
		t.Fatalf("expected clean stop, got: %v", err)
	}
}

// TestSession_InvalidSessionReidentifies verifies op 9 leads to a fresh
// identify on the same connection and a new session id.
func TestSession_InvalidSessionReidentifies(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	events := handlerChan(s)
	errc := start(t, s)

	conn := d.Next(t)
	conn.Hello(t, slowBeat)
	conn.NextSentOp(t, int(gateway.OpIdentify))
	conn.Dispatch(t, 1, "READY", ready("abc"))
	waitType(t, events, "READY")
	if got := s.SessionID(); got != "abc" {
		t.Fatalf("session id = %q, want abc", got)
	}

	conn.Op(t, int(gateway.OpInvalidSession), false)

	f := conn.NextSent(t)
	if f.Op != int(gateway.OpIdentify) {
		t.Fatalf("expected identify after invalid session, got op %d", f.Op)
	}
	if got := s.SessionID(); got != "" {
		t.Errorf("session id after invalid session = %q, want empty", got)
	}

	conn.Dispatch(t, 1, "READY", ready("def"))
	waitType(t, events, "READY")
	if got := s.SessionID(); got != "def" {
		t.Errorf("session id = %q, want def", got)
	}

	s.Stop()
	_ = wait(t, errc)
}

// TestSession_HeartbeatRequest verifies op 1 is answered immediately with
// the last sequence.
func TestSession_HeartbeatRequest(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	events := handlerChan(s)
	errc := start(t, s)

	conn := d.Next(t)
	conn.Hello(t, slowBeat)
	conn.NextSentOp(t, int(gateway.OpIdentify))
	conn.Dispatch(t, 7, "GUILD_CREATE", map[string]any{"id": "g"})
	waitType(t, events, "GUILD_CREATE")

	conn.Op(t, int(gateway.OpHeartbeat), nil)
	f := conn.NextSentOp(t, int(gateway.OpHeartbeat))
	var seq int64
	f.Decode(t, &seq)
	if seq != 7 {
		t.Errorf("heartbeat seq = %d, want 7", seq)
	}
	if got, ok := s.Sequence(); !ok || got != 7 {
		t.Errorf("Sequence() = (%d, %v), want (7, true)", got, ok)
	}

	s.Stop()
	_ = wait(t, errc)
}

// TestSession_ReconnectRequest verifies op 7 drops the connection and resumes.
func TestSession_ReconnectRequest(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	events := handlerChan(s)
	errc := start(t, s)

	conn1 := d.Next(t)
	conn1.Hello(t, slowBeat)
	conn1.NextSentOp(t, int(gateway.OpIdentify))
	conn1.Dispatch(t, 1, "READY", ready("abc"))
	waitType(t, events, "READY")
	conn1.Op(t, int(gateway.OpReconnect), nil)

	conn2 := d.Next(t)
	if code := conn1.CloseCode(); code == websocket.CloseNormalClosure {
		t.Errorf("resumable drop must not use a normal close, got %d", code)
	}
	conn2.Hello(t, slowBeat)
	if f := conn2.NextSent(t); f.Op != int(gateway.OpResume) {
		t.Fatalf("expected resume, got op %d", f.Op)
	}

	s.Stop()
	_ = wait(t, errc)
}

// TestSession_SessionVoidingCloseCode verifies 4009 reconnects with identify.
func TestSession_SessionVoidingCloseCode(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	events := handlerChan(s)
	errc := start(t, s)

	conn1 := d.Next(t)
	conn1.Hello(t, slowBeat)
	conn1.NextSentOp(t, int(gateway.OpIdentify))
	conn1.Dispatch(t, 1, "READY", ready("abc"))
	waitType(t, events, "READY")
	conn1.CloseWith(gateway.CloseSessionTimedOut, "session timed out")

	conn2 := d.Next(t)
	conn2.Hello(t, slowBeat)
	if f := conn2.NextSent(t); f.Op != int(gateway.OpIdentify) {
		t.Fatalf("expected identify, got op %d", f.Op)
	}
	if urls := d.URLs(); urls[len(urls)-1] != "wss://gateway.test" {
		t.Errorf("identify must use the base url, dialed %v", urls)
	}

	s.Stop()
	_ = wait(t, errc)
}

// TestSession_FatalCloseCode verifies authentication failure ends Run.
func TestSession_FatalCloseCode(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	errc := start(t, s)

	conn := d.Next(t)
	conn.Hello(t, slowBeat)
	conn.NextSentOp(t, int(gateway.OpIdentify))
	conn.CloseWith(gateway.CloseAuthenticationFailed, "Authentication failed.")

	err := wait(t, errc)
	var ce *gateway.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CloseError, got: %v", err)
	}
	if ce.Code != gateway.CloseAuthenticationFailed || !ce.Fatal() {
		t.Errorf("unexpected close error: %+v", ce)
	}
	if s.State() != gateway.StateTerminated {
		t.Errorf("state = %s, want terminated", s.State())
	}
}

// TestSession_MalformedFrameIsFatal verifies undecodable frames end Run.
func TestSession_MalformedFrameIsFatal(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	errc := start(t, s)

	conn := d.Next(t)
	conn.Hello(t, slowBeat)
	conn.NextSentOp(t, int(gateway.OpIdentify))
	conn.Push([]byte("{not json"))

	err := wait(t, errc)
	var pe *gateway.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got: %v", err)
	}
}

// TestSession_DialFailureRetried verifies failed dials are retried.
func TestSession_DialFailureRetried(t *testing.T) {
	d := testutil.NewFakeDialer()
	d.FailNext(2)
	s := newTestSession(d)
	errc := start(t, s)

	conn := d.Next(t)
	conn.Hello(t, slowBeat)
	conn.NextSentOp(t, int(gateway.OpIdentify))
	if n := len(d.URLs()); n != 3 {
		t.Errorf("dial attempts = %d, want 3", n)
	}

	s.Stop()
	_ = wait(t, errc)
}

// TestSession_ZombieConnection verifies missing heartbeat acks force a reconnect.
func TestSession_ZombieConnection(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	errc := start(t, s)

	conn1 := d.Next(t)
	conn1.Hello(t, 20*time.Millisecond)
	conn1.NextSentOp(t, int(gateway.OpIdentify))
	conn1.NextSentOp(t, int(gateway.OpHeartbeat))

	conn2 := d.Next(t)
	select {
	case <-conn1.Closed():
	case <-time.After(time.Second):
		t.Error("zombie connection was not closed")
	}
	conn2.Hello(t, slowBeat)
	conn2.NextSent(t)

	s.Stop()
	_ = wait(t, errc)
}

// TestSession_StopClearsSession verifies a clean end closes normally and
// forgets the session.
func TestSession_StopClearsSession(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	events := handlerChan(s)
	errc := start(t, s)

	conn := d.Next(t)
	conn.Hello(t, slowBeat)
	conn.NextSentOp(t, int(gateway.OpIdentify))
	conn.Dispatch(t, 3, "READY", ready("abc"))
	waitType(t, events, "READY")
	if s.State() != gateway.StateActive {
		t.Errorf("state = %s, want active", s.State())
	}

	s.Stop()
	if err := wait(t, errc); err != nil {
		t.Fatalf("expected clean stop, got: %v", err)
	}
	if code := conn.CloseCode(); code != websocket.CloseNormalClosure {
		t.Errorf("close code = %d, want %d", code, websocket.CloseNormalClosure)
	}
	if s.SessionID() != "" {
		t.Errorf("session id survived Stop: %q", s.SessionID())
	}
	if _, ok := s.Sequence(); ok {
		t.Error("sequence survived Stop")
	}
	if s.State() != gateway.StateTerminated {
		t.Errorf("state = %s, want terminated", s.State())
	}
}

// TestSession_RunTwice verifies a running session rejects a second Run.
func TestSession_RunTwice(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	errc := start(t, s)
	d.Next(t)

	if err := s.Run(context.Background()); err == nil {
		t.Error("expected error from concurrent Run")
	}

	s.Stop()
	_ = wait(t, errc)
}

// TestSession_StopBeforeRun verifies a Stop issued before Run starts is not
// lost: Run returns cleanly without dialing.
func TestSession_StopBeforeRun(t *testing.T) {
	d := testutil.NewFakeDialer()
	s := newTestSession(d)
	s.Stop()

	errc := start(t, s)
	if err := wait(t, errc); err != nil {
		t.Fatalf("expected clean return, got: %v", err)
	}
	if urls := d.URLs(); len(urls) != 0 {
		t.Errorf("expected no dial, got: %v", urls)
	}
	if st := s.State(); st != gateway.StateTerminated {
		t.Errorf("expected terminated state, got: %v", st)
	}

	// The pending stop is consumed; a later Run connects normally.
	errc = start(t, s)
	d.Next(t)
	s.Stop()
	if err := wait(t, errc); err != nil {
		t.Fatalf("expected clean stop, got: %v", err)
	}
}
