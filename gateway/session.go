package gateway

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/metrics"
	"github.com/igo95862/DiscordBot-lib-sub000/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultURL is the gateway endpoint used when Config.URL is empty.
const DefaultURL = "wss://gateway.discord.gg"

// closeResumable is sent when dropping a connection we intend to resume;
// a normal closure would invalidate the session server-side.
const closeResumable = 4000

// State is the connection lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHello
	StateIdentifying
	StateResuming
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateIdentifying:
		return "identifying"
	case StateResuming:
		return "resuming"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// EventHandler receives dispatch envelopes from the receive loop. It must
// not block: hand the envelope off and return.
type EventHandler func(Envelope)

// Config holds session parameters. Zero values fall back to defaults.
type Config struct {
	// URL is the gateway endpoint. Default DefaultURL.
	URL     string
	Token   string
	Intents int
	// Properties default to the runtime OS and the library name.
	Properties Properties
	// Compress asks the server for zlib-compressed payloads.
	Compress bool
	// ReconnectDelay is the pause after a lost connection. Default 5s.
	ReconnectDelay time.Duration
	// InvalidSessionDelay is the pause before re-identifying. Default 2s.
	InvalidSessionDelay time.Duration
	// SendPerMinute caps outbound frames. Default 120.
	SendPerMinute int
	// Dialer defaults to WebsocketDialer.
	Dialer Dialer
}

// Session owns one logical gateway session across any number of
// connections. The session id and last sequence survive reconnects and are
// cleared only when Run ends cleanly, on an invalid-session notice, or on a
// close code that voids the session.
type Session struct {
	cfg    Config
	dialer Dialer
	log    zerolog.Logger

	running atomic.Bool

	mu          sync.Mutex
	cancel      context.CancelFunc
	stopPending bool // Stop arrived while no Run had installed cancel
	state     State
	token     string
	sessionID string
	resumeURL string
	seq       int64
	hasSeq    bool
	lastAck   time.Time
	handler   EventHandler
}

// New returns a Session in the Disconnected state. Call Run to connect.
func New(cfg Config, log zerolog.Logger) *Session {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.InvalidSessionDelay == 0 {
		cfg.InvalidSessionDelay = 2 * time.Second
	}
	if cfg.Properties == (Properties{}) {
		cfg.Properties = Properties{OS: runtime.GOOS, Browser: "discordbot", Device: "discordbot"}
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	return &Session{
		cfg:    cfg,
		dialer: dialer,
		token:  cfg.Token,
		log:    log.With().Str("component", "gateway").Logger(),
	}
}

// OnDispatch registers h for dispatch envelopes, replacing any previous
// handler. A nil h detaches.
func (s *Session) OnDispatch(h EventHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// SetToken replaces the token used by the next identify or resume.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// SessionID returns the id captured from READY, or "" when there is none.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Sequence returns the last sequence number seen, if any.
func (s *Session) Sequence() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, s.hasSeq
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop ends Run after its current step. The connection is closed normally
// and the session id and sequence are cleared. A Stop that lands before Run
// has started makes that Run return at once.
func (s *Session) Stop() {
	s.running.Store(false)
	s.mu.Lock()
	cancel := s.cancel
	if cancel == nil {
		s.stopPending = true
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run connects and keeps the session alive until Stop is called or ctx ends,
// reconnecting after every recoverable loss. It returns nil on a clean end
// and the cause on a fatal one (*CloseError, *ProtocolError, ...).
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("gateway: session already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.stopPending {
		s.stopPending = false
		s.running.Store(false)
		s.state = StateTerminated
		s.mu.Unlock()
		s.log.Info().Msg("gateway session stopped before connecting")
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	for s.running.Load() && ctx.Err() == nil {
		err := s.connect(ctx)
		if !s.running.Load() || ctx.Err() != nil {
			break
		}
		if !s.recoverable(err) {
			s.running.Store(false)
			s.setState(StateTerminated)
			s.log.Error().Err(err).Msg("gateway session failed")
			return err
		}

		metrics.GatewayDisconnects.Inc()
		s.setState(StateDisconnected)
		s.log.Warn().Err(err).Dur("retry_in", s.cfg.ReconnectDelay).Msg("gateway connection lost, reconnecting")
		if sleep(ctx, s.cfg.ReconnectDelay) != nil {
			break
		}
	}

	s.running.Store(false)
	s.mu.Lock()
	s.clearSessionLocked()
	s.state = StateTerminated
	s.cancel = nil
	s.mu.Unlock()
	s.log.Info().Msg("gateway session closed")
	return nil
}

// connect runs one connection from dial to loss.
func (s *Session) connect(ctx context.Context) error {
	s.setState(StateConnecting)
	conn, err := s.dialer.Dial(ctx, s.gatewayURL())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: dial: %v", ErrClosed, err)
	}
	limiter := newSendLimiter(s.cfg.SendPerMinute)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		code := closeResumable
		if !s.running.Load() {
			code = websocket.CloseNormalClosure
		}
		_ = conn.Close(code)
		return nil
	})
	g.Go(func() error {
		interval, err := s.handshake(gctx, conn, limiter)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return s.heartbeat(gctx, conn, limiter, interval)
		})
		return s.receive(gctx, conn, limiter)
	})
	return g.Wait()
}

// handshake waits for hello and answers with identify or resume.
func (s *Session) handshake(ctx context.Context, conn Conn, l *sendLimiter) (time.Duration, error) {
	s.setState(StateAwaitingHello)
	raw, err := conn.ReadFrame()
	if err != nil {
		return 0, err
	}
	env, err := decodeEnvelope(raw)
	if err != nil {
		return 0, err
	}
	if env.Op != OpHello {
		return 0, &ProtocolError{Reason: "expected hello, got " + env.Op.String()}
	}
	var h hello
	if err := json.Unmarshal(env.Data, &h); err != nil {
		return 0, &ProtocolError{Reason: "decode hello", Err: err}
	}
	if h.HeartbeatInterval <= 0 {
		return 0, &ProtocolError{Reason: fmt.Sprintf("invalid heartbeat interval %d", h.HeartbeatInterval)}
	}
	interval := time.Duration(h.HeartbeatInterval) * time.Millisecond

	s.mu.Lock()
	s.lastAck = time.Now()
	resuming := s.sessionID != ""
	s.mu.Unlock()

	if resuming {
		return interval, s.sendResume(ctx, conn, l)
	}
	return interval, s.sendIdentify(ctx, conn, l)
}

func (s *Session) sendIdentify(ctx context.Context, conn Conn, l *sendLimiter) error {
	s.setState(StateIdentifying)
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	metrics.GatewayConnects.WithLabelValues("identify").Inc()
	s.log.Info().Int("intents", s.cfg.Intents).Msg("identifying")
	return s.send(ctx, conn, l, OpIdentify, identify{
		Token:      token,
		Intents:    s.cfg.Intents,
		Properties: s.cfg.Properties,
		Compress:   s.cfg.Compress,
	})
}

func (s *Session) sendResume(ctx context.Context, conn Conn, l *sendLimiter) error {
	s.setState(StateResuming)
	s.mu.Lock()
	payload := resume{Token: s.token, SessionID: s.sessionID}
	if s.hasSeq {
		seq := s.seq
		payload.Sequence = &seq
	}
	s.mu.Unlock()

	metrics.GatewayConnects.WithLabelValues("resume").Inc()
	s.log.Info().Str("session_id", payload.SessionID).Msg("resuming")
	return s.send(ctx, conn, l, OpResume, payload)
}

func (s *Session) sendHeartbeat(ctx context.Context, conn Conn, l *sendLimiter) error {
	var seq *int64
	s.mu.Lock()
	if s.hasSeq {
		v := s.seq
		seq = &v
	}
	s.mu.Unlock()

	metrics.GatewayHeartbeats.Inc()
	return s.send(ctx, conn, l, OpHeartbeat, seq)
}

func (s *Session) send(ctx context.Context, conn Conn, l *sendLimiter, op Opcode, data any) error {
	payload, err := json.Marshal(frame{Op: op, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", op, err)
	}
	if err := l.Wait(ctx); err != nil {
		return err
	}
	defer l.Unlock()
	return conn.WriteFrame(payload)
}

// heartbeat beats every interval until ctx ends. Two intervals without an
// ack mean the connection is dead even though the socket is open.
func (s *Session) heartbeat(ctx context.Context, conn Conn, l *sendLimiter, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s.mu.Lock()
		last := s.lastAck
		s.mu.Unlock()
		if time.Since(last) > 2*interval {
			return errZombie
		}
		if err := s.sendHeartbeat(ctx, conn, l); err != nil {
			return err
		}
	}
}

// receive processes inbound frames strictly in arrival order.
func (s *Session) receive(ctx context.Context, conn Conn, l *sendLimiter) error {
	for {
		raw, err := conn.ReadFrame()
		if err != nil {
			return err
		}
		env, err := decodeEnvelope(raw)
		if err != nil {
			return err
		}
		if env.Sequence != nil {
			s.mu.Lock()
			s.seq = *env.Sequence
			s.hasSeq = true
			s.mu.Unlock()
		}
		metrics.GatewayFrames.WithLabelValues(env.Op.String()).Inc()

		switch env.Op {
		case OpDispatch:
			s.dispatch(env)
		case OpHeartbeat:
			if err := s.sendHeartbeat(ctx, conn, l); err != nil {
				return err
			}
		case OpHeartbeatAck:
			s.mu.Lock()
			s.lastAck = time.Now()
			s.mu.Unlock()
		case OpReconnect:
			return errReconnectRequested
		case OpInvalidSession:
			s.log.Warn().Dur("delay", s.cfg.InvalidSessionDelay).Msg("invalid session, re-identifying")
			if err := sleep(ctx, s.cfg.InvalidSessionDelay); err != nil {
				return err
			}
			s.mu.Lock()
			s.clearSessionLocked()
			s.mu.Unlock()
			if err := s.sendIdentify(ctx, conn, l); err != nil {
				return err
			}
		default:
			s.log.Debug().Stringer("op", env.Op).Msg("ignoring frame")
		}
	}
}

func (s *Session) dispatch(env Envelope) {
	switch env.Type {
	case model.EventReady:
		ready, err := model.Decode[model.Ready](env.Data)
		if err != nil {
			s.log.Warn().Err(err).Msg("malformed READY payload")
			break
		}
		s.mu.Lock()
		s.sessionID = ready.SessionID
		s.resumeURL = ready.ResumeGatewayURL
		s.state = StateActive
		s.mu.Unlock()
		s.log.Info().Str("session_id", ready.SessionID).Str("user", ready.User.Username).
			Int("guilds", len(ready.Guilds)).Msg("gateway session ready")
	case model.EventResumed:
		s.setState(StateActive)
		s.log.Info().Msg("gateway session resumed")
	}

	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(env)
	}
}

// recoverable classifies a connection's terminal error. Close codes that void
// the session clear it so the next connection identifies afresh.
func (s *Session) recoverable(err error) bool {
	if err == nil {
		return true
	}
	var ce *CloseError
	if errors.As(err, &ce) {
		if ce.Fatal() {
			return false
		}
		if ce.clearsSession() {
			s.mu.Lock()
			s.clearSessionLocked()
			s.mu.Unlock()
		}
		return true
	}
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, errReconnectRequested) ||
		errors.Is(err, errZombie)
}

func (s *Session) gatewayURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" && s.resumeURL != "" {
		return s.resumeURL
	}
	return s.cfg.URL
}

func (s *Session) clearSessionLocked() {
	s.sessionID = ""
	s.resumeURL = ""
	s.seq = 0
	s.hasSeq = false
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.log.Debug().Stringer("from", prev).Stringer("to", st).Msg("state change")
	}
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
