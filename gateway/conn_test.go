package gateway

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
)

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

// TestWebsocketDialer_RoundTrip verifies query parameters, text and
// compressed binary frames, writes, and close codes over a real socket.
func TestWebsocketDialer_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	readyFrame := compress(t, []byte(`{"op":0,"t":"READY","s":1,"d":{}}`))
	received := make(chan string, 1)
	query := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query <- r.URL.RawQuery
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"op":10,"d":{"heartbeat_interval":41250}}`))
		_ = ws.WriteMessage(websocket.BinaryMessage, readyFrame)

		_, msg, err := ws.ReadMessage()
		if err == nil {
			received <- string(msg)
		}
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseAuthenticationFailed, "Authentication failed."),
			time.Now().Add(time.Second))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := WebsocketDialer{}.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer conn.Close(websocket.CloseNormalClosure)

	if q := <-query; !strings.Contains(q, "v=10") || !strings.Contains(q, "encoding=json") {
		t.Errorf("query = %q", q)
	}

	first, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("read hello: %v", err)
	}
	env, err := decodeEnvelope(first)
	if err != nil || env.Op != OpHello {
		t.Fatalf("expected hello, got %+v (%v)", env, err)
	}

	second, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("read compressed frame: %v", err)
	}
	env, err = decodeEnvelope(second)
	if err != nil || env.Type != "READY" || env.Sequence == nil || *env.Sequence != 1 {
		t.Fatalf("unexpected inflated envelope %+v (%v)", env, err)
	}

	if err := conn.WriteFrame([]byte(`{"op":1,"d":1}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := <-received; got != `{"op":1,"d":1}` {
		t.Errorf("server received %q", got)
	}

	_, err = conn.ReadFrame()
	var ce *CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CloseError, got: %v", err)
	}
	if ce.Code != CloseAuthenticationFailed || !ce.Fatal() {
		t.Errorf("unexpected close error %+v", ce)
	}
}

// TestWebsocketDialer_Unreachable verifies dial errors surface.
func TestWebsocketDialer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := (WebsocketDialer{}).Dial(ctx, url); err == nil {
		t.Fatal("expected dial error, got nil")
	}
}

func TestInflate_Corrupt(t *testing.T) {
	_, err := inflate([]byte("definitely not zlib"))
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got: %v", err)
	}
}

func TestCloseError_Classification(t *testing.T) {
	cases := []struct {
		code   int
		fatal  bool
		clears bool
	}{
		{CloseUnknownError, false, false},
		{CloseAuthenticationFailed, true, false},
		{CloseInvalidSeq, false, true},
		{CloseSessionTimedOut, false, true},
		{CloseDisallowedIntents, true, false},
		{1001, false, false},
	}
	for _, tc := range cases {
		e := &CloseError{Code: tc.code}
		if e.Fatal() != tc.fatal {
			t.Errorf("code %d Fatal = %v, want %v", tc.code, e.Fatal(), tc.fatal)
		}
		if e.clearsSession() != tc.clears {
			t.Errorf("code %d clearsSession = %v, want %v", tc.code, e.clearsSession(), tc.clears)
		}
	}
}

// TestSendLimiter_CapsPerMinute verifies the window blocks once spent.
func TestSendLimiter_CapsPerMinute(t *testing.T) {
	l := newSendLimiter(2)
	for i := range 2 {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		l.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded once the window is spent, got: %v", err)
	}

	// The limiter must be free again after a failed Wait.
	l.reset = time.Now().Add(-time.Second)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait after reset: %v", err)
	}
	l.Unlock()
}
