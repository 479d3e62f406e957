package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		w.Header().Set("X-Content-Type", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
}

// TestTransports_RoundTrip verifies both engines send method, headers and body
// and return status, headers and body.
func TestTransports_RoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	engines := map[string]Transport{
		"nethttp":  NewHTTPTransportWithClient(srv.Client()),
		"fasthttp": NewFastHTTPTransport(TransportConfig{}),
	}
	for name, tr := range engines {
		t.Run(name, func(t *testing.T) {
			h := make(http.Header)
			h.Set("Authorization", "Bot abc")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			resp, err := tr.Do(ctx, &Request{
				Method: http.MethodPost,
				URL:    srv.URL + "/channels/1/messages",
				Header: h,
				Body:   []byte(`{"content":"hi"}`),
			})
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("status = %d", resp.StatusCode)
			}
			if got := resp.Header.Get("X-Method"); got != http.MethodPost {
				t.Errorf("method = %q", got)
			}
			if got := resp.Header.Get("X-Auth"); got != "Bot abc" {
				t.Errorf("auth = %q", got)
			}
			if got := resp.Header.Get("X-Content-Type"); got != "application/json" {
				t.Errorf("content type = %q", got)
			}
			if string(resp.Body) != `{"content":"hi"}` {
				t.Errorf("body = %s", resp.Body)
			}
		})
	}
}

// TestFastHTTPTransport_CancelledContext verifies a done ctx short-circuits the call.
func TestFastHTTPTransport_CancelledContext(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFastHTTPTransport(TransportConfig{}).Do(ctx, &Request{Method: http.MethodGet, URL: srv.URL}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
