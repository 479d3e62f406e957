package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/client"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/config"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/testutil"
	"github.com/igo95862/DiscordBot-lib-sub000/model"
	"github.com/rs/zerolog"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DiscordToken:               "tok",
		DiscordAPIURL:              "https://api.test/v10",
		DiscordGatewayURL:          "wss://gateway.test",
		DiscordIntents:             513,
		HTTPEngine:                 "nethttp",
		HTTPCallTimeout:            time.Second,
		HTTPRetryInterval:          10 * time.Millisecond,
		GatewayReconnectDelay:      10 * time.Millisecond,
		GatewayInvalidSessionDelay: 10 * time.Millisecond,
		GatewaySendPerMinute:       120,
		GuildIDs:                   []string{"g1", "g1"},
		MessageWindow:              10,
		DataDir:                    t.TempDir(),
		JournalTTL:                 time.Hour,
		JanitorInterval:            time.Hour,
		PoolWorkers:                1,
		PoolQueueDepth:             64,
		PoolRetryBase:              time.Millisecond,
	}
}

func status(t *testing.T, h http.Handler, path string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

// TestNewDeduplicatesGuilds verifies repeated guild ids get one tracker.
func TestNewDeduplicatesGuilds(t *testing.T) {
	b, err := New(testConfig(t), zerolog.Nop(), client.WithDialer(testutil.NewFakeDialer()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(b.order) != 1 || b.Guild("g1") == nil {
		t.Errorf("expected one tracker for g1, got: %v", b.order)
	}
	if b.Guild("g2") != nil {
		t.Error("expected nil for an unconfigured guild")
	}
	if b.store != nil || b.pool != nil {
		t.Error("expected no journal when disabled")
	}
}

// TestUserAgentCarriesVersion verifies the default User-Agent reports the
// binary version and that DISCORD_USER_AGENT overrides it.
func TestUserAgentCarriesVersion(t *testing.T) {
	prev := BinaryVersion
	BinaryVersion = "1.2.3"
	t.Cleanup(func() { BinaryVersion = prev })

	tests := []struct {
		name     string
		override string
		want     string
	}{
		{"default", "", "DiscordBot (https://github.com/igo95862/DiscordBot-lib-sub000, 1.2.3)"},
		{"override", "custom-agent/9", "custom-agent/9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.DiscordUserAgent = tt.override
			ft := testutil.NewFakeTransport()
			ft.On(http.MethodGet, "/v10/users/@me", http.StatusOK, model.User{ID: "bot"})

			b, err := New(cfg, zerolog.Nop(), client.WithTransport(ft), client.WithDialer(testutil.NewFakeDialer()))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if _, err := b.Client().GetCurrentUser(context.Background()); err != nil {
				t.Fatalf("GetCurrentUser: %v", err)
			}
			calls := ft.Calls()
			if len(calls) != 1 {
				t.Fatalf("expected 1 call, got: %d", len(calls))
			}
			if got := calls[0].Header.Get("User-Agent"); got != tt.want {
				t.Errorf("expected User-Agent %q, got: %q", tt.want, got)
			}
		})
	}
}

// TestHealthEndpoints verifies liveness is unconditional and readiness waits
// for the gateway.
func TestHealthEndpoints(t *testing.T) {
	b, err := New(testConfig(t), zerolog.Nop(), client.WithDialer(testutil.NewFakeDialer()))
	if err != nil {
		t.Fatal(err)
	}
	h := b.healthHandler()
	if code := status(t, h, "/healthz"); code != http.StatusOK {
		t.Errorf("expected /healthz 200, got: %d", code)
	}
	if code := status(t, h, "/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("expected /readyz 503 before connecting, got: %d", code)
	}
}

// TestMetricsEndpoint verifies the Prometheus handler is mounted.
func TestMetricsEndpoint(t *testing.T) {
	if code := status(t, metricsHandler(), "/metrics"); code != http.StatusOK {
		t.Errorf("expected /metrics 200, got: %d", code)
	}
}

// TestRunLifecycle drives a full session: identify, guild load, a
// journaled message and a clean shutdown.
func TestRunLifecycle(t *testing.T) {
	cfg := testConfig(t)
	cfg.JournalEnabled = true
	cfg.JournalEvents = []string{model.EventMessageCreate}
	dialer := testutil.NewFakeDialer()

	b, err := New(cfg, zerolog.Nop(), client.WithDialer(dialer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	store := b.store

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	conn := dialer.Next(t)
	conn.Hello(t, time.Minute)
	conn.NextSentOp(t, 2)
	conn.Dispatch(t, 1, model.EventReady, map[string]any{
		"v": 10, "session_id": "s1", "resume_gateway_url": "wss://resume.test",
		"user": map[string]any{"id": "bot", "username": "bot"}, "guilds": []any{},
	})
	conn.Dispatch(t, 2, model.EventGuildCreate, model.Guild{
		ID: "g1", Name: "test guild", OwnerID: "u1",
		Members:  []model.Member{{User: model.User{ID: "u1", Username: "owner"}}},
		Channels: []model.Channel{{ID: "c1", Type: model.ChannelGuildText, Name: "general"}},
	})

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := b.Guild("g1").WaitReady(waitCtx); err != nil {
		t.Fatalf("expected guild ready, got: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for status(t, b.healthHandler(), "/readyz") != http.StatusOK {
		if time.Now().After(deadline) {
			t.Fatal("expected /readyz 200 once the guild loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Dispatch(t, 3, model.EventMessageCreate, model.Message{ID: "m1", ChannelID: "c1", GuildID: "g1", Content: "hi"})
	for {
		recs, err := store.List(storage.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(recs) == 1 {
			if recs[0].Type != model.EventMessageCreate || recs[0].GatewaySeq != 3 {
				t.Errorf("unexpected journal record: %+v", recs[0])
			}
			break
		}
		if time.Now().After(deadline.Add(time.Second)) {
			t.Fatalf("expected 1 journal record, got: %d", len(recs))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if m, err := b.Guild("g1").Message("c1", "m1"); err != nil {
		t.Errorf("expected message tracked, got: %v", err)
	} else if c, _ := m.Content(); c != "hi" {
		t.Errorf("expected content hi, got: %q", c)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
