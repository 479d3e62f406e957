package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, val string) {
	t.Helper()
	t.Setenv(key, val)
}

func TestLoadMissingRequired(t *testing.T) {
	setEnv(t, "DISCORD_TOKEN", "")
	os.Unsetenv("DISCORD_TOKEN")
	os.Unsetenv("DISCORD_TOKEN_FILE")

	_, err := Load()
	if err == nil {
		t.Error("expected error when DISCORD_TOKEN missing")
	}
}

func TestLoadMinimalValid(t *testing.T) {
	setEnv(t, "DISCORD_TOKEN", "abc.def.ghi")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "abc.def.ghi" {
		t.Errorf("DiscordToken: got %q", cfg.DiscordToken)
	}
	if cfg.DiscordAPIURL != "https://discord.com/api/v10" {
		t.Errorf("DiscordAPIURL default: got %q", cfg.DiscordAPIURL)
	}
	if cfg.HTTPCallTimeout != 10*time.Second {
		t.Errorf("HTTPCallTimeout default: got %s", cfg.HTTPCallTimeout)
	}
	if cfg.GatewayReconnectDelay != 5*time.Second {
		t.Errorf("GatewayReconnectDelay default: got %s", cfg.GatewayReconnectDelay)
	}
	if cfg.MessageWindow != 100 {
		t.Errorf("MessageWindow default: got %d", cfg.MessageWindow)
	}
	if cfg.JournalTTL != 72*time.Hour {
		t.Errorf("JournalTTL default: got %s", cfg.JournalTTL)
	}
}

func TestFileSecretInjection(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token.txt")
	if err := os.WriteFile(tokenFile, []byte("  token-from-file  \n"), 0600); err != nil {
		t.Fatal(err)
	}

	os.Unsetenv("DISCORD_TOKEN")
	setEnv(t, "DISCORD_TOKEN_FILE", tokenFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with file secret: %v", err)
	}
	if cfg.DiscordToken != "token-from-file" {
		t.Errorf("expected trimmed file secret, got %q", cfg.DiscordToken)
	}
	if cfg.DiscordTokenFile != tokenFile {
		t.Errorf("expected token file path kept, got %q", cfg.DiscordTokenFile)
	}
}

func TestFileSecretMissing(t *testing.T) {
	setEnv(t, "DISCORD_TOKEN_FILE", filepath.Join(t.TempDir(), "absent"))

	if _, err := Load(); err == nil {
		t.Error("expected error for unreadable token file")
	}
}

func TestCSVFields(t *testing.T) {
	setEnv(t, "DISCORD_TOKEN", "tok")
	setEnv(t, "GUILD_IDS", " 111, 222 ,,333")
	setEnv(t, "JOURNAL_EVENTS", "MESSAGE_CREATE,GUILD_MEMBER_ADD")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(cfg.GuildIDs, []string{"111", "222", "333"}) {
		t.Errorf("GuildIDs: got %v", cfg.GuildIDs)
	}
	if len(cfg.JournalEvents) != 2 || cfg.JournalEvents[1] != "GUILD_MEMBER_ADD" {
		t.Errorf("JournalEvents: got %v", cfg.JournalEvents)
	}
}

func TestQuotedValuesStripped(t *testing.T) {
	setEnv(t, "DISCORD_TOKEN", `"quoted-token"`)
	setEnv(t, "LOG_LEVEL", "'debug'")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "quoted-token" {
		t.Errorf("DiscordToken: got %q", cfg.DiscordToken)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q", cfg.LogLevel)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"engine", "HTTP_ENGINE", "curl"},
		{"api url", "DISCORD_API_URL", "not a url"},
		{"gateway scheme", "DISCORD_GATEWAY_URL", "https://gateway.discord.gg"},
		{"send rate", "GATEWAY_SEND_PER_MINUTE", "500"},
		{"pool workers", "POOL_WORKERS", "100"},
		{"queue depth", "POOL_QUEUE_DEPTH", "0"},
		{"message window", "MESSAGE_WINDOW", "0"},
		{"log level", "LOG_LEVEL", "verbose"},
		{"log format", "LOG_FORMAT", "xml"},
		{"token watch without file", "TOKEN_WATCH", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "DISCORD_TOKEN", "tok")
			setEnv(t, tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestJournalTTLValidatedWhenEnabled(t *testing.T) {
	setEnv(t, "DISCORD_TOKEN", "tok")
	setEnv(t, "JOURNAL_TTL", "0s")

	if _, err := Load(); err != nil {
		t.Fatalf("expected zero TTL accepted while journal disabled, got %v", err)
	}

	setEnv(t, "JOURNAL_ENABLED", "true")
	if _, err := Load(); err == nil {
		t.Error("expected error for JOURNAL_TTL=0s with journal enabled")
	}
}

func TestStripEnvQuotes(t *testing.T) {
	tests := []struct{ in, want string }{
		{`"x"`, "x"},
		{`'x'`, "x"},
		{`"x'`, `"x'`},
		{`"`, `"`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := stripEnvQuotes(tt.in); got != tt.want {
			t.Errorf("stripEnvQuotes(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadSecretFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, []byte(" \n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSecretFile(path); err == nil {
		t.Error("expected error for empty secret file")
	}
}
