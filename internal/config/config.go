package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds all application configuration.
type Config struct {
	// Platform Connection
	DiscordToken      string `koanf:"discord_token"`
	DiscordTokenFile  string `koanf:"discord_token_file"`
	DiscordAPIURL     string `koanf:"discord_api_url"`
	DiscordGatewayURL string `koanf:"discord_gateway_url"`
	DiscordIntents    int    `koanf:"discord_intents"`
	DiscordUserAgent  string `koanf:"discord_user_agent"`

	// REST
	HTTPEngine        string        `koanf:"http_engine"`
	HTTPCallTimeout   time.Duration `koanf:"http_call_timeout"`
	HTTPRetryInterval time.Duration `koanf:"http_retry_interval"`

	// Gateway
	GatewayReconnectDelay      time.Duration `koanf:"gateway_reconnect_delay"`
	GatewayInvalidSessionDelay time.Duration `koanf:"gateway_invalid_session_delay"`
	GatewaySendPerMinute       int           `koanf:"gateway_send_per_minute"`
	GatewayCompress            bool          `koanf:"gateway_compress"`

	// Guild State
	GuildIDs      []string `koanf:"guild_ids"`
	MessageWindow int      `koanf:"message_window"`

	// Journal
	JournalEnabled bool          `koanf:"journal_enabled"`
	JournalEvents  []string      `koanf:"journal_events"`
	DataDir        string        `koanf:"data_dir"`
	JournalTTL     time.Duration `koanf:"journal_ttl"`

	// Worker Pool
	PoolWorkers    int           `koanf:"pool_workers"`
	PoolQueueDepth int           `koanf:"pool_queue_depth"`
	PoolMaxRetries int           `koanf:"pool_max_retries"`
	PoolRetryBase  time.Duration `koanf:"pool_retry_base"`

	// Operational
	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	MetricsEnabled  bool          `koanf:"metrics_enabled"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	HealthAddr      string        `koanf:"health_addr"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
	TokenWatch      bool          `koanf:"token_watch"`
}

// sanitise removes a single layer of matching surrounding quotes from all string
// fields and string slice elements. This normalises values from Docker --env-file
// which does not strip shell quoting.
func (c *Config) sanitise() {
	c.DiscordToken = stripEnvQuotes(c.DiscordToken)
	c.DiscordTokenFile = stripEnvQuotes(c.DiscordTokenFile)
	c.DiscordAPIURL = stripEnvQuotes(c.DiscordAPIURL)
	c.DiscordGatewayURL = stripEnvQuotes(c.DiscordGatewayURL)
	c.DiscordUserAgent = stripEnvQuotes(c.DiscordUserAgent)
	c.HTTPEngine = stripEnvQuotes(c.HTTPEngine)
	c.DataDir = stripEnvQuotes(c.DataDir)
	c.LogLevel = stripEnvQuotes(c.LogLevel)
	c.LogFormat = stripEnvQuotes(c.LogFormat)
	c.MetricsAddr = stripEnvQuotes(c.MetricsAddr)
	c.HealthAddr = stripEnvQuotes(c.HealthAddr)

	// Slice fields: strip each element
	for i, s := range c.GuildIDs {
		c.GuildIDs[i] = stripEnvQuotes(s)
	}
	for i, s := range c.JournalEvents {
		c.JournalEvents[i] = stripEnvQuotes(s)
	}
}

// defaults sets sensible default values.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"discord_api_url":               "https://discord.com/api/v10",
		"discord_gateway_url":           "wss://gateway.discord.gg",
		"discord_intents":               3243773,
		"http_engine":                   "nethttp",
		"http_call_timeout":             "10s",
		"http_retry_interval":           "1s",
		"gateway_reconnect_delay":       "5s",
		"gateway_invalid_session_delay": "2s",
		"gateway_send_per_minute":       120,
		"gateway_compress":              false,
		"message_window":                100,
		"journal_enabled":               false,
		"data_dir":                      "/data",
		"journal_ttl":                   "72h",
		"pool_workers":                  2,
		"pool_queue_depth":              4096,
		"pool_max_retries":              3,
		"pool_retry_base":               "1s",
		"log_level":                     "info",
		"log_format":                    "json",
		"metrics_enabled":               true,
		"metrics_addr":                  ":9090",
		"health_addr":                   ":8081",
		"janitor_interval":              "1h",
		"token_watch":                   false,
	}
}

// stripEnvQuotes removes a single layer of matching surrounding single or double
// quotes from s. Only symmetric pairs are stripped: 'x' → x, "x" → x.
// Unpaired or mismatched quotes are left as-is.
func stripEnvQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '\'' && s[len(s)-1] == '\'') ||
		(s[0] == '"' && s[len(s)-1] == '"') {
		return s[1 : len(s)-1]
	}
	return s
}

// Load reads configuration from environment variables, applying _FILE secret injection.
func Load() (*Config, error) {
	// "." keeps DISCORD_API_URL flat as "discord_api_url" instead of nesting on "_".
	k := koanf.New(".")

	if err := k.Load(&rawProvider{data: defaults()}, nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if err := injectFileSecrets(k); err != nil {
		return nil, fmt.Errorf("inject file secrets: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Post-process comma-separated list fields that koanf won't split automatically
	cfg.GuildIDs = splitCSV(k.String("guild_ids"))
	cfg.JournalEvents = splitCSV(k.String("journal_events"))

	cfg.sanitise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and semantic constraints.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN or DISCORD_TOKEN_FILE is required")
	}

	for _, pair := range []struct{ name, raw, scheme string }{
		{"DISCORD_API_URL", c.DiscordAPIURL, "http"},
		{"DISCORD_GATEWAY_URL", c.DiscordGatewayURL, "ws"},
	} {
		u, err := url.Parse(pair.raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL; got %q", pair.name, pair.raw)
		}
		if !strings.HasPrefix(u.Scheme, pair.scheme) {
			return fmt.Errorf("%s must use %s:// or %ss://; got %q", pair.name, pair.scheme, pair.scheme, pair.raw)
		}
	}

	if c.DiscordIntents < 0 {
		return fmt.Errorf("DISCORD_INTENTS must be >= 0; got %d", c.DiscordIntents)
	}

	if c.HTTPEngine != "nethttp" && c.HTTPEngine != "fasthttp" {
		return fmt.Errorf("HTTP_ENGINE must be nethttp or fasthttp; got %q", c.HTTPEngine)
	}

	if c.HTTPCallTimeout <= 0 {
		return fmt.Errorf("HTTP_CALL_TIMEOUT must be > 0; got %s", c.HTTPCallTimeout)
	}

	if c.GatewaySendPerMinute < 1 || c.GatewaySendPerMinute > 120 {
		return fmt.Errorf("GATEWAY_SEND_PER_MINUTE must be 1–120; got %d", c.GatewaySendPerMinute)
	}

	if c.MessageWindow < 1 {
		return fmt.Errorf("MESSAGE_WINDOW must be >= 1; got %d", c.MessageWindow)
	}

	if c.PoolWorkers < 1 || c.PoolWorkers > 64 {
		return fmt.Errorf("POOL_WORKERS must be 1–64; got %d", c.PoolWorkers)
	}

	if c.PoolQueueDepth < 1 {
		return fmt.Errorf("POOL_QUEUE_DEPTH must be >= 1; got %d", c.PoolQueueDepth)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of trace,debug,info,warn,error,fatal,panic; got %q", c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text; got %q", c.LogFormat)
	}

	if c.JournalEnabled {
		if c.JournalTTL <= 0 {
			return fmt.Errorf("JOURNAL_TTL must be > 0; got %s", c.JournalTTL)
		}
		if c.JanitorInterval <= 0 {
			return fmt.Errorf("JANITOR_INTERVAL must be > 0; got %s", c.JanitorInterval)
		}
	}

	if c.TokenWatch && c.DiscordTokenFile == "" {
		return fmt.Errorf("TOKEN_WATCH requires DISCORD_TOKEN_FILE")
	}

	return nil
}

// fileSecretKeys are the keys that may be supplied as <KEY>_FILE.
var fileSecretKeys = []string{
	"discord_token",
}

// injectFileSecrets reads _FILE env vars and injects their file contents.
func injectFileSecrets(k *koanf.Koanf) error {
	for _, key := range fileSecretKeys {
		fileKey := key + "_file"
		filePath := k.String(fileKey)
		if filePath == "" {
			// Also check uppercased env var with _FILE suffix
			envKey := strings.ToUpper(key) + "_FILE"
			filePath = os.Getenv(envKey)
		}
		if filePath == "" {
			continue
		}
		// Strip quotes from file path in case it was quoted in Docker --env-file
		filePath = stripEnvQuotes(filePath)
		val, err := ReadSecretFile(filePath)
		if err != nil {
			return fmt.Errorf("reading secret file for %s (%s): %w", key, filePath, err)
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("setting %s from file: %w", key, err)
		}
		if err := k.Set(fileKey, filePath); err != nil {
			return fmt.Errorf("setting %s: %w", fileKey, err)
		}
	}
	return nil
}

// ReadSecretFile returns the trimmed contents of a secret file. The token
// watcher uses it to re-read DISCORD_TOKEN_FILE on change.
func ReadSecretFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	val := strings.TrimSpace(string(content))
	if val == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return val, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// rawProvider implements koanf.Provider for a map[string]interface{}.
type rawProvider struct {
	data map[string]interface{}
}

// Read returns the config map directly (no Parser needed).
func (r *rawProvider) Read() (map[string]interface{}, error) {
	return r.data, nil
}

// ReadBytes is not used by rawProvider; koanf calls Read() when no Parser is given.
func (r *rawProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("rawProvider does not support ReadBytes")
}
