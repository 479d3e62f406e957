// Package client composes the request throttle, the gateway session and the
// event router into one facade.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/igo95862/DiscordBot-lib-sub000/events"
	"github.com/igo95862/DiscordBot-lib-sub000/gateway"
	"github.com/igo95862/DiscordBot-lib-sub000/model"
	"github.com/igo95862/DiscordBot-lib-sub000/rest"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultAPIURL is the REST base used when Config.APIURL is empty.
	DefaultAPIURL    = "https://discord.com/api/v10"
	defaultUserAgent = "DiscordBot (https://github.com/igo95862/DiscordBot-lib-sub000, 1.0)"
)

// Config holds client parameters.
type Config struct {
	Token     string
	APIURL    string
	UserAgent string
	Throttle  rest.Config
	// Gateway.Token is overwritten with Token.
	Gateway gateway.Config
}

// Option customizes a Client at construction.
type Option func(*Client)

// WithTransport replaces the default net/http REST transport.
func WithTransport(t rest.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d gateway.Dialer) Option {
	return func(c *Client) { c.cfg.Gateway.Dialer = d }
}

// Client is the entry point for REST operations and event streams.
type Client struct {
	cfg       Config
	log       zerolog.Logger
	transport rest.Transport
	throttle  *rest.Throttle
	session   *gateway.Session
	router    *events.Router

	mu    sync.RWMutex
	token string
}

// New wires a Client. Nothing connects until Run.
func New(cfg Config, log zerolog.Logger, opts ...Option) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	c := &Client{cfg: cfg, log: log.With().Str("component", "client").Logger(), token: cfg.Token}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = rest.NewHTTPTransport(rest.TransportConfig{})
	}
	c.cfg.Gateway.Token = cfg.Token
	c.throttle = rest.NewThrottle(cfg.Throttle, log)
	c.session = gateway.New(c.cfg.Gateway, log)
	c.router = events.NewRouter(c.session, log)
	return c
}

// Run keeps the gateway session alive until Stop or ctx ends.
func (c *Client) Run(ctx context.Context) error {
	return c.session.Run(ctx)
}

// Stop ends the gateway session cleanly.
func (c *Client) Stop() {
	c.session.Stop()
}

// Session exposes the gateway session for state inspection.
func (c *Client) Session() *gateway.Session { return c.session }

// Router exposes the event router.
func (c *Client) Router() *events.Router { return c.router }

// Throttle exposes the request throttle.
func (c *Client) Throttle() *rest.Throttle { return c.throttle }

// SetToken swaps the bot token for subsequent REST calls and the next
// gateway handshake.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.session.SetToken(token)
	c.log.Info().Msg("token replaced")
}

func (c *Client) header() http.Header {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	h := make(http.Header)
	h.Set("Authorization", "Bot "+token)
	h.Set("User-Agent", c.cfg.UserAgent)
	return h
}

// request runs one REST call through the throttle under the bucket chosen by
// the override table.
func (c *Client) request(ctx context.Context, op Operation, resourceID, method, path string,
	query url.Values, body any) (jsoniter.RawMessage, error) {

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
	}
	target := c.cfg.APIURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req := &rest.Request{Method: method, URL: target, Header: c.header(), Body: payload}

	raw, err := c.throttle.Execute(ctx, BucketFor(op, resourceID), func(ctx context.Context) (*rest.Response, error) {
		return c.transport.Do(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// fetch runs a request and decodes its body into T. An empty body yields the zero T.
func fetch[T any](ctx context.Context, c *Client, op Operation, resourceID, method, path string,
	query url.Values, body any) (T, error) {

	raw, err := c.request(ctx, op, resourceID, method, path, query, body)
	if err != nil || raw == nil {
		var zero T
		return zero, err
	}
	v, err := model.Decode[T](raw)
	if err != nil {
		return v, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return v, nil
}
