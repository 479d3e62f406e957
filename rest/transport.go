package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// Request is a fully built REST call: absolute URL, headers, optional JSON body.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw result of a REST call. The throttle only needs the
// status, the rate-limit headers, and a body that is JSON or empty.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a single HTTP round trip. Implementations must honour
// ctx cancellation and deadlines.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportConfig holds parameters shared by the transport implementations.
type TransportConfig struct {
	InsecureSkipVerify bool
	// MaxIdleConnsPerHost bounds keep-alive connections to the API host.
	MaxIdleConnsPerHost int
}

// HTTPTransport implements Transport with net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds a transport on top of DefaultTransport-like settings.
// Per-call timeouts come from the request context, so the client itself has none.
func NewHTTPTransport(cfg TransportConfig) *HTTPTransport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	idle := cfg.MaxIdleConnsPerHost
	if idle == 0 {
		idle = 100
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // user-opted-in
		TLSHandshakeTimeout:   10 * time.Second,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          idle,
		MaxIdleConnsPerHost:   idle,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &HTTPTransport{client: &http.Client{Transport: transport}}
}

// NewHTTPTransportWithClient wraps an existing client; used by tests against httptest servers.
func NewHTTPTransportWithClient(c *http.Client) *HTTPTransport {
	return &HTTPTransport{client: c}
}

func (t *HTTPTransport) Do(ctx context.Context, r *Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// FastHTTPTransport implements Transport with fasthttp. It trades net/http's
// context integration for lower allocation per call; deadlines are taken from ctx.
type FastHTTPTransport struct {
	client *fasthttp.Client
}

// NewFastHTTPTransport builds a fasthttp-backed transport.
func NewFastHTTPTransport(cfg TransportConfig) *FastHTTPTransport {
	idle := cfg.MaxIdleConnsPerHost
	if idle == 0 {
		idle = 100
	}
	return &FastHTTPTransport{client: &fasthttp.Client{
		TLSConfig:                &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // user-opted-in
		MaxConnsPerHost:          idle,
		MaxIdleConnDuration:      90 * time.Second,
		NoDefaultUserAgentHeader: true,
	}}
}

func (t *FastHTTPTransport) Do(ctx context.Context, r *Request) (*Response, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(r.Method)
	req.SetRequestURI(r.URL)
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Body != nil {
		if len(req.Header.ContentType()) == 0 {
			req.Header.SetContentType("application/json")
		}
		req.SetBody(r.Body)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = t.client.DoDeadline(req, resp, deadline)
	} else {
		err = t.client.Do(req, resp)
	}
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	resp.Header.VisitAll(func(k, v []byte) {
		header.Add(string(k), string(v))
	})
	body := append([]byte(nil), resp.Body()...)
	return &Response{StatusCode: resp.StatusCode(), Header: header, Body: body}, nil
}
