package testutil

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/igo95862/DiscordBot-lib-sub000/rest"
)

// FakeTransport implements rest.Transport with canned responses keyed by
// method and URL path. All methods are safe for concurrent use.
type FakeTransport struct {
	mu sync.Mutex

	// Response queues per route; the last response repeats once the queue is drained.
	routes   map[string][]*rest.Response
	handlers map[string]func(*rest.Request) *rest.Response

	// Error injection: route -> errors returned in order before any response
	errors map[string][]error

	calls []*rest.Request
}

// NewFakeTransport returns a transport that answers 404 to every route.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		routes:   make(map[string][]*rest.Response),
		handlers: make(map[string]func(*rest.Request) *rest.Response),
		errors:   make(map[string][]error),
	}
}

func routeKey(method, path string) string {
	return method + " " + path
}

// On queues a response for method and path. body is JSON-encoded; nil
// produces an empty body.
func (f *FakeTransport) On(method, path string, status int, body any) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			panic(err)
		}
	}
	f.OnResponse(method, path, &rest.Response{StatusCode: status, Header: make(http.Header), Body: data})
}

// OnResponse queues a fully built response.
func (f *FakeTransport) OnResponse(method, path string, resp *rest.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := routeKey(method, path)
	f.routes[k] = append(f.routes[k], resp)
}

// Handle answers method and path with fn, taking precedence over queued responses.
func (f *FakeTransport) Handle(method, path string, fn func(*rest.Request) *rest.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[routeKey(method, path)] = fn
}

// FailNext makes the next call on the route return err.
func (f *FakeTransport) FailNext(method, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := routeKey(method, path)
	f.errors[k] = append(f.errors[k], err)
}

// Calls returns every request seen so far, including failed ones.
func (f *FakeTransport) Calls() []*rest.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*rest.Request(nil), f.calls...)
}

func (f *FakeTransport) Do(ctx context.Context, req *rest.Request) (*rest.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	k := routeKey(req.Method, u.Path)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)

	if errs := f.errors[k]; len(errs) > 0 {
		f.errors[k] = errs[1:]
		return nil, errs[0]
	}
	if fn, ok := f.handlers[k]; ok {
		return fn(req), nil
	}
	queue := f.routes[k]
	switch len(queue) {
	case 0:
		return &rest.Response{
			StatusCode: http.StatusNotFound,
			Header:     make(http.Header),
			Body:       []byte(`{"code":0,"message":"404: Not Found"}`),
		}, nil
	case 1:
		return queue[0], nil
	}
	f.routes[k] = queue[1:]
	return queue[0], nil
}
