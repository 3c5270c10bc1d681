// Package apiclienttest provides an in-memory apiclient.Sender for tests.
package apiclienttest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/farmcart/farmcart/pkg/apiclient"
)

// Call records one Send invocation.
type Call struct {
	Method string
	Path   string
	Body   any
}

// Responder produces the response of a matched route.
type Responder func(call Call) (*apiclient.Envelope, error)

type route struct {
	method    string
	path      string
	responder Responder
	gate      *Gate
}

// Sender is a scripted apiclient.Sender. Routes are matched on method and
// exact path (query included); the most recently added route wins.
type Sender struct {
	mu     sync.Mutex
	routes []*route
	calls  []Call
}

var _ apiclient.Sender = (*Sender)(nil)

// New creates an empty Sender. Unmatched requests fail with a 404 APIError.
func New() *Sender {
	return &Sender{}
}

// On registers a responder for method and path.
func (s *Sender) On(method, path string, fn Responder) *Sender {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, &route{method: method, path: path, responder: fn})
	return s
}

// OK answers method and path with a successful envelope carrying data.
func (s *Sender) OK(method, path string, data any, message string) *Sender {
	raw := mustJSON(data)
	return s.On(method, path, func(Call) (*apiclient.Envelope, error) {
		return &apiclient.Envelope{Success: true, Data: raw, Message: message}, nil
	})
}

// Fail answers method and path with err.
func (s *Sender) Fail(method, path string, err error) *Sender {
	return s.On(method, path, func(Call) (*apiclient.Envelope, error) {
		return nil, err
	})
}

// Hold makes the next matching request block until the returned gate is
// released. The route must already be registered.
func (s *Sender) Hold(method, path string) *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := newGate()
	for i := len(s.routes) - 1; i >= 0; i-- {
		r := s.routes[i]
		if r.method == method && r.path == path {
			s.routes = append(s.routes, &route{method: method, path: path, responder: r.responder, gate: g})
			return g
		}
	}
	panic(fmt.Sprintf("apiclienttest: no route for %s %s", method, path))
}

// Send implements apiclient.Sender.
func (s *Sender) Send(ctx context.Context, method, path string, body any) (*apiclient.Envelope, error) {
	call := Call{Method: method, Path: path, Body: body}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	var matched *route
	for i := len(s.routes) - 1; i >= 0; i-- {
		r := s.routes[i]
		if r.method == method && r.path == path {
			matched = r
			if r.gate != nil {
				// Gates are single use.
				s.routes = append(s.routes[:i], s.routes[i+1:]...)
			}
			break
		}
	}
	s.mu.Unlock()

	if matched == nil {
		return nil, &apiclient.APIError{
			Method:     method,
			Path:       path,
			StatusCode: 404,
			Message:    "Route not found",
			Body:       []byte(`{"success":false,"message":"Route not found"}`),
		}
	}
	if matched.gate != nil {
		close(matched.gate.entered)
		select {
		case <-matched.gate.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return matched.responder(call)
}

// Calls returns every recorded call.
func (s *Sender) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many calls matched method and a path prefix.
func (s *Sender) CallCount(method, pathPrefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// Gate blocks one request in flight.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *Gate {
	return &Gate{entered: make(chan struct{}), release: make(chan struct{})}
}

// Entered is closed once the held request has reached the sender.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release lets the held request complete.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("apiclienttest: marshal response: %v", err))
	}
	return b
}
