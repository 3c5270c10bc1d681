package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// --- Helpers ---

// mockServer creates a test server backed by handler and a client pointed at it.
func mockServer(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c, err := New(ts.URL, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func jsonHandler(t *testing.T, statusCode int, body interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if body != nil {
			if err := json.NewEncoder(w).Encode(body); err != nil {
				t.Errorf("failed to encode response: %v", err)
			}
		}
	}
}

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

// --- New / Options Tests ---

func TestNew_Defaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.BaseURL() != defaultBaseURL {
		t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), defaultBaseURL)
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", c.httpClient.Timeout)
	}
}

func TestNew_SchemeIsOptional(t *testing.T) {
	c, err := New("api.farmcart.test/v1?debug=1", WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.BaseURL() != "http://api.farmcart.test/v1" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.httpClient.Timeout)
	}
}

func TestNew_InvalidURL(t *testing.T) {
	if _, err := New("http://"); err == nil {
		t.Fatal("expected error for URL without host")
	}
}

// --- Send Tests ---

func TestSend_Envelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/addresses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("missing request id header")
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil || payload["label"] != "Home" {
			t.Errorf("unexpected body %s", body)
		}
		jsonHandler(t, http.StatusCreated, map[string]any{
			"success": true,
			"message": "Address created",
			"data":    map[string]any{"id": 3, "label": "Home"},
		})(w, r)
	}))
	t.Cleanup(ts.Close)
	c, err := New(ts.URL+"/api/", WithToken("tok-1"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	env, err := c.Send(context.Background(), http.MethodPost, "/addresses", map[string]any{"label": "Home"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !env.Success || env.Message != "Address created" {
		t.Errorf("envelope = %+v", env)
	}
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil || data["id"] != float64(3) {
		t.Errorf("data = %s", env.Data)
	}
}

func TestSend_PlainJSONIsSuccess(t *testing.T) {
	c := mockServer(t, jsonHandler(t, http.StatusOK, []map[string]any{{"id": 1}}))

	env, err := c.Send(context.Background(), http.MethodGet, "/farms", nil)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !env.Success {
		t.Error("expected success for non-enveloped body")
	}
	if string(env.Data) != `[{"id":1}]` {
		t.Errorf("data = %s", env.Data)
	}
}

func TestSend_EmptyBody(t *testing.T) {
	c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	env, err := c.Send(context.Background(), http.MethodDelete, "/farms/1", nil)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !env.Success || env.Data != nil {
		t.Errorf("envelope = %+v", env)
	}
}

func TestSend_EnvelopeFailure(t *testing.T) {
	c := mockServer(t, jsonHandler(t, http.StatusOK, map[string]any{"success": false, "message": "Farm is closed"}))

	env, err := c.Send(context.Background(), http.MethodPost, "/orders", nil)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if env.Success || env.Message != "Farm is closed" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestSend_APIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     interface{}
		wantMsg  string
		sentinel error
	}{
		{"not found", http.StatusNotFound, map[string]any{"message": "Address not found"}, "Address not found", ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, map[string]any{"error": "Token expired"}, "Token expired", ErrUnauthorized},
		{"forbidden", http.StatusForbidden, nil, "api GET /orders returned status 403", ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mockServer(t, jsonHandler(t, tt.status, tt.body))

			_, err := c.Send(context.Background(), http.MethodGet, "/orders", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", apiErr.Error(), tt.wantMsg)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v) = false", tt.sentinel)
			}
			if apiErr.Hint() == "" {
				t.Error("expected a hint")
			}
		})
	}
}

func TestSend_TokenSourceWins(t *testing.T) {
	c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer from-source" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}, WithToken("static"), WithTokenSource(staticTokens("from-source")))

	if _, err := c.Send(context.Background(), http.MethodGet, "/auth/profile", nil); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
}

func TestSend_NoTokenNoHeader(t *testing.T) {
	c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
		w.WriteHeader(http.StatusOK)
	})

	if _, err := c.Send(context.Background(), http.MethodGet, "/vegetables", nil); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
}

func TestSend_InvalidJSON(t *testing.T) {
	c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	if _, err := c.Send(context.Background(), http.MethodGet, "/farms", nil); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSend_ContextCanceled(t *testing.T) {
	c := mockServer(t, jsonHandler(t, http.StatusOK, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Send(ctx, http.MethodGet, "/farms", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestAPIError_Payload(t *testing.T) {
	e := &APIError{Body: []byte(`{"data":{"message":"x"}}`)}
	m, ok := e.Payload().(map[string]any)
	if !ok || m["data"] == nil {
		t.Errorf("Payload() = %v", e.Payload())
	}
	if (&APIError{Body: []byte("<html>")}).Payload() != nil {
		t.Error("non-JSON body should yield nil payload")
	}
}
