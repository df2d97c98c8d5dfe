package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

var fastRetry = RetryPolicy{
	MaxRetries: 2,
	BaseDelay:  time.Millisecond,
	MaxDelay:   2 * time.Millisecond,
}

func TestDoSendsDefaultHeadersAndRequestID(t *testing.T) {
	var gotSubject, gotRequestID, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = r.Header.Get("Ontology-Subject")
		gotRequestID = r.Header.Get(HeaderRequestID)
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithHeaders(http.Header{"Ontology-Subject": {"abc"}}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/posts/a%20b"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if gotSubject != "abc" {
		t.Fatalf("expected subject header, got %q", gotSubject)
	}
	if gotRequestID == "" {
		t.Fatalf("expected generated request id")
	}
	if gotPath != "/api/posts/a%20b" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestDoRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("attempt %d: unexpected body %q", hits.Load(), body)
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithRetryPolicy(fastRetry))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/posts",
		Body:   strings.NewReader(`{"a":1}`),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"missing"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithRetryPolicy(fastRetry))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/posts/x"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound || StatusCode(err) != http.StatusNotFound {
		t.Fatalf("unexpected status %d", httpErr.StatusCode)
	}
	if m, ok := httpErr.JSON.(map[string]any); !ok || m["error"] != "missing" {
		t.Fatalf("expected decoded JSON body, got %#v", httpErr.JSON)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", hits.Load())
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL,
		WithRetryPolicy(NoRetryPolicy),
		WithCircuitBreaker(gobreaker.Settings{
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 2
			},
		}),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/posts"})
		if StatusCode(err) != http.StatusInternalServerError {
			t.Fatalf("call %d: expected 500, got %v", i, err)
		}
	}
	_, err = client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/posts"})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("open breaker must not reach the server, got %d hits", hits.Load())
	}
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var routes []string
	var statuses []int
	client, err := NewClient(srv.URL,
		WithRetryPolicy(fastRetry),
		WithObserver(func(method, route string, status int, _ time.Duration, _ error) {
			routes = append(routes, method+" "+route)
			statuses = append(statuses, status)
		}),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, _ = client.Do(context.Background(), &Request{Method: http.MethodDelete, Path: "/posts/1", Route: "/posts/{id}"})

	if len(routes) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(routes))
	}
	for i := range routes {
		if routes[i] != "DELETE /posts/{id}" || statuses[i] != http.StatusBadGateway {
			t.Fatalf("observation %d: %s %d", i, routes[i], statuses[i])
		}
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "/just/a/path"} {
		if _, err := NewClient(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestBackoffBounds(t *testing.T) {
	b := NewBackoff(10*time.Millisecond, 40*time.Millisecond, 0)
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}
	for i, w := range want {
		if got := b.ForAttempt(i); got != w {
			t.Fatalf("attempt %d: got %v want %v", i, got, w)
		}
	}
	if got := b.ForAttempt(100); got != 40*time.Millisecond {
		t.Fatalf("large attempt should clamp to max, got %v", got)
	}
}
