package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ratio1/cosmo_sdk_go/pkg/blog"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo/mock"
)

func newTestServer(t *testing.T, opts serverOptions) (*httptest.Server, *mock.Mock) {
	t.Helper()
	store := mock.New()
	srv := httptest.NewServer(newRouter(store, opts))
	t.Cleanup(srv.Close)
	return srv, store
}

func TestSandboxServesCosmoAPI(t *testing.T) {
	srv, store := newTestServer(t, serverOptions{})
	client, err := cosmo.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	posts := client.Collection("posts")

	created, err := cosmo.Add(ctx, posts, blog.Post{Title: "hello", Body: "world"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if created.ID == "" || store.Len("posts") != 1 {
		t.Fatalf("expected stored post with id, got %#v", created)
	}

	created.Title = "edited"
	if _, err := cosmo.Set(ctx, posts.Doc(created.ID), *created); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := cosmo.Get[blog.Post](ctx, posts.Doc(created.ID))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "edited" {
		t.Fatalf("unexpected post %#v", got)
	}

	all, err := cosmo.List[blog.Post](ctx, posts)
	if err != nil || len(all) != 1 {
		t.Fatalf("List: %v %#v", err, all)
	}

	if err := posts.Doc(created.ID).Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := cosmo.Get[blog.Post](ctx, posts.Doc(created.ID)); !cosmo.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSandboxRejectsBadPayload(t *testing.T) {
	srv, _ := newTestServer(t, serverOptions{})
	resp, err := http.Post(srv.URL+"/posts", "application/json", strings.NewReader(`"not an object"`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSandboxRequireSubject(t *testing.T) {
	srv, _ := newTestServer(t, serverOptions{requireSubject: true})

	resp, err := http.Get(srv.URL + "/posts")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without subject, got %d", resp.StatusCode)
	}

	client, _ := cosmo.New(srv.URL)
	if _, err := client.Collection("posts").Get(context.Background()); err != nil {
		t.Fatalf("client sends the subject header by default: %v", err)
	}
}

func TestSandboxFailureInjection(t *testing.T) {
	srv, _ := newTestServer(t, serverOptions{fail: failConfig{rate: 1, code: http.StatusServiceUnavailable}})
	client, _ := cosmo.New(srv.URL)

	data, err := client.Collection("posts").Get(context.Background())
	if data != nil {
		t.Fatalf("expected nil result on failure")
	}
	var httpErr interface{ Retryable() bool }
	if !errors.As(err, &httpErr) || !httpErr.Retryable() {
		t.Fatalf("expected retryable HTTP error, got %v", err)
	}
}

func TestSandboxMetrics(t *testing.T) {
	srv, _ := newTestServer(t, serverOptions{registry: prometheus.NewRegistry()})
	client, _ := cosmo.New(srv.URL)
	_, _ = client.Collection("posts").Get(context.Background())

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(buf.String(), `cosmo_sandbox_requests_total{method="GET",route="/:dataset",status="200"} 1`) {
		t.Fatalf("missing request counter in:\n%s", buf.String())
	}
}

func TestParseFailConfig(t *testing.T) {
	cfg, err := parseFailConfig("rate=0.5,code=503")
	if err != nil {
		t.Fatalf("parseFailConfig: %v", err)
	}
	if cfg.rate != 0.5 || cfg.code != 503 {
		t.Fatalf("unexpected config %#v", cfg)
	}
	for _, raw := range []string{"rate", "rate=2", "code=42", "speed=1"} {
		if _, err := parseFailConfig(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	if cfg, err := parseFailConfig(""); err != nil || cfg.rate != 0 {
		t.Fatalf("empty flag must disable injection: %#v %v", cfg, err)
	}
}

func TestSandboxListsDatasets(t *testing.T) {
	srv, store := newTestServer(t, serverOptions{})
	ctx := context.Background()
	for _, rec := range []string{`{"title":"a"}`, `{"title":"b"}`} {
		if _, err := store.Create(ctx, "posts", []byte(rec)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := store.Create(ctx, "tags", []byte(`{"name":"go"}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Datasets []datasetInfo `json:"datasets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []datasetInfo{{Name: "posts", Records: 2}, {Name: "tags", Records: 1}}
	if len(body.Datasets) != len(want) {
		t.Fatalf("unexpected datasets %#v", body.Datasets)
	}
	for i := range want {
		if body.Datasets[i] != want[i] {
			t.Fatalf("dataset %d = %#v, want %#v", i, body.Datasets[i], want[i])
		}
	}
}
