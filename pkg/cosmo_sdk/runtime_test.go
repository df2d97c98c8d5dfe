package cosmo_sdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Ratio1/cosmo_sdk_go/internal/config"
	"github.com/Ratio1/cosmo_sdk_go/pkg/blog"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo_sdk"
	"github.com/Ratio1/cosmo_sdk_go/pkg/identity"
)

func TestNewFromEnvHTTPMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"1","title":"a"}]`))
	}))
	defer srv.Close()

	t.Setenv("COSMO_RUNTIME_MODE", "http")
	t.Setenv("COSMO_API_URL", srv.URL)

	client, mode, err := cosmo_sdk.NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if mode != "http" {
		t.Fatalf("expected http mode, got %q", mode)
	}
	posts, err := cosmo.List[blog.Post](context.Background(), client.Collection("posts"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "1" {
		t.Fatalf("unexpected posts %#v", posts)
	}
}

func TestNewFromEnvHTTPModeRequiresURL(t *testing.T) {
	t.Setenv("COSMO_RUNTIME_MODE", "http")
	t.Setenv("COSMO_API_URL", "")

	if _, _, err := cosmo_sdk.NewFromEnv(); err == nil {
		t.Fatalf("expected error without API URL")
	}
}

func TestNewFromEnvMockAutoFallback(t *testing.T) {
	t.Setenv("COSMO_RUNTIME_MODE", "")
	t.Setenv("COSMO_API_URL", "")
	t.Setenv("COSMO_MOCK_SEED", "")

	client, mode, err := cosmo_sdk.NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if mode != "mock" {
		t.Fatalf("expected mock mode, got %q", mode)
	}
	if _, err := cosmo.Add(context.Background(), client.Collection("posts"), blog.Post{Title: "x"}); err != nil {
		t.Fatalf("mock Add: %v", err)
	}
}

func TestNewFromEnvUnsupportedMode(t *testing.T) {
	t.Setenv("COSMO_RUNTIME_MODE", "grpc")
	if _, _, err := cosmo_sdk.NewFromEnv(); err == nil {
		t.Fatalf("expected error for unsupported mode")
	}
}

func TestNewFromEnvSeed(t *testing.T) {
	seed := writeTempFile(t, "seed.json", []byte(`{"posts":[{"id":"seeded","title":"hello","body":"world"}]}`))

	t.Setenv("COSMO_RUNTIME_MODE", "mock")
	t.Setenv("COSMO_MOCK_SEED", seed)

	client, _, err := cosmo_sdk.NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	post, err := cosmo.Get[blog.Post](context.Background(), client.Collection("posts").Doc("seeded"))
	if err != nil {
		t.Fatalf("Get seeded post: %v", err)
	}
	if post == nil || post.Title != "hello" {
		t.Fatalf("unexpected seeded post %#v", post)
	}
}

func TestNewFromConfigRecordsMetrics(t *testing.T) {
	var subject string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = r.Header.Get(cosmo.HeaderSubject)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Mode = "http"
	cfg.APIURL = srv.URL
	cfg.Subject = "custom-subject"
	cfg.Retry.Max = 2
	cfg.Breaker.Enabled = true

	reg := prometheus.NewRegistry()
	client, mode, err := cosmo_sdk.NewFromConfig(cfg, reg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if mode != "http" {
		t.Fatalf("expected http mode, got %q", mode)
	}
	if _, err := client.Collection("posts").Get(context.Background()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if subject != "custom-subject" {
		t.Fatalf("expected configured subject, got %q", subject)
	}
	n, err := testutil.GatherAndCount(reg, "cosmo_client_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one request series, got %d", n)
	}
}

func TestNewStoreFromConfig(t *testing.T) {
	secret := "store-secret"
	issuer, err := identity.NewJWTSession([]byte(secret))
	if err != nil {
		t.Fatalf("NewJWTSession: %v", err)
	}
	token, err := issuer.IssueToken(identity.UserData{Username: "carol.id", Profile: identity.Profile{Name: "Carol"}}, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	cfg := testConfig(t)
	cfg.Mode = "mock"
	cfg.WriteMode = "confirmed"
	cfg.Session.Secret = secret
	cfg.Session.Token = token

	store, mode, err := cosmo_sdk.NewStore(cfg, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if mode != "mock" || store.Mode() != blog.Confirmed {
		t.Fatalf("unexpected modes %q %q", mode, store.Mode())
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !store.IsAuthenticated() || store.AuthUser().Name != "Carol" {
		t.Fatalf("expected Carol signed in, got %#v", store.AuthUser())
	}
}

func TestNewProviderWithoutSecret(t *testing.T) {
	provider, err := cosmo_sdk.NewProvider(testConfig(t))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if provider.IsUserSignedIn() || provider.IsSignInPending() {
		t.Fatalf("expected signed-out provider")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromViper(config.New())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestNewFromConfigReusesRegistry(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Mode = "http"
	cfg.APIURL = srv.URL

	reg := prometheus.NewRegistry()
	for i := 0; i < 2; i++ {
		store, _, err := cosmo_sdk.NewStore(cfg, reg)
		if err != nil {
			t.Fatalf("NewStore #%d: %v", i+1, err)
		}
		if _, err := store.LoadPosts(context.Background()); err != nil {
			t.Fatalf("LoadPosts #%d: %v", i+1, err)
		}
	}
	if hits != 2 {
		t.Fatalf("expected 2 requests, got %d", hits)
	}
	expected := `
# HELP cosmo_client_requests_total Total number of datastore HTTP requests
# TYPE cosmo_client_requests_total counter
cosmo_client_requests_total{method="GET",route="/posts",status="200"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "cosmo_client_requests_total"); err != nil {
		t.Fatalf("expected both clients on one series: %v", err)
	}
}
