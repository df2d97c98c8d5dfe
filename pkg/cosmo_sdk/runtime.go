package cosmo_sdk

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/Ratio1/cosmo_sdk_go/internal/config"
	"github.com/Ratio1/cosmo_sdk_go/internal/devseed"
	"github.com/Ratio1/cosmo_sdk_go/internal/httpx"
	"github.com/Ratio1/cosmo_sdk_go/internal/logging"
	"github.com/Ratio1/cosmo_sdk_go/internal/metrics"
	"github.com/Ratio1/cosmo_sdk_go/pkg/blog"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo/mock"
	"github.com/Ratio1/cosmo_sdk_go/pkg/identity"
)

const (
	envMode     = "COSMO_RUNTIME_MODE"
	envAPIURL   = "COSMO_API_URL"
	envMockSeed = "COSMO_MOCK_SEED"

	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// NewFromEnv initialises a Cosmo client from COSMO_RUNTIME_MODE,
// COSMO_API_URL and COSMO_MOCK_SEED. It returns the resolved mode ("http" or
// "mock").
func NewFromEnv(opts ...cosmo.Option) (*cosmo.Client, string, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	apiURL := strings.TrimSpace(os.Getenv(envAPIURL))
	seed := strings.TrimSpace(os.Getenv(envMockSeed))

	switch mode {
	case "", ModeAuto:
		if apiURL != "" {
			return newHTTPClient(apiURL, opts)
		}
		return newMockClient(seed, opts)
	case ModeHTTP:
		if apiURL == "" {
			return nil, "", fmt.Errorf("cosmo_sdk: HTTP mode requires %s", envAPIURL)
		}
		return newHTTPClient(apiURL, opts)
	case ModeMock:
		return newMockClient(seed, opts)
	default:
		return nil, "", fmt.Errorf("cosmo_sdk: unsupported %s value %q", envMode, mode)
	}
}

// NewFromConfig builds a client from cfg. In auto mode an api_url selects
// http, otherwise the in-memory datastore is used. When reg is non-nil the
// client records request metrics into it.
func NewFromConfig(cfg *config.Config, reg prometheus.Registerer) (*cosmo.Client, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("cosmo_sdk: config is nil")
	}
	opts := []cosmo.Option{
		cosmo.WithSubject(cfg.Subject),
		cosmo.WithLogger(logging.Component("cosmo")),
		cosmo.WithHTTPOptions(HTTPOptions(cfg, reg)...),
	}

	switch cfg.Mode {
	case "", ModeAuto:
		if strings.TrimSpace(cfg.APIURL) != "" {
			return newHTTPClient(cfg.BaseURL(), opts)
		}
		return newMockClient(cfg.Seed, opts)
	case ModeHTTP:
		return newHTTPClient(cfg.BaseURL(), opts)
	case ModeMock:
		return newMockClient(cfg.Seed, opts)
	default:
		return nil, "", fmt.Errorf("cosmo_sdk: unsupported mode %q", cfg.Mode)
	}
}

// HTTPOptions translates the transport settings of cfg into httpx options.
func HTTPOptions(cfg *config.Config, reg prometheus.Registerer) []httpx.Option {
	var opts []httpx.Option
	if cfg.Timeout > 0 {
		opts = append(opts, httpx.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.Retry.Max > 0 {
		policy := httpx.DefaultRetryPolicy
		policy.MaxRetries = cfg.Retry.Max
		if cfg.Retry.BaseDelay > 0 {
			policy.BaseDelay = cfg.Retry.BaseDelay
		}
		if cfg.Retry.MaxDelay > 0 {
			policy.MaxDelay = cfg.Retry.MaxDelay
		}
		opts = append(opts, httpx.WithRetryPolicy(policy))
	}
	if cfg.Breaker.Enabled {
		opts = append(opts, httpx.WithCircuitBreaker(breakerSettings(cfg.Breaker)))
	}
	if reg != nil {
		opts = append(opts, httpx.WithObserver(metrics.NewClientCollectors(reg).Observer()))
	}
	return opts
}

func breakerSettings(b config.Breaker) gobreaker.Settings {
	log := logging.Component("breaker")
	return gobreaker.Settings{
		Name:        "cosmo",
		MaxRequests: b.MaxRequests,
		Interval:    b.Interval,
		Timeout:     b.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= b.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithField("breaker", name).Warnf("state %s -> %s", from, to)
		},
	}
}

// NewProvider returns a JWT session provider when a session secret is
// configured and a signed-out static provider otherwise.
func NewProvider(cfg *config.Config) (identity.Provider, error) {
	if cfg == nil || strings.TrimSpace(cfg.Session.Secret) == "" {
		return identity.NewStatic(nil), nil
	}
	session, err := identity.NewJWTSession([]byte(cfg.Session.Secret),
		identity.WithSessionToken(cfg.Session.Token),
		identity.WithPendingToken(cfg.Session.PendingToken),
		identity.WithAuthenticatorURL(cfg.Session.AuthenticatorURL),
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// NewStore wires a client, an identity provider and a blog store from cfg.
func NewStore(cfg *config.Config, reg prometheus.Registerer) (*blog.Store, string, error) {
	client, mode, err := NewFromConfig(cfg, reg)
	if err != nil {
		return nil, "", err
	}
	store, err := NewStoreWithClient(cfg, client)
	if err != nil {
		return nil, "", err
	}
	return store, mode, nil
}

// NewStoreWithClient builds a blog store over an existing client.
func NewStoreWithClient(cfg *config.Config, client *cosmo.Client) (*blog.Store, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("cosmo_sdk: init identity provider: %w", err)
	}
	writeMode, err := blog.ParseWriteMode(cfg.WriteMode)
	if err != nil {
		return nil, err
	}
	return blog.NewStore(client, provider,
		blog.WithWriteMode(writeMode),
		blog.WithOrigin(cfg.Origin),
		blog.WithLogger(logging.Component("blog")),
	), nil
}

func newHTTPClient(baseURL string, opts []cosmo.Option) (*cosmo.Client, string, error) {
	client, err := cosmo.New(baseURL, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("cosmo_sdk: init HTTP client: %w", err)
	}
	return client, ModeHTTP, nil
}

func newMockClient(seedPath string, opts []cosmo.Option) (*cosmo.Client, string, error) {
	m := mock.New()
	if path := strings.TrimSpace(seedPath); path != "" {
		entries, err := devseed.LoadDatasetSeed(path)
		if err != nil {
			return nil, "", fmt.Errorf("cosmo_sdk: load mock seed: %w", err)
		}
		if err := m.Seed(entries); err != nil {
			return nil, "", fmt.Errorf("cosmo_sdk: apply mock seed: %w", err)
		}
	}
	return cosmo.NewWithBackend(m, opts...), ModeMock, nil
}
