// Package config loads SDK, CLI and sandbox settings from an optional config
// file and COSMO_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Ratio1/cosmo_sdk_go/internal/logging"
)

// EnvPrefix is prepended to every environment variable, e.g. COSMO_HOST.
const EnvPrefix = "COSMO"

const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 21982
	DefaultSubject = "AecaeSEBkt5GcBCxwz1F41TvdjX3dnKBkJ"
	DefaultOrigin  = "http://localhost:8080"
)

// Config is the root configuration.
type Config struct {
	Host      string         `mapstructure:"host" validate:"required"`
	Port      int            `mapstructure:"port" validate:"min=1,max=65535"`
	APIURL    string         `mapstructure:"api_url" validate:"omitempty,url"`
	Subject   string         `mapstructure:"subject" validate:"required"`
	Mode      string         `mapstructure:"mode" validate:"oneof=auto http mock"`
	Seed      string         `mapstructure:"seed"`
	Origin    string         `mapstructure:"origin" validate:"required,url"`
	WriteMode string         `mapstructure:"write_mode" validate:"oneof=optimistic confirmed"`
	Timeout   time.Duration  `mapstructure:"timeout" validate:"gte=0"`
	Log       logging.Config `mapstructure:"log"`
	Retry     Retry          `mapstructure:"retry"`
	Breaker   Breaker        `mapstructure:"breaker"`
	Session   Session        `mapstructure:"session"`
}

// Retry configures transient-failure retries. Max 0 disables them.
type Retry struct {
	Max       int           `mapstructure:"max" validate:"gte=0"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

// Breaker configures the client circuit breaker.
type Breaker struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio" validate:"gte=0,lte=1"`
}

// Session configures the JWT-backed identity provider.
type Session struct {
	Secret           string `mapstructure:"secret"`
	Token            string `mapstructure:"token"`
	PendingToken     string `mapstructure:"pending_token"`
	AuthenticatorURL string `mapstructure:"authenticator_url" validate:"omitempty,url"`
}

// BaseURL returns APIURL when set, otherwise http://host:port.
func (c *Config) BaseURL() string {
	if strings.TrimSpace(c.APIURL) != "" {
		return strings.TrimRight(c.APIURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("api_url", "")
	v.SetDefault("subject", DefaultSubject)
	v.SetDefault("mode", "auto")
	v.SetDefault("seed", "")
	v.SetDefault("origin", DefaultOrigin)
	v.SetDefault("write_mode", "optimistic")
	v.SetDefault("timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file", "")

	v.SetDefault("retry.max", 0)
	v.SetDefault("retry.base_delay", 250*time.Millisecond)
	v.SetDefault("retry.max_delay", 2*time.Second)

	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", 30*time.Second)
	v.SetDefault("breaker.timeout", 10*time.Second)
	v.SetDefault("breaker.min_requests", 3)
	v.SetDefault("breaker.failure_ratio", 0.6)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.token", "")
	v.SetDefault("session.pending_token", "")
	v.SetDefault("session.authenticator_url", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path (or ./cosmo.yaml when path is empty and
// the file exists), overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	return LoadWith(New(), path)
}

// LoadWith is Load for a caller-prepared viper instance, typically one with
// command-line flags bound on top of New.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cosmo")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates a configured viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.WriteMode = strings.ToLower(strings.TrimSpace(cfg.WriteMode))
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New()
