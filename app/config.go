// Package app wires the portal together: configuration, the identity
// provider adapter, the access gate and the HTTP server.
package app

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// ListenAddr is the address the HTTP server listens on (e.g. :8080).
	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	// KratosPublicURL is the provider's public (self-service) API base URL.
	KratosPublicURL string `mapstructure:"KRATOS_PUBLIC_URL"`
	// KratosAdminURL is the provider's admin API base URL.
	KratosAdminURL string `mapstructure:"KRATOS_ADMIN_URL"`
	// JWKSURL enables the local session-token fast path when set. Empty
	// means every session check round-trips to the provider.
	JWKSURL string `mapstructure:"JWKS_URL"`
	// SessionCookie names the cookie carrying the provider session token.
	SessionCookie string `mapstructure:"SESSION_COOKIE"`
	// ProviderTimeout bounds each provider call (e.g. "10s").
	ProviderTimeout string `mapstructure:"PROVIDER_TIMEOUT"`
	// FlowTTL is the lifetime of an in-progress sign-in/sign-up flow.
	FlowTTL string `mapstructure:"FLOW_TTL"`
	// OrgGating requires an active organization before protected pages open.
	OrgGating bool `mapstructure:"ORG_GATING"`
	// PendingTaskGating routes sessions with outstanding tasks to the task
	// page before anything else.
	PendingTaskGating bool `mapstructure:"PENDING_TASK_GATING"`
	// TemplateDir is where the HTML templates live.
	TemplateDir string `mapstructure:"TEMPLATE_DIR"`
	// TOTPIssuer is the issuer label shown in authenticator apps.
	TOTPIssuer string `mapstructure:"TOTP_ISSUER"`
}

// LoadConfig reads .env (if present), then builds Config from the environment
// via Viper. Missing .env is ignored (e.g. in CI); env vars override .env.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("KRATOS_PUBLIC_URL", "http://127.0.0.1:4433")
	v.SetDefault("KRATOS_ADMIN_URL", "http://127.0.0.1:4434")
	v.SetDefault("JWKS_URL", "")
	v.SetDefault("SESSION_COOKIE", "portal_session")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("FLOW_TTL", "10m")
	v.SetDefault("ORG_GATING", true)
	v.SetDefault("PENDING_TASK_GATING", true)
	v.SetDefault("TEMPLATE_DIR", "templates")
	v.SetDefault("TOTP_ISSUER", "auth-portal")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("config: LISTEN_ADDR must be set")
	}
	if cfg.KratosPublicURL == "" {
		return nil, errors.New("config: KRATOS_PUBLIC_URL must be set")
	}
	if cfg.KratosAdminURL == "" {
		return nil, errors.New("config: KRATOS_ADMIN_URL must be set")
	}

	return &cfg, nil
}

// Timeout parses ProviderTimeout. Returns 10s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.ProviderTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// FlowLifetime parses FlowTTL. Returns 10m if unset or invalid.
func (c *Config) FlowLifetime() time.Duration {
	d, err := time.ParseDuration(c.FlowTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}
