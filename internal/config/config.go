// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

// Package config loads process configuration from a YAML file, environment
// variables, and command-line flags, in that order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Defaults applied before any provider is loaded.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultMetricsAddr     = "127.0.0.1:9100"
	DefaultIssuer          = "finman"
	DefaultAuthTokenTTL    = 60 * time.Minute
	DefaultConfirmTokenTTL = 60 * time.Minute
	DefaultResetTokenTTL   = 30 * time.Minute
	DefaultFrontendBaseURL = "http://localhost:5173"
	DefaultNotifyTimeout   = 10 * time.Second
	DefaultLogFormat       = "json"
	DefaultSMTPPort        = 587

	// envPrefix namespaces environment overrides, e.g. FINMAN_JWT__SECRET.
	envPrefix = "FINMAN_"
)

// Config holds all process configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	JWT      JWTConfig      `koanf:"jwt"`
	Tokens   TokensConfig   `koanf:"tokens"`
	Frontend FrontendConfig `koanf:"frontend"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Notify   NotifyConfig   `koanf:"notify"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the observability listener settings.
// Empty Addr disables the metrics server.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// JWTConfig holds token-signing settings. Secret is required: startup fails
// without it rather than degrading to unsigned tokens.
type JWTConfig struct {
	Secret  string        `koanf:"secret"`
	Issuer  string        `koanf:"issuer"`
	AuthTTL time.Duration `koanf:"auth_ttl"`
}

// TokensConfig holds the lifetimes of single-purpose action tokens.
type TokensConfig struct {
	ConfirmTTL time.Duration `koanf:"confirm_ttl"`
	ResetTTL   time.Duration `koanf:"reset_ttl"`
}

// FrontendConfig holds the base URL used to build confirmation and
// password-reset links.
type FrontendConfig struct {
	BaseURL string `koanf:"base_url"`
}

// SMTPConfig holds outbound mail settings. An empty Host selects the
// log-only notifier.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// NotifyConfig bounds the synchronous wait on outbound notifications.
type NotifyConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"`
}

// New returns a Config populated with defaults only.
func New() *Config {
	return &Config{
		HTTP:     HTTPConfig{Addr: DefaultHTTPAddr},
		Metrics:  MetricsConfig{Addr: DefaultMetricsAddr},
		JWT:      JWTConfig{Issuer: DefaultIssuer, AuthTTL: DefaultAuthTokenTTL},
		Tokens:   TokensConfig{ConfirmTTL: DefaultConfirmTokenTTL, ResetTTL: DefaultResetTokenTTL},
		Frontend: FrontendConfig{BaseURL: DefaultFrontendBaseURL},
		SMTP:     SMTPConfig{Port: DefaultSMTPPort},
		Notify:   NotifyConfig{Timeout: DefaultNotifyTimeout},
		Log:      LogConfig{Format: DefaultLogFormat},
	}
}

// Load builds a Config from the optional YAML file at path, FINMAN_*
// environment variables, and the given flag set. Later sources win.
// Either file or flags may be empty/nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	// FINMAN_JWT__SECRET -> jwt.secret; double underscore separates levels so
	// single underscores survive inside key names (base_url, auth_ttl).
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := New()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}
	return cfg, nil
}

// Validate checks settings that must be present before the server can start.
// A missing signing secret is a startup error, never a per-request one.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return oops.Code("CONFIG_JWT_SECRET_MISSING").
			Errorf("jwt.secret is required")
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return oops.Code("CONFIG_JWT_ISSUER_MISSING").
			Errorf("jwt.issuer is required")
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return oops.Code("CONFIG_DATABASE_URL_MISSING").
			Errorf("database.url is required")
	}
	return nil
}
