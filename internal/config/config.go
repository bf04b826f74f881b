// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads warden configuration.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, environment variables, then command-line flags. Environment
// keys use the WARDEN_ prefix with a double underscore between sections
// (WARDEN_COOKIE__SAME_SITE sets cookie.same_site); DATABASE_URL is also
// honoured for database.url.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/cookie"
	"github.com/holomush/warden/internal/logging"
)

// EnvPrefix prefixes every warden environment variable.
const EnvPrefix = "WARDEN_"

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete warden configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	Hash     HashConfig     `koanf:"hash"`
	Session  SessionConfig  `koanf:"session"`
	Cookie   CookieConfig   `koanf:"cookie"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
	// PublicOrigin prefixes pagination links, e.g. "https://auth.example.com".
	PublicOrigin string `koanf:"public_origin"`
	// TLSCertFile and TLSKeyFile switch the listener to HTTPS when both
	// are set.
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// TLSEnabled reports whether the API listener serves HTTPS.
func (h HTTPConfig) TLSEnabled() bool {
	return h.TLSCertFile != ""
}

// MetricsConfig configures the metrics and health listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `koanf:"driver"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL            string `koanf:"url"`
	ConnectRetries uint64 `koanf:"connect_retries"`
	MaxConns       int32  `koanf:"max_conns"`
	// AutoMigrate applies pending migrations when serve starts.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// HashConfig selects the password hashing algorithm.
type HashConfig struct {
	Algorithm string `koanf:"algorithm"`
	Cost      int    `koanf:"cost"`
}

// SessionConfig configures session lifetime and maintenance.
type SessionConfig struct {
	Validity      time.Duration `koanf:"validity"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	CreateRetries int           `koanf:"create_retries"`
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Name   string `koanf:"name"`
	Secret string `koanf:"secret"`
	// TTL defaults to the session validity when zero.
	TTL      time.Duration `koanf:"ttl"`
	Domain   string        `koanf:"domain"`
	Path     string        `koanf:"path"`
	Secure   bool          `koanf:"secure"`
	SameSite string        `koanf:"same_site"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:     HTTPConfig{Addr: ":8080", PublicOrigin: "http://localhost:8080"},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:      LogConfig{Format: "json", Level: "info"},
		Store:    StoreConfig{Driver: DriverPostgres},
		Database: DatabaseConfig{ConnectRetries: 5, AutoMigrate: true},
		Hash:     HashConfig{Algorithm: auth.AlgorithmBcrypt, Cost: auth.DefaultHashCost},
		Session: SessionConfig{
			Validity:      auth.DefaultSessionValidity,
			SweepInterval: 10 * time.Minute,
			CreateRetries: auth.DefaultCreateRetries,
		},
		Cookie: CookieConfig{
			Name:     cookie.DefaultName,
			Path:     cookie.DefaultPath,
			Secure:   true,
			SameSite: "lax",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty), the environment and the changed flags in flags (may be nil).
// Flag names map to keys by replacing the first "-" with "." (--http-addr
// sets http.addr); flags named in skipFlags, such as --config, are ignored.
func Load(path string, flags *pflag.FlagSet, skipFlags ...string) (Config, error) {
	cfg, err := load(path, flags, skipFlags)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabase is Load for commands that only talk to PostgreSQL, such as
// migrate and seed. Only the database section is validated.
func LoadDatabase(path string, flags *pflag.FlagSet, skipFlags ...string) (Config, error) {
	cfg, err := load(path, flags, skipFlags)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func load(path string, flags *pflag.FlagSet, skipFlags []string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider("DATABASE_URL", ".", func(key string) string {
		if key == "DATABASE_URL" {
			return "database.url"
		}
		return ""
	}), nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "DATABASE_URL").Wrap(err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}

	if flags != nil {
		skip := make(map[string]bool, len(skipFlags))
		for _, name := range skipFlags {
			skip[name] = true
		}
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || skip[f.Name] {
				return "", nil
			}
			return flagKey(f.Name), f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	if cfg.Cookie.TTL == 0 {
		cfg.Cookie.TTL = cfg.Session.Validity
	}
	return cfg, nil
}

// envKey maps WARDEN_COOKIE__SAME_SITE to cookie.same_site.
func envKey(name string) string {
	name = strings.TrimPrefix(name, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

// flagKey maps http-addr to http.addr and cookie-same-site to cookie.same_site.
func flagKey(name string) string {
	section, rest, found := strings.Cut(name, "-")
	if !found {
		return name
	}
	return section + "." + strings.ReplaceAll(rest, "-", "_")
}

func invalid(key string, value any, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf(format, args...)
}

// ValidateDatabase checks the database section.
func (c Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "", "database.url (or DATABASE_URL) is required for the postgres store")
	}
	if c.Database.MaxConns < 0 {
		return invalid("database.max_conns", c.Database.MaxConns, "database.max_conns cannot be negative")
	}
	return nil
}

// Validate checks that values are within range.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", c.HTTP.Addr, "http.addr is required")
	}
	if u, err := url.Parse(c.HTTP.PublicOrigin); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("http.public_origin", c.HTTP.PublicOrigin, "http.public_origin must be an absolute URL")
	}
	if (c.HTTP.TLSCertFile == "") != (c.HTTP.TLSKeyFile == "") {
		return invalid("http.tls_key_file", c.HTTP.TLSKeyFile, "http.tls_cert_file and http.tls_key_file must be set together")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "log.level must be debug, info, warn or error")
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if err := c.ValidateDatabase(); err != nil {
			return err
		}
	case DriverMemory:
	default:
		return invalid("store.driver", c.Store.Driver, "store.driver must be %q or %q", DriverPostgres, DriverMemory)
	}
	if c.Hash.Algorithm != auth.AlgorithmBcrypt && c.Hash.Algorithm != auth.AlgorithmArgon2id {
		return invalid("hash.algorithm", c.Hash.Algorithm, "hash.algorithm must be %q or %q", auth.AlgorithmBcrypt, auth.AlgorithmArgon2id)
	}
	if c.Hash.Cost < 0 {
		return invalid("hash.cost", c.Hash.Cost, "hash.cost cannot be negative")
	}
	if c.Session.Validity <= 0 {
		return invalid("session.validity", c.Session.Validity, "session.validity must be positive")
	}
	if c.Session.SweepInterval < 0 {
		return invalid("session.sweep_interval", c.Session.SweepInterval, "session.sweep_interval cannot be negative")
	}
	if c.Session.CreateRetries < 0 {
		return invalid("session.create_retries", c.Session.CreateRetries, "session.create_retries cannot be negative")
	}
	if len(c.Cookie.Secret) < cookie.MinSecretBytes {
		return invalid("cookie.secret", len(c.Cookie.Secret), "cookie.secret must be at least %d bytes", cookie.MinSecretBytes)
	}
	if c.Cookie.TTL <= 0 {
		return invalid("cookie.ttl", c.Cookie.TTL, "cookie.ttl must be positive")
	}
	if _, err := cookie.ParseSameSite(c.Cookie.SameSite); err != nil {
		return invalid("cookie.same_site", c.Cookie.SameSite, "cookie.same_site must be lax, strict or none")
	}
	return nil
}

// CookieCodecConfig converts the cookie section for cookie.New.
func (c Config) CookieCodecConfig() (cookie.Config, error) {
	sameSite, err := cookie.ParseSameSite(c.Cookie.SameSite)
	if err != nil {
		return cookie.Config{}, err
	}
	return cookie.Config{
		Name:     c.Cookie.Name,
		Secret:   []byte(c.Cookie.Secret),
		TTL:      c.Cookie.TTL,
		Domain:   c.Cookie.Domain,
		Path:     c.Cookie.Path,
		Secure:   c.Cookie.Secure,
		SameSite: sameSite,
	}, nil
}
