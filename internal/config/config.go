// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authd settings from a YAML file, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authd/internal/xdg"
)

// EnvPrefix namespaces every environment variable except the two store URLs.
const EnvPrefix = "AUTHD_"

// Default values for serve flags.
const (
	DefaultPort            = 14514
	DefaultBindIPv4        = "0.0.0.0"
	DefaultBindIPv6        = "::"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultMetricsAddr     = "127.0.0.1:9100"
	DefaultConnectRetries  = 5
	DefaultShutdownTimeout = 10 * time.Second
)

// Config is the resolved service configuration.
type Config struct {
	RedisURL    string `koanf:"redis-url"`
	PostgresURL string `koanf:"postgres-url"`

	Port     int    `koanf:"port"`
	BindIPv4 string `koanf:"bind-ipv4"`
	BindIPv6 string `koanf:"bind-ipv6"`

	LogLevel    string `koanf:"log-level"`
	LogFormat   string `koanf:"log-format"`
	MetricsAddr string `koanf:"metrics-addr"`

	PGMaxConns     int `koanf:"pg-max-conns"`
	RedisPoolSize  int `koanf:"redis-pool-size"`
	ConnectRetries int `koanf:"connect-retries"`

	IssueRate  float64 `koanf:"issue-rate"`
	IssueBurst int     `koanf:"issue-burst"`

	TLSCert string `koanf:"tls-cert"`
	TLSKey  string `koanf:"tls-key"`

	ShutdownTimeout time.Duration `koanf:"shutdown-timeout"`
}

// RegisterFlags adds every configuration flag, with its default, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("redis-url", "", "session cache URL (env REDIS_URL)")
	fs.String("postgres-url", "", "credential store URL (env POSTGRES_URL)")
	fs.Int("port", DefaultPort, "TCP port bound on both address families")
	fs.String("bind-ipv4", DefaultBindIPv4, "IPv4 bind address")
	fs.String("bind-ipv6", DefaultBindIPv6, "IPv6 bind address")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.Int("pg-max-conns", 0, "credential pool size (0 = driver default)")
	fs.Int("redis-pool-size", 0, "session cache pool size (0 = driver default)")
	fs.Int("connect-retries", DefaultConnectRetries, "extra startup ping attempts per store")
	fs.Float64("issue-rate", 0, "IssueToken calls per second (0 = unlimited)")
	fs.Int("issue-burst", 0, "IssueToken burst when issue-rate is set")
	fs.String("tls-cert", "", "server certificate PEM (enables TLS with tls-key)")
	fs.String("tls-key", "", "server private key PEM")
	fs.Duration("shutdown-timeout", DefaultShutdownTimeout, "graceful shutdown deadline")
}

// envKey maps REDIS_URL, POSTGRES_URL and AUTHD_FOO_BAR to koanf keys.
// Everything else is ignored.
func envKey(name string) string {
	switch name {
	case "REDIS_URL":
		return "redis-url"
	case "POSTGRES_URL":
		return "postgres-url"
	}
	if rest, ok := strings.CutPrefix(name, EnvPrefix); ok && rest != "" {
		return strings.ReplaceAll(strings.ToLower(rest), "_", "-")
	}
	return ""
}

// Load layers configFile (optional), the environment and the flags in fs,
// which must have been set up with RegisterFlags. An explicit configFile
// must exist; an empty one falls back to DefaultFile when present.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	k := koanf.New(".")

	path := configFile
	if path == "" {
		path = DefaultFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	envProvider := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		return envKey(key), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	// Unchanged flags only fill keys that no earlier source set.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "decode").Wrap(err)
	}
	return &cfg, nil
}

// DefaultFile returns the XDG config file path when it exists, else "".
func DefaultFile() string {
	path, err := xdg.ConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "redis-url").Errorf("REDIS_URL is required")
	}
	if c.PostgresURL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "postgres-url").Errorf("POSTGRES_URL is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return oops.Code("CONFIG_INVALID").With("field", "port").With("port", c.Port).Errorf("port must be between 0 and 65535")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("field", "log-format").Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.ConnectRetries < 0 {
		return oops.Code("CONFIG_INVALID").With("field", "connect-retries").Errorf("connect-retries cannot be negative")
	}
	if c.PGMaxConns < 0 || c.RedisPoolSize < 0 {
		return oops.Code("CONFIG_INVALID").With("field", "pool-size").Errorf("pool sizes cannot be negative")
	}
	if c.IssueRate < 0 || c.IssueBurst < 0 {
		return oops.Code("CONFIG_INVALID").With("field", "issue-rate").Errorf("issue rate and burst cannot be negative")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return oops.Code("CONFIG_INVALID").With("field", "tls").Errorf("tls-cert and tls-key must be set together")
	}
	if c.ShutdownTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").With("field", "shutdown-timeout").Errorf("shutdown-timeout must be positive")
	}
	return nil
}

// TLSEnabled reports whether a server certificate is configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
