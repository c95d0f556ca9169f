// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

// Package config loads client settings from defaults, a YAML file, a .env
// file, ASCIIMMO_ environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/asciimmo/asciimmo/internal/logging"
)

// Session store kinds.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Error codes raised by this package.
const (
	CodeInvalid    = "CONFIG_INVALID"
	CodeLoadFailed = "CONFIG_LOAD_FAILED"
)

// Config holds every client setting.
type Config struct {
	Auth        AuthConfig    `koanf:"auth"`
	World       WorldConfig   `koanf:"world"`
	Session     SessionConfig `koanf:"session"`
	TLS         TLSConfig     `koanf:"tls"`
	Log         LogConfig     `koanf:"log"`
	Tracing     TracingConfig `koanf:"tracing"`
	MetricsAddr string        `koanf:"metrics_addr"`
}

// AuthConfig locates the Auth Service.
type AuthConfig struct {
	URL string `koanf:"url"`
}

// WorldConfig locates the World Service and the static fallback map.
type WorldConfig struct {
	URL         string `koanf:"url"`
	FallbackURL string `koanf:"fallback_url"`
}

// SessionConfig selects where sessions are persisted.
type SessionConfig struct {
	Store string        `koanf:"store"`
	Path  string        `koanf:"path"`
	TTL   time.Duration `koanf:"ttl"`
	Redis RedisConfig   `koanf:"redis"`
}

// RedisConfig is used when Session.Store is "redis".
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// TLSConfig adjusts how HTTPS services are trusted.
type TLSConfig struct {
	CAFile             string `koanf:"ca_file"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// TracingConfig enables OTLP span export.
type TracingConfig struct {
	Endpoint string `koanf:"endpoint"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validateServiceURL("auth.url", c.Auth.URL); err != nil {
		return err
	}
	if err := validateServiceURL("world.url", c.World.URL); err != nil {
		return err
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreFile:
		if c.Session.Path == "" {
			return oops.Code(CodeInvalid).With("key", "session.path").
				Errorf("session.path is required for the file store")
		}
	case StoreRedis:
		if c.Session.Redis.Addr == "" {
			return oops.Code(CodeInvalid).With("key", "session.redis.addr").
				Errorf("session.redis.addr is required for the redis store")
		}
		if c.Session.Redis.DB < 0 {
			return oops.Code(CodeInvalid).With("key", "session.redis.db").
				Errorf("session.redis.db must not be negative")
		}
	default:
		return oops.Code(CodeInvalid).With("key", "session.store").With("value", c.Session.Store).
			Errorf("session.store must be one of file, memory, redis")
	}
	if c.Session.TTL <= 0 {
		return oops.Code(CodeInvalid).With("key", "session.ttl").
			Errorf("session.ttl must be positive")
	}

	switch c.Log.Format {
	case "", "json", "text":
	default:
		return oops.Code(CodeInvalid).With("key", "log.format").With("value", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code(CodeInvalid).With("key", "log.level").Errorf("%v", err)
	}
	if c.Tracing.Endpoint != "" {
		if err := validateServiceURL("tracing.endpoint", c.Tracing.Endpoint); err != nil {
			return err
		}
	}
	return nil
}

func validateServiceURL(key, raw string) error {
	if raw == "" {
		return oops.Code(CodeInvalid).With("key", key).Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return oops.Code(CodeInvalid).With("key", key).Wrapf(err, "%s is not a URL", key)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return oops.Code(CodeInvalid).With("key", key).With("value", raw).
			Errorf("%s must be an http or https URL", key)
	}
	if u.Host == "" {
		return oops.Code(CodeInvalid).With("key", key).With("value", raw).
			Errorf("%s must include a host", key)
	}
	return nil
}
