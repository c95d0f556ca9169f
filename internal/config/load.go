// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/asciimmo/asciimmo/internal/xdg"
)

// EnvPrefix marks environment variables read as configuration.
// A double underscore separates nesting levels: ASCIIMMO_SESSION__REDIS__ADDR.
const EnvPrefix = "ASCIIMMO_"

// DefaultEnvFile is read when present and no --env-file is given.
const DefaultEnvFile = ".env"

// Defaults returns the built-in settings keyed by koanf path.
func Defaults() map[string]any {
	return map[string]any{
		"auth.url":                 "https://localhost:8081",
		"world.url":                "https://localhost:8080",
		"world.fallback_url":       "world.txt",
		"session.store":            StoreFile,
		"session.path":             xdg.SessionFile(),
		"session.ttl":              "720h",
		"session.redis.addr":       "localhost:6379",
		"session.redis.password":   "",
		"session.redis.db":         0,
		"session.redis.prefix":     "asciimmo",
		"tls.ca_file":              "",
		"tls.insecure_skip_verify": false,
		"log.format":               "text",
		"log.level":                "info",
		"tracing.endpoint":         "",
		"metrics_addr":             "",
	}
}

// flagKeys maps override flag names to configuration keys.
var flagKeys = map[string]string{
	"auth-url":      "auth.url",
	"world-url":     "world.url",
	"fallback-url":  "world.fallback_url",
	"session-store": "session.store",
	"session-file":  "session.path",
	"redis-addr":    "session.redis.addr",
	"ca-file":       "tls.ca_file",
	"insecure":      "tls.insecure_skip_verify",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"metrics-addr":  "metrics_addr",
	"otlp-endpoint": "tracing.endpoint",
}

// RegisterFlags adds the override flags to fs. Flag defaults are empty so
// that only flags the user sets take precedence over other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("auth-url", "", "auth service base URL")
	fs.String("world-url", "", "world service base URL")
	fs.String("fallback-url", "", "location of the static world.txt (URL or path)")
	fs.String("session-store", "", "session store: file, memory or redis")
	fs.String("session-file", "", "session file for the file store")
	fs.String("redis-addr", "", "redis address for the redis store")
	fs.String("ca-file", "", "extra CA bundle (PEM) to trust")
	fs.Bool("insecure", false, "skip TLS certificate verification")
	fs.String("log-format", "", "log format: text or json")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.String("otlp-endpoint", "", "export traces to this OTLP/HTTP collector URL")
}

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// ConfigFile is a YAML file. When empty the XDG config file is read if
	// it exists; an explicit file must exist.
	ConfigFile string
	// EnvFile is a dotenv file. When empty DefaultEnvFile is read if it
	// exists; an explicit file must exist.
	EnvFile string
	// Flags holds override flags registered with RegisterFlags. Optional.
	Flags *pflag.FlagSet
}

// Load builds and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")
	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code(CodeLoadFailed).With("key", key).Wrap(err)
		}
	}

	configFile, required := opts.ConfigFile, opts.ConfigFile != ""
	if !required {
		configFile = xdg.ConfigFile()
	}
	if ok, err := present(configFile, required); err != nil {
		return nil, err
	} else if ok {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeLoadFailed).With("path", configFile).Wrapf(err, "read config file")
		}
	}

	envFile, required := opts.EnvFile, opts.EnvFile != ""
	if !required {
		envFile = DefaultEnvFile
	}
	if ok, err := present(envFile, required); err != nil {
		return nil, err
	} else if ok {
		// Variables already in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil {
			return nil, oops.Code(CodeLoadFailed).With("path", envFile).Wrapf(err, "read env file")
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code(CodeLoadFailed).Wrapf(err, "read environment")
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeLoadFailed).Wrapf(err, "read flags")
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeLoadFailed).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns ASCIIMMO_SESSION__REDIS__ADDR into session.redis.addr.
func envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(name, "__", ".")
}

// present reports whether path exists. A missing required file is an error.
func present(path string, required bool) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist) && !required:
		return false, nil
	default:
		return false, oops.Code(CodeLoadFailed).With("path", path).Wrapf(err, "config source")
	}
}
