package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/asciimmo/asciimmo/internal/config"
	"github.com/asciimmo/asciimmo/internal/observability"
	"github.com/asciimmo/asciimmo/internal/session"
	"github.com/asciimmo/asciimmo/internal/session/redisstore"
	"github.com/asciimmo/asciimmo/internal/tls"
	"github.com/asciimmo/asciimmo/internal/tracing"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConfigLoader builds the configuration.
	// Default: config.Load
	ConfigLoader func(opts config.LoadOptions) (*config.Config, error)

	// StoreFactory opens the configured session store and returns its closer.
	// Default: openStore
	StoreFactory func(ctx context.Context, cfg *config.Config) (session.Store, func() error, error)

	// HTTPClientFactory builds the HTTP client shared by both services.
	// Default: newHTTPClient
	HTTPClientFactory func(cfg config.TLSConfig) (*http.Client, error)

	// PasswordReader prompts for a password without echo.
	// Default: readPassword
	PasswordReader func(cmd *cobra.Command, prompt string) (string, error)

	// TracingSetup installs span export.
	// Default: tracing.Setup
	TracingSetup func(ctx context.Context, opts tracing.Options) (func(context.Context) error, error)

	// ObservabilityServerFactory creates the metrics server used by the shell.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, gatherer prometheus.Gatherer, ready observability.ReadinessChecker) ObservabilityServer
}

// ObservabilityServer is the subset of observability.Server the shell uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *Deps) configLoader() func(config.LoadOptions) (*config.Config, error) {
	if d != nil && d.ConfigLoader != nil {
		return d.ConfigLoader
	}
	return config.Load
}

func (d *Deps) storeFactory() func(context.Context, *config.Config) (session.Store, func() error, error) {
	if d != nil && d.StoreFactory != nil {
		return d.StoreFactory
	}
	return openStore
}

func (d *Deps) httpClientFactory() func(config.TLSConfig) (*http.Client, error) {
	if d != nil && d.HTTPClientFactory != nil {
		return d.HTTPClientFactory
	}
	return newHTTPClient
}

func (d *Deps) passwordReader() func(*cobra.Command, string) (string, error) {
	if d != nil && d.PasswordReader != nil {
		return d.PasswordReader
	}
	return readPassword
}

func (d *Deps) tracingSetup() func(context.Context, tracing.Options) (func(context.Context) error, error) {
	if d != nil && d.TracingSetup != nil {
		return d.TracingSetup
	}
	return tracing.Setup
}

func (d *Deps) observabilityServerFactory() func(string, prometheus.Gatherer, observability.ReadinessChecker) ObservabilityServer {
	if d != nil && d.ObservabilityServerFactory != nil {
		return d.ObservabilityServerFactory
	}
	return func(addr string, gatherer prometheus.Gatherer, ready observability.ReadinessChecker) ObservabilityServer {
		return observability.NewServer(addr, gatherer, ready)
	}
}

// openStore builds the session store selected by cfg.Session.Store.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.Session.Store {
	case config.StoreMemory:
		return session.NewMemoryStore(), noClose, nil
	case config.StoreRedis:
		store, closeFn, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
			Prefix:   cfg.Session.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, closeFn, nil
	default:
		store, err := session.NewFileStore(cfg.Session.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, noClose, nil
	}
}

func newHTTPClient(cfg config.TLSConfig) (*http.Client, error) {
	tlsConfig, err := tls.LoadClientTLS(tls.ClientOptions{
		CAFile:             cfg.CAFile,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	return tls.NewHTTPClient(tlsConfig), nil
}

// readPassword reads without echo from a terminal, or one line otherwise.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	out := cmd.ErrOrStderr()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = io.WriteString(out, prompt)
		pw, err := term.ReadPassword(int(f.Fd()))
		_, _ = io.WriteString(out, "\n")
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	_, _ = io.WriteString(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
