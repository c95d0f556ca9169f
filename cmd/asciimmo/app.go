package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/asciimmo/asciimmo/internal/authclient"
	"github.com/asciimmo/asciimmo/internal/config"
	"github.com/asciimmo/asciimmo/internal/frontend"
	"github.com/asciimmo/asciimmo/internal/logging"
	"github.com/asciimmo/asciimmo/internal/observability"
	"github.com/asciimmo/asciimmo/internal/session"
	"github.com/asciimmo/asciimmo/internal/tracing"
	"github.com/asciimmo/asciimmo/internal/worldclient"
	"github.com/asciimmo/asciimmo/pkg/errutil"
)

// clientApp is the wired client shared by every subcommand.
type clientApp struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *observability.Metrics
	auth       *authclient.Client
	world      *worldclient.Client
	sessions   *session.Manager
	controller *frontend.Controller
	closers    []func(context.Context) error
}

// newClientApp loads configuration and wires the client. The persisted
// session is restored before it returns.
func newClientApp(ctx context.Context, cmd *cobra.Command, opts *rootOptions, deps *Deps) (*clientApp, error) {
	cfg, err := deps.configLoader()(config.LoadOptions{
		ConfigFile: opts.configFile,
		EnvFile:    opts.envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	logger := logging.SetDefault(logging.Options{
		Service: "asciimmo",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})

	a := &clientApp{cfg: cfg, logger: logger}

	shutdownTracing, err := deps.tracingSetup()(ctx, tracing.Options{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "asciimmo",
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	httpClient, err := deps.httpClientFactory()(cfg.TLS)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to load TLS settings: %w", err)
	}

	a.registry = observability.NewRegistry()
	a.metrics = observability.NewMetrics(a.registry)

	a.auth, err = authclient.New(cfg.Auth.URL, authclient.Options{HTTPClient: httpClient, Logger: logger})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	store, closeStore, err := deps.storeFactory()(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return closeStore() })

	a.sessions, err = session.NewManager(a.auth, store, session.Options{
		TTL:     cfg.Session.TTL,
		Logger:  logger,
		Metrics: a.metrics,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	if _, err := a.sessions.Restore(ctx); err != nil {
		errutil.LogErrorContext(ctx, logger, "could not restore session, continuing logged out", err)
	}

	a.world, err = worldclient.New(cfg.World.URL, worldclient.Options{
		HTTPClient:  httpClient,
		Logger:      logger,
		Metrics:     a.metrics,
		Tokens:      a.sessions,
		FallbackURL: cfg.World.FallbackURL,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create world client: %w", err)
	}

	a.controller, err = frontend.New(a.sessions, a.world, logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	logger.Debug("client ready",
		"auth_url", cfg.Auth.URL,
		"world_url", cfg.World.URL,
		"session_store", cfg.Session.Store,
	)
	return a, nil
}

// Close releases the store and flushes spans, in reverse order of setup.
func (a *clientApp) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("error during shutdown", "error", err)
		}
	}
	a.closers = nil
}

// withClientApp wires the client, runs fn and releases everything afterwards.
func withClientApp(cmd *cobra.Command, opts *rootOptions, deps *Deps, fn func(a *clientApp) error) error {
	ctx := cmd.Context()
	a, err := newClientApp(ctx, cmd, opts, deps)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(a)
}

var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
)

// printStatus writes a status line and returns errReported for error statuses.
func printStatus(w io.Writer, status frontend.Status) error {
	if status.Message == "" {
		return nil
	}
	if status.IsError {
		_, _ = errorColor.Fprintln(w, status.Message)
		return errReported
	}
	_, _ = successColor.Fprintln(w, status.Message)
	return nil
}
