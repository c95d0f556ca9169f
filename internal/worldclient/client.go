// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

// Package worldclient fetches rendered ASCII world maps from the World Service.
package worldclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/asciimmo/asciimmo/internal/observability"
	"github.com/asciimmo/asciimmo/pkg/errutil"
)

// CodeFetch marks every failure raised by this package.
const CodeFetch = "WORLD_FETCH_FAILED"

// FallbackHint follows every World Service failure message.
const FallbackHint = "As a fallback, generate a map locally, save it as world.txt, " +
	"then run `asciimmo world --fallback` to display it."

// RequestIDHeader carries a per-request ULID to the service.
const RequestIDHeader = "X-Request-ID"

// Metric source labels.
const (
	SourceService  = "service"
	SourceFallback = "fallback"
)

const tracerName = "github.com/asciimmo/asciimmo/internal/worldclient"

// TokenSource supplies the current session token, or "" when logged out.
type TokenSource interface {
	SessionToken() string
}

// Request selects a map. Values are passed through unvalidated.
type Request struct {
	Seed   string
	Width  string
	Height string
}

// Options overrides client dependencies.
type Options struct {
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	Tokens      TokenSource
	FallbackURL string

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Client issues world map requests.
type Client struct {
	baseURL     *url.URL
	fallbackURL string
	httpClient  *http.Client
	tokens      TokenSource
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

// New creates a client for the World Service rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, oops.Code("WORLD_CLIENT_INVALID").Errorf("world service URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, oops.Code("WORLD_CLIENT_INVALID").With("url", baseURL).Wrap(err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, oops.Code("WORLD_CLIENT_INVALID").With("url", baseURL).
			Errorf("world service URL must be absolute")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Client{
		baseURL:     parsed,
		fallbackURL: opts.FallbackURL,
		httpClient:  httpClient,
		tokens:      opts.Tokens,
		logger:      logger.With("component", "worldclient"),
		metrics:     opts.Metrics,
		tracer:      tp.Tracer(tracerName),
	}, nil
}

// URL builds the /world request URL. session_token is appended only when
// the token source has a non-empty token.
func (c *Client) URL(req Request) string {
	return c.urlFor(req, c.token())
}

func (c *Client) urlFor(req Request, token string) string {
	var q strings.Builder
	q.WriteString("seed=")
	q.WriteString(url.QueryEscape(req.Seed))
	q.WriteString("&width=")
	q.WriteString(url.QueryEscape(req.Width))
	q.WriteString("&height=")
	q.WriteString(url.QueryEscape(req.Height))
	if token != "" {
		q.WriteString("&session_token=")
		q.WriteString(url.QueryEscape(token))
	}
	u := c.baseURL.JoinPath("world")
	u.RawQuery = q.String()
	return u.String()
}

// Generate fetches a map and returns the response body verbatim.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := c.tracer.Start(ctx, "world.generate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	token := c.token()
	span.SetAttributes(
		attribute.String("world.seed", req.Seed),
		attribute.Bool("world.authenticated", token != ""),
	)

	body, err := c.get(ctx, c.urlFor(req, token))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "fetch failed")
		c.metrics.RecordWorld(SourceService, observability.OutcomeFailed)
		c.logger.WarnContext(ctx, "world fetch failed", "seed", req.Seed, "error", err)
		return "", oops.Code(CodeFetch).
			With("source", SourceService).
			With("seed", req.Seed).
			Public(fmt.Sprintf("Error fetching /world: %s\n\n%s", err.Error(), FallbackHint)).
			Wrap(err)
	}
	c.metrics.RecordWorld(SourceService, observability.OutcomeOK)
	return body, nil
}

// LoadFallback reads the static world.txt. http(s) URLs are fetched, file://
// URLs and bare paths are read from disk.
func (c *Client) LoadFallback(ctx context.Context) (string, error) {
	body, err := c.loadFallback(ctx)
	if err != nil {
		c.metrics.RecordWorld(SourceFallback, observability.OutcomeFailed)
		return "", oops.Code(CodeFetch).
			With("source", SourceFallback).
			With("location", c.fallbackURL).
			Public("Error loading world.txt: " + err.Error()).
			Wrap(err)
	}
	c.metrics.RecordWorld(SourceFallback, observability.OutcomeOK)
	return body, nil
}

func (c *Client) loadFallback(ctx context.Context) (string, error) {
	location := strings.TrimSpace(c.fallbackURL)
	if location == "" {
		return "", fmt.Errorf("no fallback location configured")
	}
	u, err := url.Parse(location)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return c.get(ctx, location)
		case "file":
			location = u.Path
		}
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Health probes GET /health on the World Service.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.get(ctx, c.baseURL.JoinPath("health").String()); err != nil {
		return oops.Code(CodeFetch).With("source", "health").Wrap(err)
	}
	return nil
}

// IsFetch reports whether err came from this package.
func IsFetch(err error) bool { return errutil.HasCode(err, CodeFetch) }

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.SessionToken()
}

// get performs one GET and returns the body of a 2xx answer.
func (c *Client) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(RequestIDHeader, ulid.Make().String())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
