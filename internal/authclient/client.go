// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

// Package authclient talks to the ASCIIMMO auth service over HTTP.
//
// Every failure is an oops error carrying one of the package codes:
//   - CodeRejected: the service answered with a well-formed refusal
//   - CodeTransport: the exchange could not be completed or decoded
//   - CodeUnhealthy: the health probe answered with a non-2xx status
//
// The public message of a rejection is the server's "message" field, or
// UnknownErrorMessage when the server sent none.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/asciimmo/asciimmo/pkg/errutil"
)

// Error codes raised by this package.
const (
	CodeRejected  = "AUTH_REJECTED"
	CodeTransport = "AUTH_TRANSPORT_FAILED"
	CodeUnhealthy = "AUTH_UNHEALTHY"
)

// UnknownErrorMessage is the public message of a rejection without a server message.
const UnknownErrorMessage = "Unknown error"

// RequestIDHeader carries a per-request ULID to the service.
const RequestIDHeader = "X-Request-ID"

const tracerName = "github.com/asciimmo/asciimmo/internal/authclient"

// Client wraps HTTP exchanges with the auth service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Options overrides client dependencies.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// New creates a client for the auth service rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, oops.Code("AUTH_CLIENT_INVALID").Errorf("auth service URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, oops.Code("AUTH_CLIENT_INVALID").With("url", baseURL).Wrap(err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, oops.Code("AUTH_CLIENT_INVALID").With("url", baseURL).
			Errorf("auth service URL must be absolute")
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
		baseURL:    parsed,
		httpClient: httpClient,
		logger:     logger.With("component", "authclient"),
		tracer:     tp.Tracer(tracerName),
	}, nil
}

// LoginResult is a successful login answer.
type LoginResult struct {
	Token   string
	Message string
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// response is the union of the auth service JSON answers.
type response struct {
	Status       string `json:"status,omitempty"`
	Message      string `json:"message,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

// Login posts credentials to /auth/login. A 2xx answer without a
// session_token is a rejection.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	const op = "login"
	body, status, err := c.exchange(ctx, op, http.MethodPost, "/auth/login", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return LoginResult{}, err
	}
	if !isSuccess(status) {
		return LoginResult{}, rejected(op, status, body.Message)
	}
	if body.SessionToken == "" {
		return LoginResult{}, oops.Code(CodeRejected).
			With("operation", op).
			With("status", status).
			Public(publicOr(body.Message)).
			Errorf("login response has no session_token")
	}
	c.logger.DebugContext(ctx, "login accepted", "username", username)
	return LoginResult{Token: body.SessionToken, Message: body.Message}, nil
}

// Register posts a new account to /auth/register and returns the server message.
// Registration never yields a session; the account must be confirmed first.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	const op = "register"
	body, status, err := c.exchange(ctx, op, http.MethodPost, "/auth/register", req)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", rejected(op, status, body.Message)
	}
	return body.Message, nil
}

// Confirm redeems an email confirmation token via GET /auth/confirm.
func (c *Client) Confirm(ctx context.Context, token string) (string, error) {
	const op = "confirm"
	path := "/auth/confirm?token=" + url.QueryEscape(token)
	body, status, err := c.exchange(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", rejected(op, status, body.Message)
	}
	return body.Message, nil
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	const op = "health"
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return transport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if !isSuccess(resp.StatusCode) {
		return oops.Code(CodeUnhealthy).
			With("operation", op).
			With("status", resp.StatusCode).
			Errorf("auth service health returned status %d", resp.StatusCode)
	}
	return nil
}

// IsRejected reports whether err is a well-formed refusal from the service.
func IsRejected(err error) bool { return errutil.HasCode(err, CodeRejected) }

// IsTransport reports whether err is a failed or undecodable exchange.
func IsTransport(err error) bool { return errutil.HasCode(err, CodeTransport) }

// exchange performs a JSON request and decodes the JSON answer whatever its status.
func (c *Client) exchange(ctx context.Context, op, method, path string, payload any) (response, int, error) {
	ctx, span := c.tracer.Start(ctx, "auth."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reqBody io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return response{}, 0, transport(op, err)
		}
		reqBody = buf
	}

	resp, err := c.do(ctx, method, path, reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "transport failure")
		c.logger.WarnContext(ctx, "auth request failed", "operation", op, "error", err)
		return response{}, 0, transport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "malformed response")
		return response{}, resp.StatusCode, oops.Code(CodeTransport).
			With("operation", op).
			With("status", resp.StatusCode).
			Public(fmt.Sprintf("malformed response from auth service (status %d)", resp.StatusCode)).
			Wrap(err)
	}
	if !isSuccess(resp.StatusCode) {
		span.SetStatus(otelcodes.Error, "rejected")
	}
	return body, resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	full := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, full.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, ulid.Make().String())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return c.httpClient.Do(req)
}

func rejected(op string, status int, message string) error {
	return oops.Code(CodeRejected).
		With("operation", op).
		With("status", status).
		Public(publicOr(message)).
		Errorf("%s rejected with status %d", op, status)
}

func transport(op string, err error) error {
	return oops.Code(CodeTransport).
		With("operation", op).
		Public(err.Error()).
		Wrap(err)
}

func publicOr(message string) string {
	if strings.TrimSpace(message) == "" {
		return UnknownErrorMessage
	}
	return message
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
