// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

// Package frontend turns user actions into session and world calls and
// keeps the state a UI renders: which form is shown, who is logged in, the
// last status line and the last map.
package frontend

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/asciimmo/asciimmo/internal/authclient"
	"github.com/asciimmo/asciimmo/internal/session"
	"github.com/asciimmo/asciimmo/internal/worldclient"
	"github.com/asciimmo/asciimmo/pkg/errutil"
)

// Status messages shown after an action.
const (
	MsgRegistered = "Registration successful! Please check your email to confirm your account."
	MsgLoggedIn   = "Login successful!"
	MsgLoggedOut  = "Logged out successfully"
)

// View is the screen a UI should render.
type View int

// Views derived from the session and the form toggle.
const (
	ViewLoginForm View = iota
	ViewRegisterForm
	ViewLoggedIn
)

func (v View) String() string {
	switch v {
	case ViewLoginForm:
		return "login"
	case ViewRegisterForm:
		return "register"
	case ViewLoggedIn:
		return "logged-in"
	default:
		return "unknown"
	}
}

// Status is the line of feedback shown after an action.
type Status struct {
	Message string
	IsError bool
}

// Snapshot is everything a UI needs to render.
type Snapshot struct {
	View     View
	Username string
	Status   Status
	Map      string
}

// LoginRequest is the login form.
type LoginRequest struct {
	Username string
	Password string
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// WorldRequest is the map form.
type WorldRequest struct {
	Seed   string
	Width  string
	Height string
}

// MapResult is what the map area shows: the map, or the error text in its place.
type MapResult struct {
	Text string
	Err  error
}

// SessionManager is the session API the controller drives.
type SessionManager interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Register(ctx context.Context, username, email, password string) (string, error)
	Logout(ctx context.Context)
	CurrentSession() *session.Session
}

// WorldFetcher loads maps.
type WorldFetcher interface {
	Generate(ctx context.Context, req worldclient.Request) (string, error)
	LoadFallback(ctx context.Context) (string, error)
}

// Controller handles user actions. It is safe for concurrent use.
type Controller struct {
	sessions SessionManager
	world    WorldFetcher
	logger   *slog.Logger

	mu           sync.Mutex
	showRegister bool
	status       Status
	mapText      string
}

// New creates a controller.
func New(sessions SessionManager, world WorldFetcher, logger *slog.Logger) (*Controller, error) {
	if sessions == nil {
		return nil, oops.Errorf("session manager cannot be nil")
	}
	if world == nil {
		return nil, oops.Errorf("world fetcher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessions: sessions,
		world:    world,
		logger:   logger.With("component", "frontend"),
	}, nil
}

// Login submits the login form.
func (c *Controller) Login(ctx context.Context, req LoginRequest) Status {
	logger := c.actionLogger("login")
	_, err := c.sessions.Login(ctx, req.Username, req.Password)
	status := statusFor(err, "Login failed: ", MsgLoggedIn)
	if err == nil {
		logger.InfoContext(ctx, "login action succeeded", "username", req.Username)
	} else {
		logger.InfoContext(ctx, "login action failed", "username", req.Username, "status", status.Message)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.showRegister = false
	}
	c.status = status
	return status
}

// Register submits the registration form. On success the form toggle goes
// back to the login form.
func (c *Controller) Register(ctx context.Context, req RegisterRequest) Status {
	logger := c.actionLogger("register")
	_, err := c.sessions.Register(ctx, req.Username, req.Email, req.Password)
	status := statusFor(err, "Registration failed: ", MsgRegistered)
	logger.InfoContext(ctx, "register action finished", "username", req.Username, "ok", err == nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.showRegister = false
	}
	c.status = status
	return status
}

// Logout ends the session and shows the login form.
func (c *Controller) Logout(ctx context.Context) Status {
	c.actionLogger("logout").InfoContext(ctx, "logout action")
	c.sessions.Logout(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.showRegister = false
	c.status = Status{Message: MsgLoggedOut}
	return c.status
}

// ShowRegister switches to the registration form and clears the status.
func (c *Controller) ShowRegister() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showRegister = true
	c.status = Status{}
}

// ShowLogin switches to the login form and clears the status.
func (c *Controller) ShowLogin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showRegister = false
	c.status = Status{}
}

// GenerateWorld asks the World Service for a map.
func (c *Controller) GenerateWorld(ctx context.Context, req WorldRequest) MapResult {
	logger := c.actionLogger("generate_world")
	text, err := c.world.Generate(ctx, worldclient.Request(req))
	return c.finishMap(ctx, logger, text, err)
}

// LoadFallback shows the static world.txt.
func (c *Controller) LoadFallback(ctx context.Context) MapResult {
	logger := c.actionLogger("load_fallback")
	text, err := c.world.LoadFallback(ctx)
	return c.finishMap(ctx, logger, text, err)
}

// Snapshot returns the current render state.
func (c *Controller) Snapshot() Snapshot {
	sess := c.sessions.CurrentSession()

	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{Status: c.status, Map: c.mapText}
	switch {
	case sess != nil:
		snap.View = ViewLoggedIn
		snap.Username = sess.Username
	case c.showRegister:
		snap.View = ViewRegisterForm
	default:
		snap.View = ViewLoginForm
	}
	return snap
}

func (c *Controller) finishMap(ctx context.Context, logger *slog.Logger, text string, err error) MapResult {
	result := MapResult{Text: text}
	if err != nil {
		errutil.LogErrorContext(ctx, logger, "map request failed", err)
		result = MapResult{Text: errutil.PublicMessage(err, err.Error()), Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapText = result.Text
	return result
}

func (c *Controller) actionLogger(action string) *slog.Logger {
	return c.logger.With("action", action, "action_id", ulid.Make().String())
}

// statusFor maps an action error onto the status line.
func statusFor(err error, rejectedPrefix, success string) Status {
	switch {
	case err == nil:
		return Status{Message: success}
	case session.IsValidation(err):
		return Status{Message: errutil.PublicMessage(err, err.Error()), IsError: true}
	case authclient.IsRejected(err):
		return Status{Message: rejectedPrefix + errutil.PublicMessage(err, authclient.UnknownErrorMessage), IsError: true}
	default:
		return Status{Message: "Error: " + errutil.PublicMessage(err, err.Error()), IsError: true}
	}
}
