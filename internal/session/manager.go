// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/asciimmo/asciimmo/internal/authclient"
	"github.com/asciimmo/asciimmo/internal/observability"
	"github.com/asciimmo/asciimmo/pkg/errutil"
)

// Public messages for local failures.
const (
	MsgLoginFieldsRequired    = "Please enter username and password"
	MsgRegisterFieldsRequired = "Please fill in all fields"
	MsgSaveFailed             = "could not save session"
)

// Authenticator is the subset of the auth service client the manager uses.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (authclient.LoginResult, error)
	Register(ctx context.Context, req authclient.RegisterRequest) (string, error)
}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	TTL     time.Duration
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Manager coordinates login, registration and logout against a Store.
type Manager struct {
	auth    Authenticator
	store   Store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	// mu guards current and serializes persist-then-cache so the stored and
	// cached sessions always come from the same response.
	mu      sync.RWMutex
	current *Session
}

// NewManager creates a session manager.
func NewManager(auth Authenticator, store Store, opts Options) (*Manager, error) {
	if auth == nil {
		return nil, oops.Errorf("authenticator cannot be nil")
	}
	if store == nil {
		return nil, oops.Errorf("session store cannot be nil")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		auth:    auth,
		store:   store,
		ttl:     ttl,
		logger:  logger.With("component", "session"),
		metrics: opts.Metrics,
	}, nil
}

// LoadSession reads the persisted session without touching the cache.
func (m *Manager) LoadSession(ctx context.Context) (*Session, error) {
	s, err := m.store.Load(ctx)
	if err != nil {
		return nil, oops.Code(CodeStore).Wrapf(err, "load session")
	}
	return s, nil
}

// Restore populates the cached session from storage. On a storage failure
// the cache is left empty and the error is returned.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	s, err := m.LoadSession(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	m.metrics.SetSessionActive(s != nil)
	if err != nil {
		return nil, err
	}
	if s != nil {
		m.logger.DebugContext(ctx, "session restored", "username", s.Username)
	}
	return cloneSession(s), nil
}

// Login authenticates with the auth service and persists the new session.
// The submitted username is what gets stored, not anything the server echoes.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	const op = "login"
	if missing := missingFields([2]string{"username", username}, [2]string{"password", password}); len(missing) > 0 {
		m.metrics.RecordAuth(op, observability.OutcomeInvalid)
		return nil, oops.Code(CodeValidation).
			With("missing", missing).
			Public(MsgLoginFieldsRequired).
			Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	res, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.metrics.RecordAuth(op, outcomeOf(err))
		m.logger.InfoContext(ctx, "login failed", "username", username, "error", err)
		return nil, err
	}
	sess, err := NewSession(res.Token, username)
	if err != nil {
		// An empty token is the server's fault, so report a rejection.
		m.metrics.RecordAuth(op, observability.OutcomeRejected)
		return nil, oops.Code(authclient.CodeRejected).
			Public(authclient.UnknownErrorMessage).
			Errorf("login response has no usable session: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(ctx, *sess, m.ttl); err != nil {
		m.metrics.RecordAuth(op, observability.OutcomeFailed)
		errutil.LogErrorContext(ctx, m.logger, "persist session failed", err)
		return nil, oops.Code(CodeStore).
			With("username", username).
			Public(MsgSaveFailed).
			Wrapf(err, "persist session")
	}
	m.current = sess
	m.metrics.SetSessionActive(true)
	m.metrics.RecordAuth(op, observability.OutcomeOK)
	m.logger.InfoContext(ctx, "login succeeded", "username", username)
	return cloneSession(sess), nil
}

// Register creates an account and returns the server's message.
// It never creates a session.
func (m *Manager) Register(ctx context.Context, username, email, password string) (string, error) {
	const op = "register"
	missing := missingFields(
		[2]string{"username", username},
		[2]string{"email", email},
		[2]string{"password", password},
	)
	if len(missing) > 0 {
		m.metrics.RecordAuth(op, observability.OutcomeInvalid)
		return "", oops.Code(CodeValidation).
			With("missing", missing).
			Public(MsgRegisterFieldsRequired).
			Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	msg, err := m.auth.Register(ctx, authclient.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		m.metrics.RecordAuth(op, outcomeOf(err))
		m.logger.InfoContext(ctx, "registration failed", "username", username, "error", err)
		return "", err
	}
	m.metrics.RecordAuth(op, observability.OutcomeOK)
	m.logger.InfoContext(ctx, "registration accepted", "username", username)
	return msg, nil
}

// Logout clears persisted entries and drops the cached session.
// Storage errors are logged, never returned.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		errutil.LogErrorContext(ctx, m.logger, "clear session failed", err)
	}
	if m.current != nil {
		m.logger.InfoContext(ctx, "logged out", "username", m.current.Username)
	}
	m.current = nil
	m.metrics.SetSessionActive(false)
	m.metrics.RecordAuth("logout", observability.OutcomeOK)
}

// CurrentSession returns a copy of the cached session, or nil.
func (m *Manager) CurrentSession() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSession(m.current)
}

// SessionToken returns the cached token, or "" when logged out.
func (m *Manager) SessionToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Token
}

func cloneSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func outcomeOf(err error) string {
	switch {
	case authclient.IsRejected(err):
		return observability.OutcomeRejected
	case authclient.IsTransport(err):
		return observability.OutcomeTransport
	default:
		return observability.OutcomeFailed
	}
}
