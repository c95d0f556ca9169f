// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

// Package session owns the client's notion of being logged in.
//
// The Manager is the single source of truth: it validates credentials
// locally, delegates to the auth service, persists the resulting token and
// username through a Store and caches the active Session in memory.
package session

import (
	"time"

	"github.com/samber/oops"

	"github.com/asciimmo/asciimmo/pkg/errutil"
)

// Persisted entry names.
const (
	KeyToken    = "session_token"
	KeyUsername = "username"
)

// DefaultTTL is how long persisted entries live after a successful login.
const DefaultTTL = 30 * 24 * time.Hour

// Error codes raised by this package.
const (
	CodeValidation = "SESSION_VALIDATION_FAILED"
	CodeStore      = "SESSION_STORE_FAILED"
)

// Session is an authenticated identity: an opaque token and the username
// that was submitted when it was obtained.
type Session struct {
	Token    string
	Username string
}

// NewSession validates and builds a Session. Both fields must be non-empty.
func NewSession(token, username string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeValidation).With("field", KeyToken).Errorf("session token is empty")
	}
	if username == "" {
		return nil, oops.Code(CodeValidation).With("field", KeyUsername).Errorf("session username is empty")
	}
	return &Session{Token: token, Username: username}, nil
}

// IsValidation reports whether err was raised by local input validation.
func IsValidation(err error) bool { return errutil.HasCode(err, CodeValidation) }

// IsStore reports whether err is a storage failure.
func IsStore(err error) bool { return errutil.HasCode(err, CodeStore) }

// missingFields returns the names of fields whose values are empty.
// Whitespace is a value.
func missingFields(fields ...[2]string) []string {
	var missing []string
	for _, f := range fields {
		if f[1] == "" {
			missing = append(missing, f[0])
		}
	}
	return missing
}
