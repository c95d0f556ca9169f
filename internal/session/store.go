// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

package session

import (
	"context"
	"sync"
	"time"
)

// Store persists a session as two independent entries, KeyToken and
// KeyUsername, each expiring ttl after it was written.
//
// Load returns nil without error when either entry is missing, empty or
// expired.
type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

// entry is one persisted value with its expiry.
type entry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e entry) live(now time.Time) bool {
	return e.Value != "" && now.Before(e.ExpiresAt)
}

func entriesFor(s Session, now time.Time, ttl time.Duration) map[string]entry {
	expires := now.Add(ttl)
	return map[string]entry{
		KeyToken:    {Value: s.Token, ExpiresAt: expires},
		KeyUsername: {Value: s.Username, ExpiresAt: expires},
	}
}

// sessionFrom rebuilds a session when both entries are live.
func sessionFrom(entries map[string]entry, now time.Time) *Session {
	token, ok := entries[KeyToken]
	if !ok || !token.live(now) {
		return nil
	}
	username, ok := entries[KeyUsername]
	if !ok || !username.live(now) {
		return nil
	}
	return &Session{Token: token.Value, Username: username.Value}
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty in-memory store using now for expiry checks.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]entry), now: now}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range entriesFor(s, m.now(), ttl) {
		m.entries[k] = e
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sessionFrom(m.entries, m.now()), nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}
