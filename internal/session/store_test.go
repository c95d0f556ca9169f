// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asciimmo/asciimmo/pkg/errutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// storeFactories builds each Store implementation against a shared clock.
func storeFactories(t *testing.T) map[string]func(clock *fakeClock) Store {
	t.Helper()
	return map[string]func(clock *fakeClock) Store{
		"memory": func(clock *fakeClock) Store {
			return NewMemoryStoreWithClock(clock.Now)
		},
		"file": func(clock *fakeClock) Store {
			fs, err := NewFileStore(filepath.Join(t.TempDir(), "state", "session.json"))
			require.NoError(t, err)
			fs.now = clock.Now
			return fs
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("empty store loads nothing", func(t *testing.T) {
				store := newStore(newFakeClock())
				s, err := store.Load(ctx)
				require.NoError(t, err)
				assert.Nil(t, s)
			})

			t.Run("save then load round trips", func(t *testing.T) {
				store := newStore(newFakeClock())
				require.NoError(t, store.Save(ctx, Session{Token: "abc", Username: "alice"}, DefaultTTL))

				s, err := store.Load(ctx)
				require.NoError(t, err)
				require.NotNil(t, s)
				assert.Equal(t, Session{Token: "abc", Username: "alice"}, *s)
			})

			t.Run("save overwrites previous session", func(t *testing.T) {
				store := newStore(newFakeClock())
				require.NoError(t, store.Save(ctx, Session{Token: "one", Username: "alice"}, DefaultTTL))
				require.NoError(t, store.Save(ctx, Session{Token: "two", Username: "bob"}, DefaultTTL))

				s, err := store.Load(ctx)
				require.NoError(t, err)
				require.NotNil(t, s)
				assert.Equal(t, Session{Token: "two", Username: "bob"}, *s)
			})

			t.Run("entries expire after ttl", func(t *testing.T) {
				clock := newFakeClock()
				store := newStore(clock)
				require.NoError(t, store.Save(ctx, Session{Token: "abc", Username: "alice"}, DefaultTTL))

				clock.Advance(DefaultTTL - time.Second)
				s, err := store.Load(ctx)
				require.NoError(t, err)
				assert.NotNil(t, s)

				clock.Advance(2 * time.Second)
				s, err = store.Load(ctx)
				require.NoError(t, err)
				assert.Nil(t, s)
			})

			t.Run("clear removes session", func(t *testing.T) {
				store := newStore(newFakeClock())
				require.NoError(t, store.Save(ctx, Session{Token: "abc", Username: "alice"}, DefaultTTL))
				require.NoError(t, store.Clear(ctx))

				s, err := store.Load(ctx)
				require.NoError(t, err)
				assert.Nil(t, s)
			})

			t.Run("clear on empty store succeeds", func(t *testing.T) {
				store := newStore(newFakeClock())
				assert.NoError(t, store.Clear(ctx))
			})
		})
	}
}

func TestSessionFromEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	tests := []struct {
		name    string
		entries map[string]entry
		want    *Session
	}{
		{
			name: "both live",
			entries: map[string]entry{
				KeyToken:    {Value: "abc", ExpiresAt: later},
				KeyUsername: {Value: "alice", ExpiresAt: later},
			},
			want: &Session{Token: "abc", Username: "alice"},
		},
		{
			name:    "token only",
			entries: map[string]entry{KeyToken: {Value: "abc", ExpiresAt: later}},
		},
		{
			name:    "username only",
			entries: map[string]entry{KeyUsername: {Value: "alice", ExpiresAt: later}},
		},
		{
			name: "empty token value",
			entries: map[string]entry{
				KeyToken:    {Value: "", ExpiresAt: later},
				KeyUsername: {Value: "alice", ExpiresAt: later},
			},
		},
		{
			name: "username expired",
			entries: map[string]entry{
				KeyToken:    {Value: "abc", ExpiresAt: later},
				KeyUsername: {Value: "alice", ExpiresAt: now},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionFrom(tt.entries, now))
		})
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := NewFileStore("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, CodeStore)
	})

	t.Run("writes owner-only file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "session.json")
		store, err := NewFileStore(path)
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())

		require.NoError(t, store.Save(ctx, Session{Token: "abc", Username: "alice"}, DefaultTTL))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"session_token"`)
		assert.Contains(t, string(data), `"expires_at"`)
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileStore(filepath.Join(dir, "session.json"))
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, Session{Token: "abc", Username: "alice"}, DefaultTTL))

		files, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "session.json", files[0].Name())
	})

	t.Run("corrupt file is a store error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
		store, err := NewFileStore(path)
		require.NoError(t, err)

		s, err := store.Load(ctx)
		require.Error(t, err)
		assert.Nil(t, s)
		errutil.AssertErrorCode(t, err, CodeStore)
		assert.True(t, IsStore(err))
	})
}
