// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

package session

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/asciimmo/asciimmo/internal/xdg"
)

const sessionFileMode = 0o600

// FileStore persists entries as a JSON object in a single file.
//
//	{"session_token":{"value":"...","expires_at":"..."},"username":{...}}
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path.
// The file and its directory are created on first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, oops.Code(CodeStore).Errorf("session file path is required")
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// Save implements Store. The file is replaced atomically.
func (f *FileStore) Save(_ context.Context, s Session, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(entriesFor(s, f.now(), ttl), "", "  ")
	if err != nil {
		return oops.Code(CodeStore).With("path", f.path).Wrap(err)
	}
	dir := filepath.Dir(f.path)
	if err := xdg.EnsureDir(dir); err != nil {
		return oops.Code(CodeStore).With("path", dir).Wrapf(err, "create session directory")
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return oops.Code(CodeStore).With("path", dir).Wrapf(err, "create temp session file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(sessionFileMode); err != nil {
		_ = tmp.Close()
		return oops.Code(CodeStore).With("path", tmpName).Wrapf(err, "chmod session file")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code(CodeStore).With("path", tmpName).Wrapf(err, "write session file")
	}
	if err := tmp.Close(); err != nil {
		return oops.Code(CodeStore).With("path", tmpName).Wrapf(err, "close session file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return oops.Code(CodeStore).With("path", f.path).Wrapf(err, "replace session file")
	}
	return nil
}

// Load implements Store. A missing file means no session.
func (f *FileStore) Load(_ context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code(CodeStore).With("path", f.path).Wrapf(err, "read session file")
	}
	entries := make(map[string]entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, oops.Code(CodeStore).With("path", f.path).Wrapf(err, "decode session file")
	}
	return sessionFrom(entries, f.now()), nil
}

// Clear implements Store. Clearing an absent file succeeds.
func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code(CodeStore).With("path", f.path).Wrapf(err, "remove session file")
	}
	return nil
}
