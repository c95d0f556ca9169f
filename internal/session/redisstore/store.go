// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

// Package redisstore persists client sessions in Redis, so several shells
// on one host (or one user's machines) can share a login.
package redisstore

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/asciimmo/asciimmo/internal/session"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "asciimmo"

// Store implements session.Store on top of a Redis client.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ session.Store = (*Store)(nil)

// New creates a Redis-backed store. An empty prefix selects DefaultPrefix.
func New(rdb redis.UniversalClient, prefix string) (*Store, error) {
	if rdb == nil {
		return nil, oops.Code(session.CodeStore).Errorf("redis client cannot be nil")
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}, nil
}

// Key returns the full Redis key for a persisted entry name.
func (s *Store) Key(name string) string {
	return s.prefix + ":" + name
}

// Save writes both entries in one MULTI/EXEC with the same TTL.
func (s *Store) Save(ctx context.Context, sess session.Session, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.Key(session.KeyToken), sess.Token, ttl)
		pipe.Set(ctx, s.Key(session.KeyUsername), sess.Username, ttl)
		return nil
	})
	if err != nil {
		return oops.Code(session.CodeStore).With("prefix", s.prefix).Wrapf(err, "save session")
	}
	return nil
}

// Load reads both entries with MGET. Missing or empty entries mean no session.
func (s *Store) Load(ctx context.Context) (*session.Session, error) {
	vals, err := s.rdb.MGet(ctx, s.Key(session.KeyToken), s.Key(session.KeyUsername)).Result()
	if err != nil {
		return nil, oops.Code(session.CodeStore).With("prefix", s.prefix).Wrapf(err, "load session")
	}
	if len(vals) != 2 {
		return nil, nil
	}
	token, _ := vals[0].(string)
	username, _ := vals[1].(string)
	if token == "" || username == "" {
		return nil, nil
	}
	return &session.Session{Token: token, Username: username}, nil
}

// Clear deletes both entries.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.Key(session.KeyToken), s.Key(session.KeyUsername)).Err(); err != nil {
		return oops.Code(session.CodeStore).With("prefix", s.prefix).Wrapf(err, "clear session")
	}
	return nil
}

// Options selects the Redis server backing a Store.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Open dials Redis, verifies it with PING and returns the store and a close function.
func Open(ctx context.Context, opts Options) (*Store, func() error, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, nil, oops.Code(session.CodeStore).Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, oops.Code(session.CodeStore).With("addr", opts.Addr).Wrapf(err, "connect to redis")
	}
	store, err := New(rdb, opts.Prefix)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return store, rdb.Close, nil
}
