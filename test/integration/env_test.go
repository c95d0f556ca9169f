// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

//go:build integration

package integration

import (
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/asciimmo/asciimmo/internal/authclient"
	"github.com/asciimmo/asciimmo/internal/frontend"
	"github.com/asciimmo/asciimmo/internal/session"
	"github.com/asciimmo/asciimmo/internal/session/redisstore"
	"github.com/asciimmo/asciimmo/internal/tls"
	"github.com/asciimmo/asciimmo/internal/worldclient"
)

// services fakes the auth and world services over TLS.
type services struct {
	auth  *httptest.Server
	world *httptest.Server

	mu          sync.Mutex
	worldTokens []string
	loginCalls  int
	users       map[string]string
	pending     map[string]string
}

func newServices() *services {
	s := &services{
		users:   map[string]string{"alice": "pw"},
		pending: map[string]string{},
	}

	s.auth = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		defer s.mu.Unlock()
		switch r.URL.Path {
		case "/auth/login":
			s.loginCalls++
			if pw, ok := s.users[body["username"]]; ok && pw == body["password"] {
				_, _ = w.Write([]byte(`{"session_token":"tok-` + body["username"] + `","message":"Login successful"}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"error","message":"Invalid credentials"}`))
		case "/auth/register":
			if _, taken := s.users[body["username"]]; taken {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"status":"error","message":"Username already exists"}`))
				return
			}
			s.pending["confirm-"+body["username"]] = body["username"]
			s.users[body["username"]] = body["password"]
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"status":"success","message":"Check your email"}`))
		case "/auth/confirm":
			if _, ok := s.pending[r.URL.Query().Get("token")]; !ok {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"status":"error","message":"Invalid or expired token"}`))
				return
			}
			delete(s.pending, r.URL.Query().Get("token"))
			_, _ = w.Write([]byte(`{"status":"success","message":"Email confirmed"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	s.world = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/world":
			s.mu.Lock()
			s.worldTokens = append(s.worldTokens, r.URL.Query().Get("session_token"))
			s.mu.Unlock()
			_, _ = w.Write([]byte("^^~~..\n..~~^^\n"))
		case "/world.txt":
			_, _ = w.Write([]byte("static\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	return s
}

func (s *services) Close() {
	s.auth.Close()
	s.world.Close()
}

func (s *services) lastWorldToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.worldTokens) == 0 {
		return ""
	}
	return s.worldTokens[len(s.worldTokens)-1]
}

func (s *services) logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCalls
}

// writeCABundle writes both servers' certificates to one PEM file.
func (s *services) writeCABundle(dir string) (string, error) {
	path := filepath.Join(dir, "ca.pem")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	for _, srv := range []*httptest.Server{s.auth, s.world} {
		cert := srv.Certificate()
		if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}); err != nil {
			return "", err
		}
	}
	return path, nil
}

// client is one wired client process.
type client struct {
	sessions   *session.Manager
	world      *worldclient.Client
	auth       *authclient.Client
	controller *frontend.Controller
}

// newClient wires a client the way the CLI does, trusting caFile and
// persisting into store.
func newClient(svc *services, caFile string, store session.Store) (*client, error) {
	tlsConfig, err := tls.LoadClientTLS(tls.ClientOptions{CAFile: caFile})
	if err != nil {
		return nil, err
	}
	httpClient := tls.NewHTTPClient(tlsConfig)

	auth, err := authclient.New(svc.auth.URL, authclient.Options{HTTPClient: httpClient})
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewManager(auth, store, session.Options{})
	if err != nil {
		return nil, err
	}
	world, err := worldclient.New(svc.world.URL, worldclient.Options{
		HTTPClient:  httpClient,
		Tokens:      sessions,
		FallbackURL: svc.world.URL + "/world.txt",
	})
	if err != nil {
		return nil, err
	}
	controller, err := frontend.New(sessions, world, nil)
	if err != nil {
		return nil, err
	}
	return &client{sessions: sessions, world: world, auth: auth, controller: controller}, nil
}

// newRedisStore returns a store on a fresh miniredis and a cleanup func.
func newRedisStore(mr *miniredis.Miniredis) (*redisstore.Store, func(), error) {
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store, err := redisstore.New(rdb, "it")
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return store, func() { _ = rdb.Close() }, nil
}
