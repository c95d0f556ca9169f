// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/asciimmo/asciimmo/internal/authclient"
	"github.com/asciimmo/asciimmo/internal/frontend"
	"github.com/asciimmo/asciimmo/internal/session"
	"github.com/asciimmo/asciimmo/internal/tls"
)

var _ = Describe("Client against live services", func() {
	var (
		ctx    context.Context
		svc    *services
		caFile string
	)

	BeforeEach(func() {
		ctx = context.Background()
		svc = newServices()
		DeferCleanup(svc.Close)

		var err error
		caFile, err = svc.writeCABundle(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("TLS trust", func() {
		It("rejects the services without the CA bundle", func() {
			cfg, err := tls.LoadClientTLS(tls.ClientOptions{})
			Expect(err).NotTo(HaveOccurred())
			auth, err := authclient.New(svc.auth.URL, authclient.Options{HTTPClient: tls.NewHTTPClient(cfg)})
			Expect(err).NotTo(HaveOccurred())

			_, err = auth.Login(ctx, "alice", "pw")
			Expect(err).To(HaveOccurred())
			Expect(authclient.IsTransport(err)).To(BeTrue())
		})

		It("accepts the services once the bundle is trusted", func() {
			c, err := newClient(svc, caFile, session.NewMemoryStore())
			Expect(err).NotTo(HaveOccurred())

			_, err = c.auth.Login(ctx, "alice", "pw")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("login and map flow", func() {
		var c *client

		BeforeEach(func() {
			var err error
			c, err = newClient(svc, caFile, session.NewMemoryStore())
			Expect(err).NotTo(HaveOccurred())
		})

		It("starts on the login form", func() {
			snap := c.controller.Snapshot()
			Expect(snap.View).To(Equal(frontend.ViewLoginForm))
			Expect(snap.Username).To(BeEmpty())
		})

		It("logs in, fetches a map with the token and logs out", func() {
			status := c.controller.Login(ctx, frontend.LoginRequest{Username: "alice", Password: "pw"})
			Expect(status).To(Equal(frontend.Status{Message: frontend.MsgLoggedIn}))
			Expect(c.controller.Snapshot().View).To(Equal(frontend.ViewLoggedIn))

			res := c.controller.GenerateWorld(ctx, frontend.WorldRequest{Seed: "1", Width: "6", Height: "2"})
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Text).To(Equal("^^~~..\n..~~^^\n"))
			Expect(svc.lastWorldToken()).To(Equal("tok-alice"))

			status = c.controller.Logout(ctx)
			Expect(status.Message).To(Equal(frontend.MsgLoggedOut))
			Expect(c.controller.Snapshot().View).To(Equal(frontend.ViewLoginForm))

			res = c.controller.GenerateWorld(ctx, frontend.WorldRequest{Seed: "1", Width: "6", Height: "2"})
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(svc.lastWorldToken()).To(BeEmpty())
		})

		It("shows the service message on bad credentials", func() {
			status := c.controller.Login(ctx, frontend.LoginRequest{Username: "alice", Password: "wrong"})
			Expect(status.IsError).To(BeTrue())
			Expect(status.Message).To(Equal("Login failed: Invalid credentials"))
			Expect(c.controller.Snapshot().View).To(Equal(frontend.ViewLoginForm))
		})

		It("never contacts the service for empty fields", func() {
			status := c.controller.Login(ctx, frontend.LoginRequest{Username: "alice", Password: ""})
			Expect(status).To(Equal(frontend.Status{Message: session.MsgLoginFieldsRequired, IsError: true}))
			Expect(svc.logins()).To(Equal(0))
		})

		It("sends a whitespace password to the service", func() {
			status := c.controller.Login(ctx, frontend.LoginRequest{Username: "alice", Password: "   "})
			Expect(status.Message).To(Equal("Login failed: Invalid credentials"))
			Expect(svc.logins()).To(Equal(1))
		})

		It("registers, confirms and logs in as the new user", func() {
			c.controller.ShowRegister()
			Expect(c.controller.Snapshot().View).To(Equal(frontend.ViewRegisterForm))

			status := c.controller.Register(ctx, frontend.RegisterRequest{
				Username: "bob", Email: "bob@example.com", Password: "secret",
			})
			Expect(status).To(Equal(frontend.Status{Message: frontend.MsgRegistered}))
			Expect(c.controller.Snapshot().View).To(Equal(frontend.ViewLoginForm))

			msg, err := c.auth.Confirm(ctx, "confirm-bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(msg).To(Equal("Email confirmed"))

			_, err = c.auth.Confirm(ctx, "confirm-bob")
			Expect(authclient.IsRejected(err)).To(BeTrue())

			status = c.controller.Login(ctx, frontend.LoginRequest{Username: "bob", Password: "secret"})
			Expect(status.IsError).To(BeFalse())
			Expect(c.controller.Snapshot().Username).To(Equal("bob"))
		})

		It("reports a taken username", func() {
			c.controller.ShowRegister()
			status := c.controller.Register(ctx, frontend.RegisterRequest{
				Username: "alice", Email: "a@example.com", Password: "pw",
			})
			Expect(status.IsError).To(BeTrue())
			Expect(status.Message).To(Equal("Registration failed: Username already exists"))
			Expect(c.controller.Snapshot().View).To(Equal(frontend.ViewRegisterForm))
		})

		It("loads the fallback map", func() {
			res := c.controller.LoadFallback(ctx)
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Text).To(Equal("static\n"))
		})

		It("puts the fallback hint in place of the map when the service is down", func() {
			svc.world.Close()

			res := c.controller.GenerateWorld(ctx, frontend.WorldRequest{Seed: "1", Width: "6", Height: "2"})
			Expect(res.Err).To(HaveOccurred())
			Expect(res.Text).To(HavePrefix("Error fetching /world: "))
			Expect(res.Text).To(ContainSubstring("world.txt"))
		})
	})

	Describe("persisted sessions", func() {
		It("restores a file session in a new process", func() {
			path := filepath.Join(GinkgoT().TempDir(), "session.json")
			store, err := session.NewFileStore(path)
			Expect(err).NotTo(HaveOccurred())

			first, err := newClient(svc, caFile, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.controller.Login(ctx, frontend.LoginRequest{Username: "alice", Password: "pw"}).IsError).To(BeFalse())

			info, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			second, err := newClient(svc, caFile, store)
			Expect(err).NotTo(HaveOccurred())
			restored, err := second.sessions.Restore(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored).NotTo(BeNil())
			Expect(restored.Username).To(Equal("alice"))
			Expect(second.controller.Snapshot().View).To(Equal(frontend.ViewLoggedIn))

			second.controller.Logout(ctx)
			_, err = os.Stat(path)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		Context("with a redis store", func() {
			var mr *miniredis.Miniredis

			BeforeEach(func() {
				mr = miniredis.RunT(GinkgoT())
			})

			It("shares the session between clients", func() {
				storeA, closeA, err := newRedisStore(mr)
				Expect(err).NotTo(HaveOccurred())
				DeferCleanup(closeA)
				storeB, closeB, err := newRedisStore(mr)
				Expect(err).NotTo(HaveOccurred())
				DeferCleanup(closeB)

				a, err := newClient(svc, caFile, storeA)
				Expect(err).NotTo(HaveOccurred())
				b, err := newClient(svc, caFile, storeB)
				Expect(err).NotTo(HaveOccurred())

				Expect(a.controller.Login(ctx, frontend.LoginRequest{Username: "alice", Password: "pw"}).IsError).To(BeFalse())
				Expect(mr.Get("it:session_token")).To(Equal("tok-alice"))

				restored, err := b.sessions.Restore(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(restored.Token).To(Equal("tok-alice"))

				res := b.controller.GenerateWorld(ctx, frontend.WorldRequest{Seed: "9", Width: "6", Height: "2"})
				Expect(res.Err).NotTo(HaveOccurred())
				Expect(svc.lastWorldToken()).To(Equal("tok-alice"))
			})

			It("expires the session with the ttl", func() {
				store, closeStore, err := newRedisStore(mr)
				Expect(err).NotTo(HaveOccurred())
				DeferCleanup(closeStore)

				c, err := newClient(svc, caFile, store)
				Expect(err).NotTo(HaveOccurred())
				Expect(c.controller.Login(ctx, frontend.LoginRequest{Username: "alice", Password: "pw"}).IsError).To(BeFalse())

				mr.FastForward(session.DefaultTTL + 1)

				restored, err := c.sessions.Restore(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(restored).To(BeNil())
			})
		})
	})
})
