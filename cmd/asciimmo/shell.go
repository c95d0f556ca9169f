package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/asciimmo/asciimmo/internal/frontend"
)

const shellHelp = `Commands:
  login <username> [password]             log in (password is read from the next line if omitted)
  register <username> <email> [password]  create an account
  confirm <token>                         confirm an account
  logout                                  forget the session
  whoami                                  show the logged-in user
  world [seed [width [height]]]           render a map
  fallback                                show the static world.txt
  help                                    show this help
  quit                                    leave the shell`

func newShellCmd(opts *rootOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive client session",
		Long: `Start an interactive shell. Login state is shared with the other
commands through the session store. With metrics_addr set, Prometheus metrics
and health probes are served while the shell runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClientApp(cmd, opts, deps, func(a *clientApp) error {
				return runShell(cmd, a, deps)
			})
		},
	}
}

// runShell runs the REPL and, when configured, the metrics server as one run group.
func runShell(cmd *cobra.Command, a *clientApp, deps *Deps) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var ready atomic.Bool
	var g run.Group

	sh := &shell{
		app:    a,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		lines:  readLines(ctx, cmd.InOrStdin()),
	}
	g.Add(func() error {
		ready.Store(true)
		return sh.loop(ctx)
	}, func(error) {
		cancel()
	})

	if a.cfg.MetricsAddr != "" {
		srv := deps.observabilityServerFactory()(a.cfg.MetricsAddr, a.registry, ready.Load)
		errCh, err := srv.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		a.logger.Info("observability server started", "addr", srv.Addr())
		g.Add(func() error {
			return <-errCh
		}, func(error) {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				a.logger.Warn("error stopping observability server", "error", err)
			}
		})
	}

	return g.Run()
}

// readLines feeds input lines to a channel that is closed at EOF.
// A read blocked on the terminal outlives ctx until the next line arrives.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// shell is one interactive session.
type shell struct {
	app    *clientApp
	out    io.Writer
	errOut io.Writer
	lines  <-chan string
}

// loop reads commands until quit, EOF or cancellation.
func (s *shell) loop(ctx context.Context) error {
	_, _ = fmt.Fprintln(s.out, "Type 'help' for commands.")
	for {
		s.prompt()
		line, ok := s.next(ctx)
		if !ok {
			_, _ = fmt.Fprintln(s.out)
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if quit := s.dispatch(ctx, fields[0], fields[1:]); quit {
			return nil
		}
	}
}

func (s *shell) prompt() {
	snap := s.app.controller.Snapshot()
	if snap.View == frontend.ViewLoggedIn {
		_, _ = fmt.Fprintf(s.out, "%s@asciimmo> ", snap.Username)
		return
	}
	_, _ = fmt.Fprint(s.out, "asciimmo> ")
}

func (s *shell) next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-s.lines:
		return line, ok
	}
}

// dispatch runs one command and reports whether the shell should exit.
func (s *shell) dispatch(ctx context.Context, name string, args []string) bool {
	c := s.app.controller
	switch name {
	case "quit", "exit":
		return true
	case "help", "?":
		_, _ = fmt.Fprintln(s.out, shellHelp)
	case "login":
		if len(args) < 1 || len(args) > 2 {
			s.usage("login <username> [password]")
			return false
		}
		password, ok := s.argOrLine(ctx, args, 1, "Password: ")
		if !ok {
			return true
		}
		s.status(c.Login(ctx, frontend.LoginRequest{Username: args[0], Password: password}))
	case "register":
		if len(args) < 2 || len(args) > 3 {
			s.usage("register <username> <email> [password]")
			return false
		}
		password, ok := s.argOrLine(ctx, args, 2, "Password: ")
		if !ok {
			return true
		}
		s.status(c.Register(ctx, frontend.RegisterRequest{Username: args[0], Email: args[1], Password: password}))
	case "confirm":
		if len(args) != 1 {
			s.usage("confirm <token>")
			return false
		}
		msg, err := s.app.auth.Confirm(ctx, args[0])
		s.status(confirmStatus(msg, err))
	case "logout":
		s.status(c.Logout(ctx))
	case "whoami":
		_, _ = fmt.Fprintln(s.out, describeSession(c.Snapshot()))
	case "world":
		req := frontend.WorldRequest{Seed: defaultSeed, Width: defaultWidth, Height: defaultHeight}
		for i, dst := range []*string{&req.Seed, &req.Width, &req.Height} {
			if i < len(args) {
				*dst = args[i]
			}
		}
		_ = printMap(s.out, s.errOut, c.GenerateWorld(ctx, req))
	case "fallback":
		_ = printMap(s.out, s.errOut, c.LoadFallback(ctx))
	default:
		_, _ = errorColor.Fprintf(s.errOut, "Unknown command %q. Type 'help' for commands.\n", name)
	}
	return false
}

// argOrLine returns args[i], or prompts and reads the next input line.
func (s *shell) argOrLine(ctx context.Context, args []string, i int, prompt string) (string, bool) {
	if i < len(args) {
		return args[i], true
	}
	_, _ = fmt.Fprint(s.out, prompt)
	return s.next(ctx)
}

func (s *shell) status(st frontend.Status) {
	_ = printStatus(s.out, st)
}

func (s *shell) usage(text string) {
	_, _ = errorColor.Fprintln(s.errOut, "usage: "+text)
}
