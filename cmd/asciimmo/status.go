package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/asciimmo/asciimmo/internal/frontend"
)

// ServiceStatus holds the probe result for one remote service.
type ServiceStatus struct {
	Service string `json:"service"`
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// ClientStatus is everything the status command reports.
type ClientStatus struct {
	Services []ServiceStatus `json:"services"`
	LoggedIn bool            `json:"logged_in"`
	Username string          `json:"username,omitempty"`
	Store    string          `json:"session_store"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

func newStatusCmd(opts *rootOptions, deps *Deps) *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service health and session state",
		Long:  `Probe the auth and world services and show whether a session is stored.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClientApp(cmd, opts, deps, func(a *clientApp) error {
				return runStatus(cmd, cfg, a)
			})
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command. It fails when a service is unhealthy.
func runStatus(cmd *cobra.Command, cfg *statusConfig, a *clientApp) error {
	st := collectStatus(cmd.Context(), a)

	var output string
	if cfg.jsonOutput {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		output = string(data) + "\n"
	} else {
		output = formatStatusTable(st)
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), output)

	for _, svc := range st.Services {
		if !svc.Healthy {
			return errReported
		}
	}
	return nil
}

// collectStatus probes both services concurrently.
func collectStatus(ctx context.Context, a *clientApp) ClientStatus {
	st := ClientStatus{
		Services: []ServiceStatus{
			{Service: "auth", URL: a.cfg.Auth.URL},
			{Service: "world", URL: a.cfg.World.URL},
		},
		Store: a.cfg.Session.Store,
	}
	probes := []func(context.Context) error{a.auth.Health, a.world.Health}

	g, gctx := errgroup.WithContext(ctx)
	for i, probe := range probes {
		g.Go(func() error {
			if err := probe(gctx); err != nil {
				st.Services[i].Error = err.Error()
				return nil
			}
			st.Services[i].Healthy = true
			return nil
		})
	}
	_ = g.Wait()

	snap := a.controller.Snapshot()
	st.LoggedIn = snap.View == frontend.ViewLoggedIn
	st.Username = snap.Username
	return st
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(st ClientStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SERVICE\tSTATUS\tURL\tDETAIL")
	_, _ = fmt.Fprintln(w, "-------\t------\t---\t------")
	for _, svc := range st.Services {
		if svc.Healthy {
			_, _ = fmt.Fprintf(w, "%s\tok\t%s\t-\n", svc.Service, svc.URL)
		} else {
			_, _ = fmt.Fprintf(w, "%s\tdown\t%s\t%s\n", svc.Service, svc.URL, svc.Error)
		}
	}
	_ = w.Flush()

	if st.LoggedIn {
		_, _ = fmt.Fprintf(&buf, "\nLogged in as %s (%s store)\n", st.Username, st.Store)
	} else {
		_, _ = fmt.Fprintf(&buf, "\nNot logged in (%s store)\n", st.Store)
	}
	return buf.String()
}
