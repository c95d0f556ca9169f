package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asciimmo/asciimmo/internal/authclient"
	"github.com/asciimmo/asciimmo/internal/frontend"
	"github.com/asciimmo/asciimmo/pkg/errutil"
)

// credentialsConfig holds flags shared by login and register.
type credentialsConfig struct {
	password string
}

func newLoginCmd(opts *rootOptions, deps *Deps) *cobra.Command {
	cfg := &credentialsConfig{}

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Long: `Log in to the auth service. The session token and username are
stored for 30 days so later commands run authenticated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClientApp(cmd, opts, deps, func(a *clientApp) error {
				password, err := passwordFor(cmd, deps, cfg.password)
				if err != nil {
					return err
				}
				status := a.controller.Login(cmd.Context(), frontend.LoginRequest{
					Username: args[0],
					Password: password,
				})
				return printStatus(cmd.OutOrStdout(), status)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.password, "password", "", "password (prompted when omitted)")

	return cmd
}

func newRegisterCmd(opts *rootOptions, deps *Deps) *cobra.Command {
	cfg := &credentialsConfig{}

	cmd := &cobra.Command{
		Use:   "register <username> <email>",
		Short: "Create an account",
		Long: `Create an account with the auth service. The account must be
confirmed from the emailed link (or with "asciimmo confirm") before login.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClientApp(cmd, opts, deps, func(a *clientApp) error {
				password, err := passwordFor(cmd, deps, cfg.password)
				if err != nil {
					return err
				}
				status := a.controller.Register(cmd.Context(), frontend.RegisterRequest{
					Username: args[0],
					Email:    args[1],
					Password: password,
				})
				return printStatus(cmd.OutOrStdout(), status)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.password, "password", "", "password (prompted when omitted)")

	return cmd
}

func newConfirmCmd(opts *rootOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <token>",
		Short: "Confirm an account with the emailed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClientApp(cmd, opts, deps, func(a *clientApp) error {
				msg, err := a.auth.Confirm(cmd.Context(), args[0])
				return printStatus(cmd.OutOrStdout(), confirmStatus(msg, err))
			})
		},
	}
}

func newLogoutCmd(opts *rootOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClientApp(cmd, opts, deps, func(a *clientApp) error {
				return printStatus(cmd.OutOrStdout(), a.controller.Logout(cmd.Context()))
			})
		},
	}
}

func newWhoamiCmd(opts *rootOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClientApp(cmd, opts, deps, func(a *clientApp) error {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), describeSession(a.controller.Snapshot()))
				return nil
			})
		},
	}
}

// confirmStatus maps a confirmation answer onto a status line.
func confirmStatus(msg string, err error) frontend.Status {
	switch {
	case err == nil && msg == "":
		return frontend.Status{Message: "Account confirmed"}
	case err == nil:
		return frontend.Status{Message: msg}
	case authclient.IsRejected(err):
		return frontend.Status{
			Message: "Confirmation failed: " + errutil.PublicMessage(err, authclient.UnknownErrorMessage),
			IsError: true,
		}
	default:
		return frontend.Status{Message: "Error: " + errutil.PublicMessage(err, err.Error()), IsError: true}
	}
}

func describeSession(snap frontend.Snapshot) string {
	if snap.View == frontend.ViewLoggedIn {
		return fmt.Sprintf("Logged in as %s", snap.Username)
	}
	return "Not logged in"
}

// passwordFor returns the flag value, or prompts when it is empty.
func passwordFor(cmd *cobra.Command, deps *Deps, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	password, err := deps.passwordReader()(cmd, "Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}
