package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/asciimmo/asciimmo/internal/config"
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("failure already reported")

// rootOptions holds the global flags.
type rootOptions struct {
	configFile string
	envFile    string
}

// NewRootCmd creates the root command for the asciimmo CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&Deps{})
}

func newRootCmd(deps *Deps) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "asciimmo",
		Short: "ASCIIMMO client",
		Long: `asciimmo logs in to the ASCIIMMO auth service, keeps the session
between runs and renders ASCII world maps from the world service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file with ASCIIMMO_ variables")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newLoginCmd(opts, deps))
	cmd.AddCommand(newRegisterCmd(opts, deps))
	cmd.AddCommand(newConfirmCmd(opts, deps))
	cmd.AddCommand(newLogoutCmd(opts, deps))
	cmd.AddCommand(newWhoamiCmd(opts, deps))
	cmd.AddCommand(newWorldCmd(opts, deps))
	cmd.AddCommand(newShellCmd(opts, deps))
	cmd.AddCommand(newStatusCmd(opts, deps))

	return cmd
}
