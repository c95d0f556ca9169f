package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asciimmo/asciimmo/internal/frontend"
)

// worldConfig holds configuration for the world command.
type worldConfig struct {
	seed     string
	width    string
	height   string
	fallback bool
}

// Default values for world command flags.
const (
	defaultSeed   = "12345"
	defaultWidth  = "80"
	defaultHeight = "24"
)

func newWorldCmd(opts *rootOptions, deps *Deps) *cobra.Command {
	cfg := &worldConfig{}

	cmd := &cobra.Command{
		Use:   "world",
		Short: "Render an ASCII world map",
		Long: `Request a map from the world service and print it. The request
carries the session token when logged in. With --fallback the static
world.txt is shown instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClientApp(cmd, opts, deps, func(a *clientApp) error {
				var res frontend.MapResult
				if cfg.fallback {
					res = a.controller.LoadFallback(cmd.Context())
				} else {
					res = a.controller.GenerateWorld(cmd.Context(), frontend.WorldRequest{
						Seed:   cfg.seed,
						Width:  cfg.width,
						Height: cfg.height,
					})
				}
				return printMap(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.seed, "seed", defaultSeed, "world seed")
	cmd.Flags().StringVar(&cfg.width, "width", defaultWidth, "map width in columns")
	cmd.Flags().StringVar(&cfg.height, "height", defaultHeight, "map height in rows")
	cmd.Flags().BoolVar(&cfg.fallback, "fallback", false, "show the static world.txt instead")

	return cmd
}

// printMap writes a map to out, or its error text to errOut.
func printMap(out, errOut io.Writer, res frontend.MapResult) error {
	if res.Err != nil {
		_, _ = errorColor.Fprintln(errOut, res.Text)
		return errReported
	}
	text := res.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := fmt.Fprint(out, text)
	return err
}
