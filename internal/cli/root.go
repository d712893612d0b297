package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sneakerengine/internal/app"
	"github.com/roach88/sneakerengine/internal/notify"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DBPath     string
	APIURL     string
	Hide       []string // notification categories to leave out
	Color      string   // "auto" | "always" | "never"

	// Getenv reads the environment (for testing). If nil, os.Getenv.
	Getenv func(string) string

	// AppOptions are passed to app.New (for testing).
	AppOptions []app.Option

	hidden []notify.Category
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sneakerengine CLI.
// appOpts are passed through to app.New.
func NewRootCommand(appOpts ...app.Option) *cobra.Command {
	return newRootCommand(&RootOptions{AppOptions: appOpts})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sneakerengine",
		Short: "sneakerengine - sneaker marketplace client",
		Long: `A command-line client for the sneaker marketplace.

Keeps the session, display preference and notifications in a local state
store, and lists, creates and trades sneakers through the marketplace API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !isValidColorMode(opts.Color) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid color mode %q: must be one of %v", opts.Color, ValidColorModes))
			}
			opts.hidden = opts.hidden[:0]
			for _, h := range opts.Hide {
				c, err := notify.ParseCategory(h)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --hide value", err)
				}
				opts.hidden = append(opts.hidden, c)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $SNEAKERENGINE_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to the local state database")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "marketplace API base URL")
	cmd.PersistentFlags().StringVar(&opts.Color, "color", ColorAuto, "colored text output (auto|always|never)")
	cmd.PersistentFlags().StringSliceVar(&opts.Hide, "hide", nil, "notification categories to hide (success|error|warning|info)")

	// Add subcommands
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewThemeCommand(opts))
	cmd.AddCommand(NewListingsCommand(opts))
	cmd.AddCommand(NewPropositionsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func isValidColorMode(mode string) bool {
	for _, m := range ValidColorModes {
		if m == mode {
			return true
		}
	}
	return false
}

func (o *RootOptions) getenv(key string) string {
	if o.Getenv != nil {
		return o.Getenv(key)
	}
	return os.Getenv(key)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
		Hidden:    o.hidden,
		Color:     colorEnabled(o.Color, cmd.OutOrStdout(), o.getenv),
	}
}
