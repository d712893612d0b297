package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sneakerengine/internal/app"
	"github.com/roach88/sneakerengine/internal/preference"
)

// NewThemeCommand creates the theme command group.
func NewThemeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the display theme",
		Long: `Show or change the dark/light display preference.

Until a theme is chosen the preference follows the terminal background.
Reset forgets the choice and follows the terminal again.`,
		Args: cobra.NoArgs,
		RunE: themeAction(rootOpts, func(*preference.Store) error { return nil }),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current theme",
		Args:  cobra.NoArgs,
		RunE:  themeAction(rootOpts, func(*preference.Store) error { return nil }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "set <dark|light>",
		Short:     "Choose a theme",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{preference.ValueDark, preference.ValueLight},
		RunE: func(cmd *cobra.Command, args []string) error {
			return themeAction(rootOpts, func(p *preference.Store) error {
				switch args[0] {
				case preference.ValueDark:
					return p.Set(true)
				case preference.ValueLight:
					return p.Set(false)
				default:
					return &argumentError{msg: fmt.Sprintf("invalid theme %q: must be dark or light", args[0])}
				}
			})(cmd, args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Switch between dark and light",
		Args:  cobra.NoArgs,
		RunE:  themeAction(rootOpts, (*preference.Store).Toggle),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Follow the terminal background again",
		Args:  cobra.NoArgs,
		RunE:  themeAction(rootOpts, (*preference.Store).Reset),
	})

	return cmd
}

func themeAction(opts *RootOptions, change func(*preference.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(opts, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
			if err := change(a.Preference); err != nil {
				return nil, err
			}
			return newThemeView(a.Preference.Get(), a.Preference.FollowsSystem()), nil
		})
	}
}
