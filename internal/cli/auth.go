package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/sneakerengine/internal/app"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the marketplace",
		Long: `Log in with email and password.

The session is kept in the local state store until logout or until the
token expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				s, err := a.Session.Login(ctx, opts.Email, opts.Password)
				if err != nil {
					return nil, err
				}
				return sessionView{Authenticated: true, User: &s.User}, nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Username string
	Email    string
	Password string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				s, err := a.Session.Register(ctx, opts.Username, opts.Email, opts.Password)
				if err != nil {
					return nil, err
				}
				return sessionView{Authenticated: true, User: &s.User}, nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Username, "username", "", "display name (3-50 characters)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (at least 6 characters)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				a.Session.Logout()
				return sessionView{}, nil
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				u, ok := a.Session.CurrentUser()
				return sessionView{Authenticated: ok, User: u}, nil
			})
		},
	}
}
