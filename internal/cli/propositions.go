package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/sneakerengine/internal/api"
	"github.com/roach88/sneakerengine/internal/app"
	"github.com/roach88/sneakerengine/internal/nav"
)

// PropositionOptions holds flags for proposition create.
type PropositionOptions struct {
	*RootOptions
	SneakerID      string
	OfferType      string
	OfferPrice     float64
	OfferSneakerID string
	Message        string
}

// NewPropositionsCommand creates the propositions command group.
func NewPropositionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propositions",
		Short: "Make and answer offers on listings",
		Long: `Make and answer offers on listings.

Propositions you made and propositions on your listings are both listed.
Only the listing owner can accept or reject; only the proposer can cancel.`,
		Args: cobra.NoArgs,
		RunE: listPropositions(rootOpts),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your propositions",
		Args:  cobra.NoArgs,
		RunE:  listPropositions(rootOpts),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one proposition",
		Args:  cobra.ExactArgs(1),
		RunE: propositionAction(rootOpts, func(ctx context.Context, a *app.App, id string) (interface{}, error) {
			p, err := a.Propositions.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return propositionView(*p), nil
		}),
	})
	cmd.AddCommand(newCreatePropositionCommand(rootOpts))
	cmd.AddCommand(&cobra.Command{
		Use:   "accept <id>",
		Short: "Accept an offer on your listing",
		Args:  cobra.ExactArgs(1),
		RunE: propositionAction(rootOpts, func(ctx context.Context, a *app.App, id string) (interface{}, error) {
			p, err := a.Propositions.Accept(ctx, id)
			if err != nil {
				return nil, err
			}
			return propositionView(*p), nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an offer on your listing",
		Args:  cobra.ExactArgs(1),
		RunE: propositionAction(rootOpts, func(ctx context.Context, a *app.App, id string) (interface{}, error) {
			p, err := a.Propositions.Reject(ctx, id)
			if err != nil {
				return nil, err
			}
			return propositionView(*p), nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <id>",
		Short: "Withdraw an offer you made",
		Args:  cobra.ExactArgs(1),
		RunE: propositionAction(rootOpts, func(ctx context.Context, a *app.App, id string) (interface{}, error) {
			if err := a.Propositions.Cancel(ctx, id); err != nil {
				return nil, err
			}
			return propositionsView(a.Propositions.Items()), nil
		}),
	})

	return cmd
}

func listPropositions(opts *RootOptions) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(opts, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
			if err := requireRoute(a, nav.RoutePropositions); err != nil {
				return nil, err
			}
			items, err := a.Propositions.FetchAll(ctx)
			if err != nil {
				return nil, err
			}
			return propositionsView(items), nil
		})
	}
}

// propositionAction runs fn on the proposition named by the first argument.
func propositionAction(opts *RootOptions, fn func(context.Context, *app.App, string) (interface{}, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(opts, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
			id, err := idArg(args)
			if err != nil {
				return nil, err
			}
			if err := requireRoute(a, nav.RoutePropositions); err != nil {
				return nil, err
			}
			return fn(ctx, a, id)
		})
	}
}

func newCreatePropositionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PropositionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Make an offer on a listing",
		Long: `Make an offer on a listing.

Buy offers need --price. Trade and swap offers need --offer-sneaker, the id
of one of your own listings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.CreatePropositionRequest{
				SneakerID:      opts.SneakerID,
				OfferType:      api.OfferType(opts.OfferType),
				OfferSneakerID: opts.OfferSneakerID,
				Message:        opts.Message,
			}
			if cmd.Flags().Changed("price") {
				req.OfferPrice = &opts.OfferPrice
			}
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				if err := requireRoute(a, nav.RoutePropositions); err != nil {
					return nil, err
				}
				p, err := a.Propositions.Create(ctx, req)
				if err != nil {
					return nil, err
				}
				return propositionView(*p), nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.SneakerID, "sneaker", "", "id of the listing to make an offer on")
	cmd.Flags().StringVar(&opts.OfferType, "type", string(api.OfferBuy), "offer type (buy|trade|swap)")
	cmd.Flags().Float64Var(&opts.OfferPrice, "price", 0, "offered price (buy)")
	cmd.Flags().StringVar(&opts.OfferSneakerID, "offer-sneaker", "", "id of your listing offered in exchange (trade|swap)")
	cmd.Flags().StringVar(&opts.Message, "message", "", "note to the owner")
	_ = cmd.MarkFlagRequired("sneaker")

	return cmd
}
