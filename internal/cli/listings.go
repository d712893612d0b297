package cli

import (
	"context"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/roach88/sneakerengine/internal/api"
	"github.com/roach88/sneakerengine/internal/app"
	"github.com/roach88/sneakerengine/internal/nav"
)

// ListingOptions holds the listing fields shared by create and update.
type ListingOptions struct {
	*RootOptions
	Name        string
	Brand       string
	Size        string
	Condition   string
	Price       float64
	Description string
	ImageURL    string
}

func (o *ListingOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Name, "name", "", "model name")
	cmd.Flags().StringVar(&o.Brand, "brand", "", "brand")
	cmd.Flags().StringVar(&o.Size, "size", "", "size label")
	cmd.Flags().StringVar(&o.Condition, "condition", "", "condition (new|like_new|good|fair|worn)")
	cmd.Flags().Float64Var(&o.Price, "price", 0, "asking price")
	cmd.Flags().StringVar(&o.Description, "description", "", "free-text description")
	cmd.Flags().StringVar(&o.ImageURL, "image-url", "", "picture URL")
}

// NewListingsCommand creates the listings command group.
func NewListingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "listings",
		Aliases: []string{"sneakers"},
		Short:   "Browse and manage sneaker listings",
		Args:    cobra.NoArgs,
		RunE:    listListings(rootOpts),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every sneaker on the marketplace",
		Args:  cobra.NoArgs,
		RunE:  listListings(rootOpts),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				id, err := idArg(args)
				if err != nil {
					return nil, err
				}
				if err := requireRoute(a, listingPath(id)); err != nil {
					return nil, err
				}
				l, err := a.Listings.Get(ctx, id)
				if err != nil {
					return nil, err
				}
				return listingView(*l), nil
			})
		},
	})
	cmd.AddCommand(newCreateListingCommand(rootOpts))
	cmd.AddCommand(newUpdateListingCommand(rootOpts))
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				id, err := idArg(args)
				if err != nil {
					return nil, err
				}
				if err := requireRoute(a, nav.RouteListings); err != nil {
					return nil, err
				}
				if err := a.Listings.Remove(ctx, id); err != nil {
					return nil, err
				}
				return listingsView(a.Listings.Items()), nil
			})
		},
	})

	return cmd
}

func listListings(opts *RootOptions) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(opts, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
			if err := requireRoute(a, nav.RouteListings); err != nil {
				return nil, err
			}
			items, err := a.Listings.FetchAll(ctx)
			if err != nil {
				return nil, err
			}
			return listingsView(items), nil
		})
	}
}

func newCreateListingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "List a sneaker for sale or trade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				if err := requireRoute(a, nav.RouteListings); err != nil {
					return nil, err
				}
				l, err := a.Listings.Create(ctx, api.CreateListingRequest{
					Name:        opts.Name,
					Brand:       opts.Brand,
					Size:        opts.Size,
					Condition:   api.Condition(opts.Condition),
					Price:       opts.Price,
					Description: opts.Description,
					ImageURL:    opts.ImageURL,
				})
				if err != nil {
					return nil, err
				}
				return listingView(*l), nil
			})
		},
	}
	opts.bind(cmd)

	return cmd
}

func newUpdateListingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a listing",
		Long: `Change fields of a listing. Only the flags given are sent; the
other fields keep their current values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := opts.changes(cmd)
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				id, err := idArg(args)
				if err != nil {
					return nil, err
				}
				if err := requireRoute(a, nav.RouteListings); err != nil {
					return nil, err
				}
				l, err := a.Listings.Update(ctx, id, req)
				if err != nil {
					return nil, err
				}
				return listingView(*l), nil
			})
		},
	}
	opts.bind(cmd)

	return cmd
}

// changes builds a partial update from the flags the user set.
func (o *ListingOptions) changes(cmd *cobra.Command) api.UpdateListingRequest {
	var req api.UpdateListingRequest
	set := cmd.Flags().Changed
	if set("name") {
		req.Name = &o.Name
	}
	if set("brand") {
		req.Brand = &o.Brand
	}
	if set("size") {
		req.Size = &o.Size
	}
	if set("condition") {
		c := api.Condition(o.Condition)
		req.Condition = &c
	}
	if set("price") {
		req.Price = &o.Price
	}
	if set("description") {
		req.Description = &o.Description
	}
	if set("image-url") {
		req.ImageURL = &o.ImageURL
	}
	return req
}

func listingPath(id string) string {
	return nav.RouteListings + "/" + url.PathEscape(id)
}
