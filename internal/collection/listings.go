package collection

import (
	"context"
	"errors"

	"github.com/roach88/sneakerengine/internal/api"
)

// ListingsRemote is the remote boundary of the listings collection.
type ListingsRemote interface {
	ListListings(ctx context.Context) ([]api.Listing, error)
	GetListing(ctx context.Context, id string) (*api.Listing, error)
	CreateListing(ctx context.Context, req api.CreateListingRequest) (*api.Listing, error)
	UpdateListing(ctx context.Context, id string, req api.UpdateListingRequest) (*api.Listing, error)
	DeleteListing(ctx context.Context, id string) error
}

var (
	listingReads = ReadMessages{
		FetchFailed: "Failed to load sneakers",
		GetFailed:   "Failed to load sneaker details",
	}
	listingCreate = Messages{Success: "Sneaker added successfully!", Failure: "Failed to add sneaker"}
	listingUpdate = Messages{Success: "Sneaker updated successfully!", Failure: "Failed to update sneaker"}
	listingDelete = Messages{Success: "Sneaker deleted successfully!", Failure: "Failed to delete sneaker"}
)

// errEmptyUpdate rejects an update that changes nothing.
var errEmptyUpdate = errors.New("update sets no fields")

// Listings is the cached sneaker listings collection.
type Listings struct {
	*Proxy[api.Listing]
	remote ListingsRemote
}

// NewListings creates an empty listings collection.
func NewListings(remote ListingsRemote, notifier Notifier, opts ...Option) *Listings {
	return &Listings{
		Proxy:  NewProxy[api.Listing]("sneakers", remote.ListListings, remote.GetListing, notifier, listingReads, opts...),
		remote: remote,
	}
}

// Create adds a listing.
func (l *Listings) Create(ctx context.Context, req api.CreateListingRequest) (*api.Listing, error) {
	req = req.Normalize()
	if err := api.Validate(req); err != nil {
		return nil, l.reject("create", "", listingCreate, err)
	}
	return mutate(ctx, l.Proxy, "create", "", listingCreate, func(ctx context.Context) (*api.Listing, error) {
		return l.remote.CreateListing(ctx, req)
	})
}

// Update changes the fields set in req.
func (l *Listings) Update(ctx context.Context, id string, req api.UpdateListingRequest) (*api.Listing, error) {
	req = req.Normalize()
	if req.IsEmpty() {
		return nil, l.reject("update", id, listingUpdate, errEmptyUpdate)
	}
	if err := api.Validate(req); err != nil {
		return nil, l.reject("update", id, listingUpdate, err)
	}
	return mutate(ctx, l.Proxy, "update", id, listingUpdate, func(ctx context.Context) (*api.Listing, error) {
		return l.remote.UpdateListing(ctx, id, req)
	})
}

// Remove deletes a listing.
func (l *Listings) Remove(ctx context.Context, id string) error {
	_, err := mutate(ctx, l.Proxy, "delete", id, listingDelete, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.remote.DeleteListing(ctx, id)
	})
	return err
}
