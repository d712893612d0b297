package collection

import (
	"context"

	"github.com/roach88/sneakerengine/internal/api"
)

// PropositionsRemote is the remote boundary of the propositions collection.
type PropositionsRemote interface {
	ListPropositions(ctx context.Context) ([]api.Proposition, error)
	GetProposition(ctx context.Context, id string) (*api.Proposition, error)
	CreateProposition(ctx context.Context, req api.CreatePropositionRequest) (*api.Proposition, error)
	AcceptProposition(ctx context.Context, id string) (*api.Proposition, error)
	RejectProposition(ctx context.Context, id string) (*api.Proposition, error)
	CancelProposition(ctx context.Context, id string) error
}

var (
	propositionReads = ReadMessages{
		FetchFailed: "Failed to load propositions",
		GetFailed:   "Failed to load proposition details",
	}
	propositionCreate = Messages{Success: "Proposition submitted successfully!", Failure: "Failed to submit proposition"}
	propositionAccept = Messages{Success: "Proposition accepted!", Failure: "Failed to accept proposition"}
	propositionReject = Messages{Success: "Proposition rejected", Failure: "Failed to reject proposition"}
	propositionCancel = Messages{Success: "Proposition cancelled", Failure: "Failed to cancel proposition"}
)

// Propositions is the cached propositions collection. Status transitions
// happen on the server; the cache only ever reflects a fetch.
type Propositions struct {
	*Proxy[api.Proposition]
	remote PropositionsRemote
}

// NewPropositions creates an empty propositions collection.
func NewPropositions(remote PropositionsRemote, notifier Notifier, opts ...Option) *Propositions {
	return &Propositions{
		Proxy:  NewProxy[api.Proposition]("propositions", remote.ListPropositions, remote.GetProposition, notifier, propositionReads, opts...),
		remote: remote,
	}
}

// Create submits an offer on a listing.
func (p *Propositions) Create(ctx context.Context, req api.CreatePropositionRequest) (*api.Proposition, error) {
	req = req.Normalize()
	if err := api.Validate(req); err != nil {
		return nil, p.reject("create", "", propositionCreate, err)
	}
	return mutate(ctx, p.Proxy, "create", "", propositionCreate, func(ctx context.Context) (*api.Proposition, error) {
		return p.remote.CreateProposition(ctx, req)
	})
}

// Accept accepts a pending offer on one of the caller's listings.
func (p *Propositions) Accept(ctx context.Context, id string) (*api.Proposition, error) {
	return mutate(ctx, p.Proxy, "accept", id, propositionAccept, func(ctx context.Context) (*api.Proposition, error) {
		return p.remote.AcceptProposition(ctx, id)
	})
}

// Reject declines a pending offer on one of the caller's listings.
func (p *Propositions) Reject(ctx context.Context, id string) (*api.Proposition, error) {
	return mutate(ctx, p.Proxy, "reject", id, propositionReject, func(ctx context.Context) (*api.Proposition, error) {
		return p.remote.RejectProposition(ctx, id)
	})
}

// Cancel withdraws one of the caller's own offers.
func (p *Propositions) Cancel(ctx context.Context, id string) error {
	_, err := mutate(ctx, p.Proxy, "cancel", id, propositionCancel, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.remote.CancelProposition(ctx, id)
	})
	return err
}
