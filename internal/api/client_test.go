package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sneakerengine/internal/api"
	"github.com/roach88/sneakerengine/internal/api/apitest"
)

type staticTokens string

func (s staticTokens) CurrentToken() (string, bool) {
	return string(s), s != ""
}

func newClient(t *testing.T, srv *apitest.Server, opts ...api.Option) *api.Client {
	t.Helper()
	c, err := api.NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func sampleListing() api.CreateListingRequest {
	return api.CreateListingRequest{
		Name:      "Air Jordan 1",
		Brand:     "Nike",
		Size:      "42",
		Condition: api.ConditionLikeNew,
		Price:     180,
	}
}

func TestNewClient_RejectsBadScheme(t *testing.T) {
	_, err := api.NewClient("ftp://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := api.NewClient("http://localhost:8000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
}

func TestRegisterThenLogin(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := newClient(t, srv)
	ctx := context.Background()

	reg, err := c.Register(ctx, api.RegisterRequest{Username: "kicks", Email: "kicks@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, "kicks", reg.User.Username)

	login, err := c.Login(ctx, api.LoginRequest{Email: "kicks@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.Equal(t, "bearer", login.TokenType)
}

func TestLogin_BadCredentialsIsStatusError(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.SeedUser("kicks", "kicks@example.com", "secret1")
	c := newClient(t, srv)

	_, err := c.Login(context.Background(), api.LoginRequest{Email: "kicks@example.com", Password: "nope"})
	require.Error(t, err)

	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "Incorrect email or password", se.Detail)
	assert.True(t, api.IsUnauthorized(err))
}

func TestAuthenticatedCalls_AttachBearerToken(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	user := srv.SeedUser("kicks", "kicks@example.com", "secret1")
	c := newClient(t, srv)
	ctx := context.Background()

	_, err := c.ListListings(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, api.StatusCode(err))

	c.UseTokens(staticTokens(srv.IssueToken(user)))
	listings, err := c.ListListings(ctx)
	require.NoError(t, err)
	assert.Empty(t, listings)
	assert.NotNil(t, listings)
}

func TestListingLifecycle(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	user := srv.SeedUser("kicks", "kicks@example.com", "secret1")
	c := newClient(t, srv)
	c.UseTokens(staticTokens(srv.IssueToken(user)))
	ctx := context.Background()

	created, err := c.CreateListing(ctx, sampleListing())
	require.NoError(t, err)
	assert.Equal(t, user.ID, created.OwnerID)
	require.NotNil(t, created.Owner)
	assert.Equal(t, "kicks", created.Owner.Username)

	price := 150.0
	updated, err := c.UpdateListing(ctx, created.ID, api.UpdateListingRequest{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 150.0, updated.Price)
	assert.Equal(t, "Air Jordan 1", updated.Name)

	got, err := c.GetListing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Price)

	require.NoError(t, c.DeleteListing(ctx, created.ID))

	_, err = c.GetListing(ctx, created.ID)
	assert.Equal(t, http.StatusNotFound, api.StatusCode(err))
}

func TestPropositionLifecycle(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	owner := srv.SeedUser("owner", "owner@example.com", "secret1")
	buyer := srv.SeedUser("buyer", "buyer@example.com", "secret1")
	listing := srv.SeedListing(owner.ID, sampleListing())
	ctx := context.Background()

	buyerClient := newClient(t, srv)
	buyerClient.UseTokens(staticTokens(srv.IssueToken(buyer)))
	ownerClient := newClient(t, srv)
	ownerClient.UseTokens(staticTokens(srv.IssueToken(owner)))

	price := 170.0
	p, err := buyerClient.CreateProposition(ctx, api.CreatePropositionRequest{
		SneakerID:  listing.ID,
		OfferType:  api.OfferBuy,
		OfferPrice: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, api.StatusPending, p.Status)

	// The buyer cannot accept their own offer.
	_, err = buyerClient.AcceptProposition(ctx, p.ID)
	assert.Equal(t, http.StatusForbidden, api.StatusCode(err))

	accepted, err := ownerClient.AcceptProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusAccepted, accepted.Status)

	_, err = ownerClient.RejectProposition(ctx, p.ID)
	assert.Equal(t, http.StatusBadRequest, api.StatusCode(err))

	visible, err := ownerClient.ListPropositions(ctx)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	require.NoError(t, buyerClient.CancelProposition(ctx, p.ID))
	_, err = buyerClient.GetProposition(ctx, p.ID)
	assert.Equal(t, http.StatusNotFound, api.StatusCode(err))
}

func TestStatusError_DecodesValidationDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`))
	}))
	defer ts.Close()

	c, err := api.NewClient(ts.URL)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), api.LoginRequest{Email: "x", Password: "y"})
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "value is not a valid email address", se.Detail)
	assert.Contains(t, se.Error(), "422")
}

func TestBreaker_OpensAfterServerErrors(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c, err := api.NewClient(ts.URL, api.WithBreaker(api.BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.ListListings(ctx)
		assert.Equal(t, http.StatusBadGateway, api.StatusCode(err))
	}

	_, err = c.ListListings(ctx)
	require.ErrorIs(t, err, api.ErrUnavailable)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the server")
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := api.NewClient(ts.URL, api.WithBreaker(api.BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      1,
	}))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := c.GetListing(context.Background(), "missing")
		assert.Equal(t, http.StatusNotFound, api.StatusCode(err))
	}
}

func TestInjectedFailure(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	user := srv.SeedUser("kicks", "kicks@example.com", "secret1")
	c := newClient(t, srv)
	c.UseTokens(staticTokens(srv.IssueToken(user)))

	srv.FailNext("GET /api/sneakers", http.StatusInternalServerError)

	_, err := c.ListListings(context.Background())
	assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err))

	_, err = c.ListListings(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, srv.Count("GET /api/sneakers"))
}

func TestExpiredTokenRejected(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	user := srv.SeedUser("kicks", "kicks@example.com", "secret1")
	srv.SetTokenTTL(-time.Minute)

	c := newClient(t, srv)
	c.UseTokens(staticTokens(srv.IssueToken(user)))

	_, err := c.ListListings(context.Background())
	assert.True(t, api.IsUnauthorized(err))
}
