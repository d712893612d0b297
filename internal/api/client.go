// Package api is the client for the marketplace REST API.
//
// The client only shapes requests and decodes responses. It never retries;
// every failure is returned once to the calling component, which decides
// how to surface it. Calls pass through a circuit breaker so a dead API
// fails fast instead of stacking timeouts.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	CurrentToken() (string, bool)
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Client talks to the marketplace API.
//
// Thread-safety: safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	mu     sync.RWMutex
	tokens TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBreaker replaces the default breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) {
		c.breaker = newBreaker(cfg, c)
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	c.breaker = newBreaker(DefaultBreakerConfig(), c)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newBreaker(cfg BreakerConfig, c *Client) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketplace-api",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Client errors mean the API is up and answering.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			code := StatusCode(err)
			return code != 0 && code < http.StatusInternalServerError
		},
	})
}

// UseTokens sets the source of the bearer token attached to /api calls.
func (c *Client) UseTokens(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login calls POST /auth/login.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register calls POST /auth/register.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListListings calls GET /api/sneakers.
func (c *Client) ListListings(ctx context.Context) ([]Listing, error) {
	out := []Listing{}
	if err := c.do(ctx, http.MethodGet, "/api/sneakers", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GetListing calls GET /api/sneakers/{id}.
func (c *Client) GetListing(ctx context.Context, id string) (*Listing, error) {
	var out Listing
	if err := c.do(ctx, http.MethodGet, "/api/sneakers/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateListing calls POST /api/sneakers.
func (c *Client) CreateListing(ctx context.Context, req CreateListingRequest) (*Listing, error) {
	var out Listing
	if err := c.do(ctx, http.MethodPost, "/api/sneakers", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateListing calls PUT /api/sneakers/{id}.
func (c *Client) UpdateListing(ctx context.Context, id string, req UpdateListingRequest) (*Listing, error) {
	var out Listing
	if err := c.do(ctx, http.MethodPut, "/api/sneakers/"+url.PathEscape(id), req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteListing calls DELETE /api/sneakers/{id}.
func (c *Client) DeleteListing(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sneakers/"+url.PathEscape(id), nil, nil, true)
}

// ListPropositions calls GET /api/propositions.
func (c *Client) ListPropositions(ctx context.Context) ([]Proposition, error) {
	out := []Proposition{}
	if err := c.do(ctx, http.MethodGet, "/api/propositions", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProposition calls GET /api/propositions/{id}.
func (c *Client) GetProposition(ctx context.Context, id string) (*Proposition, error) {
	var out Proposition
	if err := c.do(ctx, http.MethodGet, "/api/propositions/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProposition calls POST /api/propositions.
func (c *Client) CreateProposition(ctx context.Context, req CreatePropositionRequest) (*Proposition, error) {
	var out Proposition
	if err := c.do(ctx, http.MethodPost, "/api/propositions", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptProposition calls PUT /api/propositions/{id}/accept with an empty body.
func (c *Client) AcceptProposition(ctx context.Context, id string) (*Proposition, error) {
	var out Proposition
	if err := c.do(ctx, http.MethodPut, "/api/propositions/"+url.PathEscape(id)+"/accept", struct{}{}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// RejectProposition calls PUT /api/propositions/{id}/reject with an empty body.
func (c *Client) RejectProposition(ctx context.Context, id string) (*Proposition, error) {
	var out Proposition
	if err := c.do(ctx, http.MethodPut, "/api/propositions/"+url.PathEscape(id)+"/reject", struct{}{}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelProposition calls DELETE /api/propositions/{id}.
func (c *Client) CancelProposition(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/propositions/"+url.PathEscape(id), nil, nil, true)
}

// do performs one request through the breaker. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out, authed)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if token, ok := c.token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     decodeDetail(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) token() (string, bool) {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return "", false
	}
	return ts.CurrentToken()
}
