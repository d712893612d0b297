// Package apitest provides an in-process fake of the marketplace API.
//
// The fake keeps users, listings and propositions in memory, issues HS256
// JWTs on login and registration, and enforces bearer auth on /api routes.
// Tests can count requests per route and inject failures.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/sneakerengine/internal/api"
)

var signingKey = []byte("apitest-signing-key")

type account struct {
	user     api.User
	password string
}

// Server is a fake marketplace API.
//
// Thread-safety: safe for concurrent use.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	accounts     map[string]*account // by email
	listings     map[string]*api.Listing
	propositions map[string]*api.Proposition
	nextID       int
	counts       map[string]int
	failures     map[string][]int
	tokenTTL     time.Duration
	now          func() time.Time
}

// NewServer starts a fake API. The caller must Close it.
func NewServer() *Server {
	s := &Server{
		accounts:     make(map[string]*account),
		listings:     make(map[string]*api.Listing),
		propositions: make(map[string]*api.Proposition),
		counts:       make(map[string]int),
		failures:     make(map[string][]int),
		tokenTTL:     time.Hour,
		now:          time.Now,
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/sneakers", s.handleListListings)
		r.Post("/sneakers", s.handleCreateListing)
		r.Get("/sneakers/{id}", s.handleGetListing)
		r.Put("/sneakers/{id}", s.handleUpdateListing)
		r.Delete("/sneakers/{id}", s.handleDeleteListing)

		r.Get("/propositions", s.handleListPropositions)
		r.Post("/propositions", s.handleCreateProposition)
		r.Get("/propositions/{id}", s.handleGetProposition)
		r.Delete("/propositions/{id}", s.handleCancelProposition)
		r.Put("/propositions/{id}/accept", s.handleTransition(api.StatusAccepted))
		r.Put("/propositions/{id}/reject", s.handleTransition(api.StatusRejected))
	})

	return r
}

// Count returns how many requests reached the handler for route, written
// as "METHOD /pattern", e.g. "GET /api/sneakers" or
// "PUT /api/propositions/{id}/accept". Requests rejected by auth are not counted.
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[route]
}

// FailNext makes the next request to route answer with status instead of
// being handled. Multiple calls queue up.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// SetTokenTTL changes the lifetime of tokens issued from now on.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// SeedUser creates an account directly and returns its user.
func (s *Server) SeedUser(username, email, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(username, email, password).user
}

// SeedListing stores a listing owned by ownerID and returns it.
func (s *Server) SeedListing(ownerID string, req api.CreateListingRequest) api.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.addListingLocked(ownerID, req)
}

// IssueToken returns a valid bearer token for user.
func (s *Server) IssueToken(user api.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(user)
}

// Listings returns every stored listing ordered by id.
func (s *Server) Listings() []api.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedListingsLocked("")
}

func (s *Server) routeKey(r *http.Request) string {
	pattern := chi.RouteContext(r.Context()).RoutePattern()
	return r.Method + " " + pattern
}

// intercept is called by every handler once chi has resolved the pattern.
// Returns true when an injected failure was written.
func (s *Server) intercept(w http.ResponseWriter, r *http.Request) bool {
	key := s.routeKey(r)

	s.mu.Lock()
	s.counts[key]++
	var status int
	if q := s.failures[key]; len(q) > 0 {
		status = q[0]
		s.failures[key] = q[1:]
	}
	s.mu.Unlock()

	if status != 0 {
		writeDetail(w, status, "injected failure")
		return true
	}
	return false
}

func (s *Server) addAccountLocked(username, email, password string) *account {
	s.nextID++
	acct := &account{
		user: api.User{
			ID:        fmt.Sprintf("user-%d", s.nextID),
			Username:  username,
			Email:     email,
			CreatedAt: api.NewTimestamp(s.now().UTC().Truncate(time.Second)),
		},
		password: password,
	}
	s.accounts[email] = acct
	return acct
}

func (s *Server) addListingLocked(ownerID string, req api.CreateListingRequest) *api.Listing {
	s.nextID++
	now := api.NewTimestamp(s.now().UTC().Truncate(time.Second))
	l := &api.Listing{
		ID:          fmt.Sprintf("sneaker-%d", s.nextID),
		Name:        req.Name,
		Brand:       req.Brand,
		Size:        req.Size,
		Condition:   req.Condition,
		Price:       req.Price,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if owner := s.userByIDLocked(ownerID); owner != nil {
		l.Owner = &api.Owner{ID: owner.ID, Username: owner.Username}
	}
	s.listings[l.ID] = l
	return l
}

func (s *Server) userByIDLocked(id string) *api.User {
	for _, a := range s.accounts {
		if a.user.ID == id {
			return &a.user
		}
	}
	return nil
}

func (s *Server) issueTokenLocked(user api.User) string {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return signed
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return signingKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		r.Header.Set("X-User-ID", claims.Subject)
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	for _, a := range s.accounts {
		if a.user.Username == req.Username {
			writeDetail(w, http.StatusBadRequest, "Username already taken")
			return
		}
	}
	acct := s.addAccountLocked(req.Username, req.Email, req.Password)
	writeJSON(w, http.StatusCreated, api.AuthResponse{
		AccessToken: s.issueTokenLocked(acct.user),
		TokenType:   "bearer",
		User:        acct.user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[req.Email]
	if !ok || acct.password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, api.AuthResponse{
		AccessToken: s.issueTokenLocked(acct.user),
		TokenType:   "bearer",
		User:        acct.user,
	})
}

func (s *Server) sortedListingsLocked(ownerID string) []api.Listing {
	out := []api.Listing{}
	for _, l := range s.listings {
		if ownerID == "" || l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sortedListingsLocked(""))
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Sneaker not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	var req api.CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusCreated, s.addListingLocked(userID(r), req))
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	var req api.UpdateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Sneaker not found")
		return
	}
	if l.OwnerID != userID(r) {
		writeDetail(w, http.StatusForbidden, "Not authorized to update this sneaker")
		return
	}
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Brand != nil {
		l.Brand = *req.Brand
	}
	if req.Size != nil {
		l.Size = *req.Size
	}
	if req.Condition != nil {
		l.Condition = *req.Condition
	}
	if req.Price != nil {
		l.Price = *req.Price
	}
	if req.Description != nil {
		l.Description = *req.Description
	}
	if req.ImageURL != nil {
		l.ImageURL = *req.ImageURL
	}
	l.UpdatedAt = api.NewTimestamp(s.now().UTC().Truncate(time.Second))
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	l, ok := s.listings[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Sneaker not found")
		return
	}
	if l.OwnerID != userID(r) {
		writeDetail(w, http.StatusForbidden, "Not authorized to delete this sneaker")
		return
	}
	delete(s.listings, id)
	w.WriteHeader(http.StatusNoContent)
}

// visibleLocked reports whether uid proposed p or owns its listing.
func (s *Server) visibleLocked(p *api.Proposition, uid string) bool {
	if p.ProposerID == uid {
		return true
	}
	l, ok := s.listings[p.SneakerID]
	return ok && l.OwnerID == uid
}

func (s *Server) handleListPropositions(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	out := []api.Proposition{}
	for _, p := range s.propositions {
		if s.visibleLocked(p, uid) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProposition(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.propositions[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Proposition not found")
		return
	}
	if !s.visibleLocked(p, userID(r)) {
		writeDetail(w, http.StatusForbidden, "Not authorized to view this proposition")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProposition(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	var req api.CreatePropositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[req.SneakerID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Sneaker not found")
		return
	}
	uid := userID(r)
	if l.OwnerID == uid {
		writeDetail(w, http.StatusBadRequest, "Cannot propose on your own sneaker")
		return
	}

	s.nextID++
	now := api.NewTimestamp(s.now().UTC().Truncate(time.Second))
	p := &api.Proposition{
		ID:             fmt.Sprintf("proposition-%d", s.nextID),
		SneakerID:      l.ID,
		Sneaker:        &api.ListingSummary{ID: l.ID, Name: l.Name, Brand: l.Brand, Size: l.Size, Price: l.Price},
		ProposerID:     uid,
		OfferType:      req.OfferType,
		OfferPrice:     req.OfferPrice,
		OfferSneakerID: req.OfferSneakerID,
		Status:         api.StatusPending,
		Message:        req.Message,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if u := s.userByIDLocked(uid); u != nil {
		p.Proposer = &api.Owner{ID: u.ID, Username: u.Username}
	}
	s.propositions[p.ID] = p
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleTransition(to api.PropositionStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.intercept(w, r) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		p, ok := s.propositions[chi.URLParam(r, "id")]
		if !ok {
			writeDetail(w, http.StatusNotFound, "Proposition not found")
			return
		}
		l, ok := s.listings[p.SneakerID]
		if !ok || l.OwnerID != userID(r) {
			writeDetail(w, http.StatusForbidden, "Only the sneaker owner can respond to a proposition")
			return
		}
		if p.Status != api.StatusPending {
			writeDetail(w, http.StatusBadRequest, "Proposition is not pending")
			return
		}
		p.Status = to
		p.UpdatedAt = api.NewTimestamp(s.now().UTC().Truncate(time.Second))
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleCancelProposition(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	p, ok := s.propositions[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Proposition not found")
		return
	}
	if p.ProposerID != userID(r) {
		writeDetail(w, http.StatusForbidden, "Only the proposer can cancel a proposition")
		return
	}
	delete(s.propositions, id)
	w.WriteHeader(http.StatusNoContent)
}

// utcSuffix matches a UTC timestamp field. The marketplace backend stores
// naive UTC datetimes and sends them without an offset.
var utcSuffix = regexp.MustCompile(`"(created_at|updated_at)":"([0-9T:.-]+)Z"`)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	body = utcSuffix.ReplaceAll(body, []byte(`"$1":"$2"`))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
