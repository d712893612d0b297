// Package nav holds the route table, the navigator and the route guard.
//
// Navigation is a side effect requested by other components (the session
// manager after login or logout) and by the presentation layer. Every
// navigation runs through the guard: protected routes are only reachable
// while the auth checker reports an authenticated session; otherwise the
// router lands on the login route instead.
package nav

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/sneakerengine/internal/reactive"
)

// Route paths.
const (
	RouteHome          = "/home"
	RouteLogin         = "/login"
	RouteRegister      = "/register"
	RouteListings      = "/sneakers"
	RouteListingDetail = "/sneakers/:id"
	RoutePropositions  = "/propositions"
)

// Route is one entry of the route table.
type Route struct {
	Pattern   string
	Protected bool
}

// Routes is the route table. Unknown paths redirect to RouteHome.
var Routes = []Route{
	{Pattern: RouteHome},
	{Pattern: RouteLogin},
	{Pattern: RouteRegister},
	{Pattern: RouteListings, Protected: true},
	{Pattern: RouteListingDetail, Protected: true},
	{Pattern: RoutePropositions, Protected: true},
}

// Match finds the route for path and extracts ":name" parameters.
func Match(path string) (Route, map[string]string, bool) {
	segs := splitPath(path)
	for _, r := range Routes {
		pattern := splitPath(r.Pattern)
		if len(pattern) != len(segs) {
			continue
		}
		params := map[string]string{}
		matched := true
		for i, p := range pattern {
			if name, ok := strings.CutPrefix(p, ":"); ok {
				params[name] = segs[i]
				continue
			}
			if p != segs[i] {
				matched = false
				break
			}
		}
		if matched {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// AuthChecker reports whether a session is authenticated.
type AuthChecker interface {
	IsAuthenticated() bool
}

// AuthFunc adapts a function to AuthChecker.
type AuthFunc func() bool

func (f AuthFunc) IsAuthenticated() bool { return f() }

// Guard denies protected routes to unauthenticated sessions.
type Guard struct {
	auth AuthChecker
}

// NewGuard creates a guard reading auth.
func NewGuard(auth AuthChecker) *Guard {
	return &Guard{auth: auth}
}

// CanActivate reports whether r may be entered now. A nil Guard denies
// every protected route.
func (g *Guard) CanActivate(r Route) bool {
	if !r.Protected {
		return true
	}
	return g != nil && g.auth != nil && g.auth.IsAuthenticated()
}

// Router tracks the current location.
//
// Thread-safety: safe for concurrent use.
type Router struct {
	mu      sync.Mutex
	guard   *Guard
	current *reactive.Value[string]
	history []string
	logger  *slog.Logger
}

// NewRouter creates a router at RouteHome.
func NewRouter(guard *Guard, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		guard:   guard,
		current: reactive.New(RouteHome),
		logger:  logger,
	}
}

// Resolve returns where a navigation to path would land, without moving.
func (r *Router) Resolve(path string) string {
	if strings.TrimSpace(path) == "" || path == "/" {
		return RouteHome
	}
	route, _, ok := Match(path)
	if !ok {
		return RouteHome
	}
	if !r.guard.CanActivate(route) {
		return RouteLogin
	}
	return "/" + strings.Trim(path, "/")
}

// Navigate moves to path, applying redirects and the guard.
func (r *Router) Navigate(path string) {
	target := r.Resolve(path)
	if target != "/"+strings.Trim(path, "/") {
		r.logger.Debug("navigation redirected", "requested", path, "target", target)
	}

	r.mu.Lock()
	r.history = append(r.history, target)
	r.mu.Unlock()

	r.current.Set(target)
}

// Current is the reactive current location.
func (r *Router) Current() reactive.Readable[string] {
	return r.current.ReadOnly()
}

// History returns every location navigated to, oldest first.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}
