// Package navigation maps roles to their landing routes.
package navigation

import (
	"sync"

	"github.com/comanda-app/api/internal/enum"
)

const (
	RouteAuth    = "/auth"
	RouteAdmin   = "/admin"
	RouteCashier = "/caixa"
	RouteWaiter  = "/garcon"
	RouteCourier = "/entregador"
	RouteKitchen = "/cozinha"
)

var roleRoutes = map[string]string{
	enum.RoleAdmin:   RouteAdmin,
	enum.RoleCashier: RouteCashier,
	enum.RoleWaiter:  RouteWaiter,
	enum.RoleCourier: RouteCourier,
	enum.RoleKitchen: RouteKitchen,
}

// RouteForRole returns the landing route of role. Unknown or empty roles
// land on the admin dashboard.
func RouteForRole(role string) string {
	if route, ok := roleRoutes[role]; ok {
		return route
	}
	return RouteAdmin
}

// RoleForRoute is the inverse of RouteForRole for the five known routes.
func RoleForRoute(route string) (string, bool) {
	for role, r := range roleRoutes {
		if r == route {
			return role, true
		}
	}
	return "", false
}

// Navigator remembers the last route it sent the user to so repeated
// resolutions of the same profile do not redirect again.
type Navigator struct {
	mu      sync.Mutex
	current string
}

// Navigate returns the route for role and whether it differs from the
// current one. An empty role with signedIn=false goes to the auth route.
func (n *Navigator) Navigate(role string, signedIn bool) (string, bool) {
	route := RouteAuth
	if signedIn {
		route = RouteForRole(role)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if route == n.current {
		return route, false
	}
	n.current = route
	return route, true
}

func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigator) Reset() {
	n.mu.Lock()
	n.current = ""
	n.mu.Unlock()
}
