// Package nav decides which screen stack is mounted and which routes may
// be shown from it.
//
// Resolve is a pure function of the authentication signals. Navigator keeps
// the route history within the current stack and refuses routes the stack
// does not declare.
package nav

import (
	"errors"
	"fmt"
)

// Stack is one of the mutually exclusive screen sets.
type Stack int

const (
	StackUnauthenticated Stack = iota
	StackBiometricGate
	StackAuthenticated
)

// String returns the stack name.
func (s Stack) String() string {
	switch s {
	case StackUnauthenticated:
		return "unauthenticated"
	case StackBiometricGate:
		return "biometric-gate"
	case StackAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Signals are the inputs to Resolve.
type Signals struct {
	IsAuthenticated         bool
	RequiresBiometricUnlock bool
	HasSession              bool
}

// Resolve selects the stack for the given signals. Any inconsistent
// combination falls back to StackUnauthenticated.
func Resolve(sig Signals) Stack {
	if !sig.IsAuthenticated || !sig.HasSession {
		return StackUnauthenticated
	}
	if sig.RequiresBiometricUnlock {
		return StackBiometricGate
	}
	return StackAuthenticated
}

// stackRoutes is the fixed, disjoint route set of each stack. The first
// entry is the stack's root screen.
var stackRoutes = map[Stack][]RouteName{
	StackUnauthenticated: {RouteSignIn},
	StackBiometricGate:   {RouteBiometricUnlock},
	StackAuthenticated: {
		RouteDealList,
		RouteDealDetail,
		RouteDocumentList,
		RouteDocumentViewer,
		RouteUpload,
		RouteNotifications,
		RouteHelp,
		RouteCommand,
	},
}

// Routes returns the routes declared by s.
func Routes(s Stack) []RouteName {
	out := make([]RouteName, len(stackRoutes[s]))
	copy(out, stackRoutes[s])
	return out
}

// Reachable reports whether s declares the route.
func Reachable(s Stack, r RouteName) bool {
	for _, name := range stackRoutes[s] {
		if name == r {
			return true
		}
	}
	return false
}

// RootRoute returns the entry screen of s.
func RootRoute(s Stack) Route {
	return Route{Name: stackRoutes[s][0]}
}

// ErrRouteUnreachable is returned when pushing a route that the mounted
// stack does not declare.
var ErrRouteUnreachable = errors.New("route not reachable from current stack")

// Navigator holds the history of routes within the mounted stack.
// The zero value is not usable; call NewNavigator.
type Navigator struct {
	stack   Stack
	history []Route
}

// NewNavigator returns a navigator mounted on the stack for sig.
func NewNavigator(sig Signals) *Navigator {
	n := &Navigator{}
	n.mount(Resolve(sig))
	return n
}

func (n *Navigator) mount(s Stack) {
	n.stack = s
	n.history = []Route{RootRoute(s)}
}

// Sync re-resolves the stack for sig. When the stack changes the history is
// replaced by the new stack's root; it reports whether that happened.
func (n *Navigator) Sync(sig Signals) bool {
	s := Resolve(sig)
	if s == n.stack {
		return false
	}
	n.mount(s)
	return true
}

// Stack returns the mounted stack.
func (n *Navigator) Stack() Stack { return n.stack }

// Current returns the route on top of the history.
func (n *Navigator) Current() Route { return n.history[len(n.history)-1] }

// Depth returns the number of routes in the history.
func (n *Navigator) Depth() int { return len(n.history) }

// Push shows r on top of the current route.
func (n *Navigator) Push(r Route) error {
	if !Reachable(n.stack, r.Name) {
		return fmt.Errorf("%w: %s from %s", ErrRouteUnreachable, r.Name, n.stack)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	n.history = append(n.history, r)
	return nil
}

// Replace swaps the current route for r.
func (n *Navigator) Replace(r Route) error {
	if !Reachable(n.stack, r.Name) {
		return fmt.Errorf("%w: %s from %s", ErrRouteUnreachable, r.Name, n.stack)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	n.history[len(n.history)-1] = r
	return nil
}

// Pop returns to the previous route. The root is never popped.
func (n *Navigator) Pop() Route {
	if len(n.history) > 1 {
		n.history = n.history[:len(n.history)-1]
	}
	return n.Current()
}

// PopTo unwinds the history to the most recent route named name, if any.
func (n *Navigator) PopTo(name RouteName) bool {
	for i := len(n.history) - 1; i >= 0; i-- {
		if n.history[i].Name == name {
			n.history = n.history[:i+1]
			return true
		}
	}
	return false
}
