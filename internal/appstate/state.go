// Package appstate combines the session and notification slices into the
// single state value owned by the root model.
package appstate

import (
	"github.com/nhle/dealroom/internal/nav"
	"github.com/nhle/dealroom/internal/notify"
	"github.com/nhle/dealroom/internal/session"
)

// State is the whole client state outside individual screens.
type State struct {
	Session       session.State
	Notifications notify.State

	// Online is the last result of the backend connectivity probe.
	Online bool
}

// Initial returns the state at startup. The client assumes it is online
// until a probe says otherwise.
func Initial() State {
	return State{Session: session.Initial(), Online: true}
}

// ConnectivityChanged records a connectivity probe result.
type ConnectivityChanged struct{ Online bool }

// Reduce routes a to the slice that owns it. Unknown actions return s
// unchanged. Signing out also empties the notification queue; the device
// token stays registered for the next user.
func Reduce(s State, a any) State {
	switch a := a.(type) {
	case session.Action:
		s.Session = session.Reduce(s.Session, a)
		switch a.(type) {
		case session.SignedOut, session.TokenInvalidated:
			s.Notifications = notify.Reduce(s.Notifications, notify.Clear{})
		}
	case notify.Action:
		s.Notifications = notify.Reduce(s.Notifications, a)
	case ConnectivityChanged:
		s.Online = a.Online
	}
	return s
}

// Signals derives the navigation inputs from s.
func (s State) Signals() nav.Signals {
	return nav.Signals{
		IsAuthenticated:         s.Session.IsAuthenticated(),
		RequiresBiometricUnlock: s.Session.RequiresBiometricUnlock,
		HasSession:              s.Session.HasSession(),
	}
}
