// Package session holds the authentication slice of the application state
// and the transitions between signed-out, gated and signed-in.
package session

import (
	"time"

	"github.com/nhle/dealroom/internal/model"
)

// State is the authentication slice of the application state.
type State struct {
	Status model.AuthStatus

	// Session is nil whenever no user is signed in.
	Session *model.AuthSession

	// RequiresBiometricUnlock gates authenticated screens behind a device
	// unlock. It is only meaningful while a session is held.
	RequiresBiometricUnlock bool

	// Err is the last sign-in or unlock failure.
	Err error

	// FailedUnlocks counts consecutive unlock failures since the gate opened.
	FailedUnlocks int
}

// Initial returns the state before any session is known.
func Initial() State {
	return State{Status: model.AuthIdle}
}

// IsAuthenticated reports whether a signed-in session is held.
func (s State) IsAuthenticated() bool {
	return s.Status == model.AuthAuthenticated
}

// HasSession reports whether session credentials are present.
func (s State) HasSession() bool {
	return s.Session != nil
}

// Action is a state transition applied by Reduce.
type Action interface {
	isAction()
}

// SignInStarted marks a credential exchange as in flight.
type SignInStarted struct{}

// SignInSucceeded installs a freshly issued session.
type SignInSucceeded struct{ Session model.AuthSession }

// SignInFailed records a rejected sign-in.
type SignInFailed struct{ Err error }

// SessionRestored installs a session loaded from secure storage at Now.
type SessionRestored struct {
	Session model.AuthSession
	Now     time.Time
}

// NoSessionStored completes a restore that found nothing.
type NoSessionStored struct{}

// AppForegrounded re-arms the unlock gate when the app resumes.
type AppForegrounded struct{}

// BiometricVerified opens the unlock gate.
type BiometricVerified struct{}

// BiometricFailed records a failed unlock attempt; the gate stays closed.
type BiometricFailed struct{ Err error }

// TokenRefreshed replaces the session after a token refresh.
type TokenRefreshed struct{ Session model.AuthSession }

// TokenInvalidated drops the session after the backend rejected it.
type TokenInvalidated struct{ Err error }

// SignedOut drops the session at the user's request.
type SignedOut struct{}

func (SignInStarted) isAction()     {}
func (SignInSucceeded) isAction()   {}
func (SignInFailed) isAction()      {}
func (SessionRestored) isAction()   {}
func (NoSessionStored) isAction()   {}
func (AppForegrounded) isAction()   {}
func (BiometricVerified) isAction() {}
func (BiometricFailed) isAction()   {}
func (TokenRefreshed) isAction()    {}
func (TokenInvalidated) isAction()  {}
func (SignedOut) isAction()         {}

// Reduce applies a to s and returns the new state.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SignInStarted:
		s.Status = model.AuthLoading
		s.Err = nil

	case SignInSucceeded:
		sess := a.Session
		return State{
			Status:                  model.AuthAuthenticated,
			Session:                 &sess,
			RequiresBiometricUnlock: sess.HasBiometricKey(),
		}

	case SignInFailed:
		return State{Status: model.AuthError, Err: a.Err}

	case SessionRestored:
		sess := a.Session
		// An expired session is still kept when it can be refreshed; the
		// shell exchanges the refresh token before any authenticated call.
		if sess.Expired(a.Now) && !sess.CanRefresh() {
			return State{Status: model.AuthUnauthenticated}
		}
		return State{
			Status:                  model.AuthAuthenticated,
			Session:                 &sess,
			RequiresBiometricUnlock: sess.HasBiometricKey(),
		}

	case NoSessionStored:
		return State{Status: model.AuthUnauthenticated}

	case AppForegrounded:
		if s.Session != nil && s.Session.HasBiometricKey() {
			s.RequiresBiometricUnlock = true
			s.FailedUnlocks = 0
		}

	case BiometricVerified:
		if s.Session == nil {
			return s
		}
		s.RequiresBiometricUnlock = false
		s.FailedUnlocks = 0
		s.Err = nil

	case BiometricFailed:
		if !s.RequiresBiometricUnlock {
			return s
		}
		s.FailedUnlocks++
		s.Err = a.Err

	case TokenRefreshed:
		if s.Session == nil {
			return s
		}
		sess := a.Session
		if sess.BiometricKey == "" {
			sess.BiometricKey = s.Session.BiometricKey
		}
		s.Session = &sess

	case TokenInvalidated:
		return State{Status: model.AuthUnauthenticated, Err: a.Err}

	case SignedOut:
		return State{Status: model.AuthUnauthenticated}
	}

	return s
}
