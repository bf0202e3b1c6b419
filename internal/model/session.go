package model

import "time"

// AuthStatus is the coarse authentication state.
type AuthStatus string

const (
	AuthIdle            AuthStatus = "idle"
	AuthLoading         AuthStatus = "loading"
	AuthAuthenticated   AuthStatus = "authenticated"
	AuthUnauthenticated AuthStatus = "unauthenticated"
	AuthError           AuthStatus = "error"
)

// Profile describes the signed-in user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthSession holds a signed-in user's credentials.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Profile      Profile   `json:"profile"`

	// BiometricKey is the device unlock verifier. When present the session
	// must be unlocked on this device before authenticated screens show.
	BiometricKey string `json:"biometric_key,omitempty"`
}

// Expired reports whether the access token is no longer usable at now.
// A zero ExpiresAt is treated as expired.
func (s AuthSession) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}

// CanRefresh reports whether a refresh token is available.
func (s AuthSession) CanRefresh() bool {
	return s.RefreshToken != ""
}

// HasBiometricKey reports whether biometric unlock is configured.
func (s AuthSession) HasBiometricKey() bool {
	return s.BiometricKey != ""
}
