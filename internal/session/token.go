package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when an access token carries no exp claim.
var ErrNoExpiry = errors.New("access token has no expiry")

// ExpiryFromJWT reads the exp claim of an access token. The signature is
// not checked; the backend verifies tokens, the client only needs to know
// when to stop using one.
func ExpiryFromJWT(accessToken string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// NeedsRefresh reports whether a token expiring at expiresAt should be
// refreshed at now, allowing for leeway.
func NeedsRefresh(expiresAt, now time.Time, leeway time.Duration) bool {
	return expiresAt.IsZero() || !now.Add(leeway).Before(expiresAt)
}
