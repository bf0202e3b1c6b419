package appstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/nav"
	"github.com/nhle/dealroom/internal/notify"
	"github.com/nhle/dealroom/internal/session"
)

func signedIn(biometric bool) State {
	sess := model.AuthSession{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	if biometric {
		sess.BiometricKey = "k"
	}
	return Reduce(Initial(), session.SignInSucceeded{Session: sess})
}

func TestReduce_RoutesToSlices(t *testing.T) {
	s := signedIn(false)
	s = Reduce(s, notify.Enqueue{Item: model.NotificationItem{ID: "n1", Title: "Deal moved"}})
	s = Reduce(s, ConnectivityChanged{Online: false})

	assert.True(t, s.Session.IsAuthenticated())
	assert.Len(t, s.Notifications.Items, 1)
	assert.False(t, s.Online)
	assert.Equal(t, s, Reduce(s, "unknown"))
}

func TestReduce_SignOutClearsNotificationsKeepsToken(t *testing.T) {
	s := signedIn(false)
	s = Reduce(s, notify.TokenRegistered{Token: "tok"})
	s = Reduce(s, notify.Enqueue{Item: model.NotificationItem{ID: "n1"}})

	s = Reduce(s, session.SignedOut{})

	assert.Empty(t, s.Notifications.Items)
	assert.Equal(t, "tok", s.Notifications.Token)
}

func TestSignals(t *testing.T) {
	assert.Equal(t, nav.StackUnauthenticated, nav.Resolve(Initial().Signals()))
	assert.Equal(t, nav.StackBiometricGate, nav.Resolve(signedIn(true).Signals()))
	assert.Equal(t, nav.StackAuthenticated, nav.Resolve(signedIn(false).Signals()))

	unlocked := Reduce(signedIn(true), session.BiometricVerified{})
	assert.Equal(t, nav.StackAuthenticated, nav.Resolve(unlocked.Signals()))
}
