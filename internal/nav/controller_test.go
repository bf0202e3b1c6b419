package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		sig  Signals
		want Stack
	}{
		{"signed out", Signals{}, StackUnauthenticated},
		{"signed out, biometric flag set", Signals{RequiresBiometricUnlock: true}, StackUnauthenticated},
		{"signed out with stale session", Signals{HasSession: true, RequiresBiometricUnlock: true}, StackUnauthenticated},
		{"gated", Signals{IsAuthenticated: true, RequiresBiometricUnlock: true, HasSession: true}, StackBiometricGate},
		{"biometric required but no session", Signals{IsAuthenticated: true, RequiresBiometricUnlock: true}, StackUnauthenticated},
		{"authenticated without session", Signals{IsAuthenticated: true}, StackUnauthenticated},
		{"authenticated", Signals{IsAuthenticated: true, HasSession: true}, StackAuthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.sig))
		})
	}
}

func TestRouteSetsAreDisjoint(t *testing.T) {
	seen := map[RouteName]Stack{}
	for _, s := range []Stack{StackUnauthenticated, StackBiometricGate, StackAuthenticated} {
		for _, r := range Routes(s) {
			prev, dup := seen[r]
			require.False(t, dup, "route %s declared by %s and %s", r, prev, s)
			seen[r] = s
		}
	}
}

func TestReachable_DealScreensHiddenUntilUnlocked(t *testing.T) {
	for _, r := range []RouteName{RouteDealList, RouteDealDetail, RouteDocumentViewer, RouteNotifications} {
		assert.False(t, Reachable(StackUnauthenticated, r), r)
		assert.False(t, Reachable(StackBiometricGate, r), r)
		assert.True(t, Reachable(StackAuthenticated, r), r)
	}
	assert.True(t, Reachable(StackBiometricGate, RouteBiometricUnlock))
	assert.False(t, Reachable(StackBiometricGate, RouteSignIn))
}

func TestNavigator_PushRefusesUnreachable(t *testing.T) {
	n := NewNavigator(Signals{})
	require.Equal(t, RouteSignIn, n.Current().Name)

	err := n.Push(DealDetail("d1"))

	assert.ErrorIs(t, err, ErrRouteUnreachable)
	assert.Equal(t, 1, n.Depth())
}

func TestNavigator_MissingParams(t *testing.T) {
	n := NewNavigator(Signals{IsAuthenticated: true, HasSession: true})

	assert.ErrorIs(t, n.Push(DealDetail("")), ErrMissingParam)
	assert.ErrorIs(t, n.Push(DocumentViewer("d1", "")), ErrMissingParam)
	assert.ErrorIs(t, n.Push(Upload("", "/")), ErrMissingParam)
	assert.NoError(t, n.Push(DocumentViewer("d1", "doc1")))
}

func TestNavigator_HistoryAndSync(t *testing.T) {
	authed := Signals{IsAuthenticated: true, HasSession: true}
	n := NewNavigator(authed)
	require.Equal(t, StackAuthenticated, n.Stack())

	require.NoError(t, n.Push(DealDetail("d1")))
	require.NoError(t, n.Push(DocumentList("d1", "/")))
	require.NoError(t, n.Push(DocumentViewer("d1", "doc1")))
	assert.Equal(t, 4, n.Depth())

	assert.True(t, n.PopTo(RouteDealDetail))
	assert.Equal(t, RouteDealDetail, n.Current().Name)
	assert.Equal(t, RouteDealList, n.Pop().Name)
	assert.Equal(t, RouteDealList, n.Pop().Name, "root is never popped")

	assert.False(t, n.Sync(authed))

	require.NoError(t, n.Push(DealDetail("d1")))
	locked := authed
	locked.RequiresBiometricUnlock = true
	assert.True(t, n.Sync(locked))
	assert.Equal(t, StackBiometricGate, n.Stack())
	assert.Equal(t, RouteBiometricUnlock, n.Current().Name)
	assert.Equal(t, 1, n.Depth())

	assert.True(t, n.Sync(Signals{}))
	assert.Equal(t, RouteSignIn, n.Current().Name)
}

func TestNavigator_Replace(t *testing.T) {
	n := NewNavigator(Signals{IsAuthenticated: true, HasSession: true})
	require.NoError(t, n.Push(DocumentList("d1", "/")))

	require.NoError(t, n.Replace(DocumentList("d1", "/contracts")))

	assert.Equal(t, 2, n.Depth())
	assert.Equal(t, "/contracts", n.Current().Folder)
	assert.ErrorIs(t, n.Replace(Route{Name: RouteSignIn}), ErrRouteUnreachable)
}
