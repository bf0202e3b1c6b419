package app

import (
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dealroom/internal/api"
	"github.com/nhle/dealroom/internal/biometric"
	"github.com/nhle/dealroom/internal/catalog"
	"github.com/nhle/dealroom/internal/credential"
	"github.com/nhle/dealroom/internal/logging"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/nav"
	"github.com/nhle/dealroom/internal/session"
	"github.com/nhle/dealroom/internal/store"
	appsync "github.com/nhle/dealroom/internal/sync"
	"github.com/nhle/dealroom/internal/ui/command"
	"github.com/nhle/dealroom/internal/ui/dealdetail"
	"github.com/nhle/dealroom/internal/ui/deallist"
	"github.com/nhle/dealroom/internal/ui/notifications"
	"github.com/nhle/dealroom/internal/ui/signin"
	"github.com/nhle/dealroom/internal/ui/unlock"
	"github.com/nhle/dealroom/tests/testutil"
)

type harness struct {
	backend *testutil.Backend
	store   store.Store
	vault   *session.Vault
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := testutil.NewBackend(t)
	b.Set(func(b *testutil.Backend) {
		b.Deals["d1"] = model.Deal{ID: "d1", Name: "Acme", Stage: model.StageProspect}
	})
	return &harness{
		backend: b,
		store:   testutil.NewTestStore(t),
		vault:   session.NewVault(credential.New(keyring.NewArrayKeyring(nil))),
		now:     time.Now(),
	}
}

func (h *harness) app(t *testing.T) Model {
	t.Helper()
	client := api.NewClient(h.backend.URL(), 5*time.Second, api.WithMaxRetries(0))
	log := logging.Discard()
	return New(Options{
		Store:       h.store,
		Catalog:     catalog.New(client, h.store, t.TempDir(), log),
		Auth:        client,
		Vault:       h.vault,
		Verifier:    biometric.PINVerifier{},
		Log:         log,
		DeviceToken: "device-1",
		UploadDir:   t.TempDir(),
		Now:         func() time.Time { return h.now },
	})
}

// collect runs cmd and its batched children concurrently and returns the
// messages produced before the deadline. Commands that block longer, such
// as cursor blinks and status timers, are abandoned.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	out := make(chan tea.Msg, 256)
	var wg sync.WaitGroup
	var run func(tea.Cmd)
	run = func(c tea.Cmd) {
		defer wg.Done()
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, child := range batch {
				if child != nil {
					wg.Add(1)
					go run(child)
				}
			}
			return
		}
		if msg != nil {
			out <- msg
		}
	}
	wg.Add(1)
	go run(cmd)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(300 * time.Millisecond):
	}

	var msgs []tea.Msg
	for {
		select {
		case msg := <-out:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// settle feeds the results of cmd back into m until it goes quiet.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for range 8 {
		msgs := collect(cmd)
		if len(msgs) == 0 {
			return m
		}
		var cmds []tea.Cmd
		for _, msg := range msgs {
			if _, ok := msg.(tea.QuitMsg); ok {
				continue
			}
			next, c := m.Update(msg)
			m = next.(Model)
			cmds = append(cmds, c)
		}
		cmd = tea.Batch(cmds...)
	}
	return m
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	return settle(t, next.(Model), cmd)
}

func started(t *testing.T, h *harness) Model {
	t.Helper()
	m := h.app(t)
	return settle(t, m, m.Init())
}

func signedIn(t *testing.T, h *harness) Model {
	t.Helper()
	m := send(t, started(t, h), signin.SubmitMsg{Email: "dana@example.com", Password: "secret"})
	require.Equal(t, nav.StackAuthenticated, m.Stack())
	return m
}

func TestLoadingUntilRestored(t *testing.T) {
	m := newHarness(t).app(t)

	assert.Contains(t, m.View(), "Loading")
}

func TestRestore_NoSessionShowsSignIn(t *testing.T) {
	m := started(t, newHarness(t))

	assert.Equal(t, nav.StackUnauthenticated, m.Stack())
	assert.Equal(t, nav.RouteSignIn, m.Route().Name)
	assert.Contains(t, m.View(), "signed out")
}

func TestSignIn_PersistsSessionAndRegistersDevice(t *testing.T) {
	h := newHarness(t)
	m := signedIn(t, h)

	stored, err := h.vault.Load()
	require.NoError(t, err)
	assert.Equal(t, "test-token", stored.AccessToken)
	assert.Equal(t, "dana@example.com", stored.Profile.Email)

	h.backend.Set(func(b *testutil.Backend) {
		assert.Equal(t, []string{"device-1"}, b.Devices)
	})
	assert.Equal(t, "device-1", m.State().Notifications.Token)
	require.Len(t, m.deals.Deals(), 1)
	assert.Equal(t, "Acme", m.deals.Deals()[0].Name)
}

func TestSignIn_RejectedStaysOnForm(t *testing.T) {
	m := send(t, started(t, newHarness(t)), signin.SubmitMsg{Email: "dana@example.com", Password: "wrong"})

	assert.Equal(t, nav.StackUnauthenticated, m.Stack())
	require.Error(t, m.signin.Err())
	assert.Contains(t, m.signin.Err().Error(), "invalid credentials")
	assert.False(t, m.signin.Busy())
}

func TestSignIn_WithPINGoesThroughGate(t *testing.T) {
	h := newHarness(t)
	m := send(t, started(t, h), signin.SubmitMsg{Email: "dana@example.com", Password: "secret", PIN: "2468"})

	assert.Equal(t, nav.StackBiometricGate, m.Stack())
	stored, err := h.vault.Load()
	require.NoError(t, err)
	assert.True(t, stored.HasBiometricKey())
}

func TestRestore_BiometricSessionIsGated(t *testing.T) {
	h := newHarness(t)
	pin, err := biometric.Enroll("1234")
	require.NoError(t, err)
	require.NoError(t, h.vault.Save(model.AuthSession{
		AccessToken:  "test-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    h.now.Add(time.Hour),
		Profile:      model.Profile{ID: "u1", Name: "Dana"},
		BiometricKey: pin,
	}))

	m := started(t, h)
	require.Equal(t, nav.StackBiometricGate, m.Stack())
	assert.Contains(t, m.View(), "locked")
	assert.Equal(t, 0, h.backend.Count("GET /v1/deals"), "nothing is fetched behind the gate")

	m = send(t, m, unlock.AttemptMsg{PIN: "0000"})
	assert.Equal(t, nav.StackBiometricGate, m.Stack())
	assert.Equal(t, 1, m.State().Session.FailedUnlocks)

	m = send(t, m, unlock.AttemptMsg{PIN: "1234"})
	assert.Equal(t, nav.StackAuthenticated, m.Stack())
	assert.Len(t, m.deals.Deals(), 1)
}

func TestSignOut_ClearsSessionAndQueue(t *testing.T) {
	h := newHarness(t)
	m := signedIn(t, h)
	m = send(t, m, appsync.ResultMsg{Notifications: []model.NotificationItem{{ID: "n1", Title: "Hello"}}})
	require.Len(t, m.State().Notifications.Items, 1)

	m = send(t, m, command.CommandMsg{Name: "signout"})

	assert.Equal(t, nav.StackUnauthenticated, m.Stack())
	assert.Empty(t, m.State().Notifications.Items)
	assert.Equal(t, "device-1", m.State().Notifications.Token)
	_, err := h.vault.Load()
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestSyncResult_EnqueuesNewestFirst(t *testing.T) {
	h := newHarness(t)
	m := signedIn(t, h)
	now := time.Now()

	m = send(t, m, appsync.ResultMsg{Notifications: []model.NotificationItem{
		{ID: "n1", Title: "Older", ReceivedAt: now.Add(-time.Minute)},
		{ID: "n2", Title: "Newer", ReceivedAt: now},
	}})

	items := m.State().Notifications.Items
	require.Len(t, items, 2)
	assert.Equal(t, "n2", items[0].ID)
	assert.Equal(t, 2, m.State().Notifications.Unread())
	assert.Contains(t, m.status, "Newer")

	stored, _, err := h.store.LoadNotificationSnapshot(t.Context())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestAuthError_RefreshesOnceThenSignsOut(t *testing.T) {
	h := newHarness(t)
	m := signedIn(t, h)
	rejected := deallist.DealsLoadedMsg{Err: &api.AuthError{Method: "GET", Path: "/v1/deals"}}

	h.now = h.now.Add(time.Minute)
	m = send(t, m, rejected)
	assert.Equal(t, nav.StackAuthenticated, m.Stack())
	assert.Equal(t, 1, h.backend.Count("POST /v1/auth/refresh"))

	m = send(t, m, rejected)
	assert.Equal(t, nav.StackUnauthenticated, m.Stack())
	require.Error(t, m.State().Session.Err)
	assert.Equal(t, 1, h.backend.Count("POST /v1/auth/refresh"))
}

func TestConnectivity_ShowsOfflineBanner(t *testing.T) {
	m := signedIn(t, newHarness(t))

	m = send(t, m, appsync.ConnectivityMsg{Online: false})
	assert.False(t, m.State().Online)
	assert.Contains(t, m.View(), "Offline")

	m = send(t, m, appsync.ConnectivityMsg{Online: true})
	assert.True(t, m.State().Online)
	assert.NotContains(t, m.View(), "Offline:")
	assert.Equal(t, "Back online", m.status)
}

func TestSelectDeal_PushesDetail(t *testing.T) {
	m := signedIn(t, newHarness(t))

	m = send(t, m, deallist.SelectedDealMsg{DealID: "d1"})
	require.Equal(t, nav.RouteDealDetail, m.Route().Name)
	d, ok := m.detail.Deal()
	require.True(t, ok)
	assert.Equal(t, "Acme", d.Name)

	m = send(t, m, dealdetail.BackMsg{})
	assert.Equal(t, nav.RouteDealList, m.Route().Name)
}

func TestStageChange_SavedAndListRefreshed(t *testing.T) {
	h := newHarness(t)
	m := signedIn(t, h)
	m = send(t, m, deallist.SelectedDealMsg{DealID: "d1"})

	m = send(t, m, dealdetail.StageChangeRequestedMsg{DealID: "d1", Stage: model.StageClosing})

	d, ok := m.detail.Deal()
	require.True(t, ok)
	assert.Equal(t, model.StageClosing, d.Stage)
	h.backend.Set(func(b *testutil.Backend) {
		assert.Equal(t, model.StageClosing, b.Deals["d1"].Stage)
	})
}

func TestOpenNotification_MarksReadAndNavigates(t *testing.T) {
	m := signedIn(t, newHarness(t))
	m = send(t, m, appsync.ResultMsg{Notifications: []model.NotificationItem{
		{ID: "n1", Title: "Deal moved", Payload: map[string]any{"deal_id": "d1"}},
	}})

	m = send(t, m, notifications.OpenMsg{ID: "n1", DealID: "d1"})

	assert.Equal(t, nav.RouteDealDetail, m.Route().Name)
	assert.Equal(t, 0, m.State().Notifications.Unread())
}

func TestGlobalKeys(t *testing.T) {
	m := signedIn(t, newHarness(t))

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	assert.Equal(t, nav.RouteNotifications, m.Route().Name)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, nav.RouteDealList, m.Route().Name)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, nav.RouteHelp, m.Route().Name)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, nav.RouteDealList, m.Route().Name)
}

func TestLockWithoutPINIsRefused(t *testing.T) {
	m := signedIn(t, newHarness(t))

	m = send(t, m, command.CommandMsg{Name: "lock"})

	assert.Equal(t, nav.StackAuthenticated, m.Stack())
	assert.True(t, m.statusErr)
}

func TestUnknownCommandFlashes(t *testing.T) {
	m := signedIn(t, newHarness(t))

	m = send(t, m, command.CommandMsg{Name: "frobnicate"})

	assert.Contains(t, m.status, "Unknown command: frobnicate")
}
