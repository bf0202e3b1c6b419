package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/dealroom/internal/api"
	"github.com/nhle/dealroom/internal/biometric"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/nav"
	"github.com/nhle/dealroom/internal/notify"
	"github.com/nhle/dealroom/internal/session"
	appsync "github.com/nhle/dealroom/internal/sync"
	"github.com/nhle/dealroom/internal/ui/dealdetail"
	"github.com/nhle/dealroom/internal/ui/deallist"
	"github.com/nhle/dealroom/internal/ui/doclist"
	"github.com/nhle/dealroom/internal/ui/foldertree"
	"github.com/nhle/dealroom/internal/ui/signin"
)

// restoredMsg carries the state read back at startup.
type restoredMsg struct {
	session     *model.AuthSession
	items       []model.NotificationItem
	token       string
	deviceToken string
}

type signedInMsg struct {
	session model.AuthSession
	err     error
}

type unlockResultMsg struct{ err error }

type refreshedMsg struct {
	session model.AuthSession
	err     error
}

type registeredMsg struct{ action notify.Action }

// restore reads the stored session, the notification snapshot and the
// device identity. Read failures are logged and treated as empty state.
func (m Model) restore() tea.Cmd {
	vault, s, log, token := m.persist.vault, m.store, m.log, m.deviceToken
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var res restoredMsg
		sess, err := vault.Load()
		switch {
		case err == nil:
			res.session = &sess
		case !errors.Is(err, session.ErrNoSession):
			log.Warn(ctx, "reading stored session", "error", err)
		}

		items, registered, err := s.LoadNotificationSnapshot(ctx)
		if err != nil {
			log.Warn(ctx, "reading notification snapshot", "error", err)
		}
		res.items, res.token = items, registered

		res.deviceToken = token
		if res.deviceToken == "" {
			id, err := s.InstallID(ctx)
			if err != nil {
				log.Warn(ctx, "reading install id", "error", err)
			}
			res.deviceToken = id
		}
		return res
	}
}

func (m *Model) handleRestored(msg restoredMsg) tea.Cmd {
	m.restored = true
	m.deviceToken = msg.deviceToken
	if msg.token != "" && m.worker != nil {
		m.worker.SetDeviceToken(msg.token)
	}

	var sessionAction any = session.NoSessionStored{}
	if msg.session != nil {
		sessionAction = session.SessionRestored{Session: *msg.session, Now: m.now()}
	}
	cmd := m.apply(notify.Restore{Items: msg.items, Token: msg.token}, sessionAction)

	if m.nav.Stack() == nav.StackUnauthenticated {
		// The stack did not change, so the form was never mounted.
		return tea.Batch(cmd, m.signin.Init())
	}
	return cmd
}

// mountStack runs the effects of entering the stack the navigator just
// mounted.
func (m *Model) mountStack() tea.Cmd {
	m.preview.Close()

	switch m.nav.Stack() {
	case nav.StackUnauthenticated:
		m.stopWorker()
		m.auth.SetAccessToken("")
		m.refreshing = false
		cmd := m.signin.Reset()
		if err := m.state.Session.Err; err != nil {
			cmd = m.signin.SetError(fmt.Errorf("signed out: %w", err))
		}
		return cmd

	case nav.StackBiometricGate:
		m.stopWorker()
		m.unlock.Reset()
		if s := m.state.Session.Session; s != nil {
			m.unlock.SetUser(s.Profile.Name)
		}
		return m.unlock.Init()

	case nav.StackAuthenticated:
		return m.enterAuthenticated()
	}
	return nil
}

// enterAuthenticated renews an expiring token first, then starts the
// session's background work.
func (m *Model) enterAuthenticated() tea.Cmd {
	s := m.state.Session.Session
	if s == nil {
		return nil
	}
	if session.NeedsRefresh(s.ExpiresAt, m.now(), refreshLeeway) && s.CanRefresh() {
		return m.refresh()
	}
	return m.startSession()
}

func (m *Model) startSession() tea.Cmd {
	s := m.state.Session.Session
	if s == nil {
		return nil
	}
	m.auth.SetAccessToken(s.AccessToken)
	return tea.Batch(m.deals.Refresh(), m.startWorker(), m.registerDevice())
}

func (m *Model) startWorker() tea.Cmd {
	if m.worker == nil {
		return nil
	}
	cmd := m.worker.Start()
	// The result channel outlives restarts, one listener is enough.
	if m.listening || cmd == nil {
		return nil
	}
	m.listening = true
	return cmd
}

func (m *Model) stopWorker() {
	if m.worker != nil {
		m.worker.Stop()
	}
}

func (m Model) signIn(req signin.SubmitMsg) tea.Cmd {
	auth := m.auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		sess, err := auth.SignIn(ctx, req.Email, req.Password)
		if err != nil {
			return signedInMsg{err: err}
		}
		if req.PIN != "" {
			key, err := biometric.Enroll(req.PIN)
			if err != nil {
				return signedInMsg{err: fmt.Errorf("enrolling unlock PIN: %w", err)}
			}
			sess.BiometricKey = key
		}
		return signedInMsg{session: sess}
	}
}

func (m *Model) handleSignedIn(msg signedInMsg) tea.Cmd {
	ctx := context.Background()
	if msg.err != nil {
		m.log.Warn(ctx, "sign-in failed", "error", msg.err)
		cmd := m.apply(session.SignInFailed{Err: msg.err})
		return tea.Batch(cmd, m.signin.SetError(msg.err))
	}
	m.log.Info(ctx, "signed in", "user", msg.session.Profile.ID)
	m.refreshedAt = m.now()
	return m.apply(session.SignInSucceeded{Session: msg.session})
}

func (m Model) verifyUnlock(pin string) tea.Cmd {
	s := m.state.Session.Session
	if s == nil {
		return nil
	}
	v, key := m.verifier, s.BiometricKey
	return func() tea.Msg {
		return unlockResultMsg{err: v.Verify(key, pin)}
	}
}

func (m *Model) handleUnlockResult(msg unlockResultMsg) tea.Cmd {
	if msg.err != nil {
		cmd := m.apply(session.BiometricFailed{Err: msg.err})
		m.unlock.SetFailure(msg.err, m.state.Session.FailedUnlocks)
		return cmd
	}
	return m.apply(session.BiometricVerified{})
}

// lock shows the unlock gate again when the session has a PIN.
func (m *Model) lock() tea.Cmd {
	s := m.state.Session.Session
	if s == nil || !s.HasBiometricKey() {
		m.flash("No unlock PIN is set for this session", true)
		return m.statusTimer()
	}
	return m.apply(session.AppForegrounded{})
}

func (m *Model) signOut() tea.Cmd {
	m.log.Info(context.Background(), "signed out")
	return m.apply(session.SignedOut{})
}

func (m *Model) refresh() tea.Cmd {
	s := m.state.Session.Session
	if s == nil || m.refreshing {
		return nil
	}
	m.refreshing = true
	auth, token := m.auth, s.RefreshToken
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sess, err := auth.Refresh(ctx, token)
		return refreshedMsg{session: sess, err: err}
	}
}

func (m *Model) handleRefreshed(msg refreshedMsg) tea.Cmd {
	m.refreshing = false
	if msg.err != nil {
		if api.IsAuthError(msg.err) {
			m.log.Warn(context.Background(), "token refresh rejected", "error", msg.err)
			return m.apply(session.TokenInvalidated{Err: msg.err})
		}
		// Offline or transient: keep the session and work from the cache.
		m.log.Warn(context.Background(), "token refresh deferred", "error", msg.err)
		if m.nav.Stack() != nav.StackAuthenticated {
			return nil
		}
		return m.startSession()
	}
	m.refreshedAt = m.now()
	cmd := m.apply(session.TokenRefreshed{Session: msg.session})
	if m.nav.Stack() != nav.StackAuthenticated {
		return cmd
	}
	return tea.Batch(cmd, m.startSession())
}

// handleAuthError renews the session once; a second rejection soon after
// a refresh signs the user out.
func (m *Model) handleAuthError(err error) tea.Cmd {
	if m.nav.Stack() != nav.StackAuthenticated || m.refreshing {
		return nil
	}
	s := m.state.Session.Session
	if s != nil && s.CanRefresh() && m.now().Sub(m.refreshedAt) > refreshGrace {
		m.log.Info(context.Background(), "access token rejected, refreshing")
		return m.refresh()
	}
	return m.apply(session.TokenInvalidated{Err: err})
}

// registerDevice registers the device token with the push service unless
// it is already registered or in flight.
func (m *Model) registerDevice() tea.Cmd {
	token := m.deviceToken
	n := m.state.Notifications
	if token == "" || token == n.Token || token == n.Registering {
		return nil
	}
	start := m.apply(notify.RegisterStarted{Token: token})
	auth := m.auth
	return tea.Batch(start, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return registeredMsg{action: notify.Register(ctx, auth, token)}
	})
}

func (m *Model) handleRegistered(msg registeredMsg) tea.Cmd {
	cmd := m.apply(msg.action)
	switch a := msg.action.(type) {
	case notify.TokenRegistered:
		if m.worker != nil {
			m.worker.SetDeviceToken(a.Token)
			m.worker.Trigger()
		}
	case notify.TokenRegistrationFailed:
		m.log.Warn(context.Background(), "push registration failed", "error", a.Err)
		if err := authError(a.Err); err != nil {
			return tea.Batch(cmd, m.handleAuthError(err))
		}
		m.flash("Push registration failed: "+a.Err.Error(), true)
		return tea.Batch(cmd, m.statusTimer())
	}
	return cmd
}

// authError extracts a backend auth rejection carried by msg, if any.
func authError(msg any) error {
	var err error
	switch msg := msg.(type) {
	case error:
		err = msg
	case appsync.ResultMsg:
		err = msg.AuthErr
	case deallist.DealsLoadedMsg:
		err = msg.Err
	case dealdetail.LoadedMsg:
		err = msg.Err
	case dealdetail.StageChangeFailedMsg:
		err = msg.Err
	case doclist.LoadedMsg:
		err = msg.Err
	case foldertree.LoadedMsg:
		err = msg.Err
	case foldertree.FolderCreateFailedMsg:
		err = msg.Err
	}
	if err != nil && api.IsAuthError(err) {
		return err
	}
	return nil
}
