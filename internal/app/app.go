// Package app is the root Bubble Tea model. It restores persisted state,
// owns the application state, mounts the screen stack chosen by the
// navigation controller and carries the global overlays.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/appstate"
	"github.com/nhle/dealroom/internal/biometric"
	"github.com/nhle/dealroom/internal/catalog"
	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/logging"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/nav"
	"github.com/nhle/dealroom/internal/notify"
	"github.com/nhle/dealroom/internal/session"
	"github.com/nhle/dealroom/internal/store"
	appsync "github.com/nhle/dealroom/internal/sync"
	"github.com/nhle/dealroom/internal/theme"
	"github.com/nhle/dealroom/internal/ui"
	"github.com/nhle/dealroom/internal/ui/browser"
	"github.com/nhle/dealroom/internal/ui/command"
	"github.com/nhle/dealroom/internal/ui/dealdetail"
	"github.com/nhle/dealroom/internal/ui/deallist"
	"github.com/nhle/dealroom/internal/ui/doclist"
	"github.com/nhle/dealroom/internal/ui/foldertree"
	helpview "github.com/nhle/dealroom/internal/ui/help"
	"github.com/nhle/dealroom/internal/ui/notifications"
	"github.com/nhle/dealroom/internal/ui/preview"
	"github.com/nhle/dealroom/internal/ui/signin"
	"github.com/nhle/dealroom/internal/ui/unlock"
	"github.com/nhle/dealroom/internal/ui/upload"
)

// Auth is the part of the backend used for sessions and push registration.
type Auth interface {
	SetAccessToken(token string)
	SignIn(ctx context.Context, email, password string) (model.AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (model.AuthSession, error)
	RegisterDeviceToken(ctx context.Context, token string) error
}

// Options carries the collaborators of the root model.
type Options struct {
	Store    store.Store
	Catalog  *catalog.Catalog
	Auth     Auth
	Vault    *session.Vault
	Worker   *appsync.Worker
	Verifier biometric.Verifier
	Log      logging.Logger

	// DeviceToken is the configured push token. When empty the store's
	// install ID is registered instead.
	DeviceToken string

	// UploadDir is where the upload picker starts.
	UploadDir string

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

const (
	requestTimeout = 30 * time.Second
	statusTTL      = 4 * time.Second

	// refreshLeeway renews a token shortly before it expires.
	refreshLeeway = time.Minute

	// refreshGrace is how long after a refresh another auth failure is
	// taken as a revoked session instead of a stale token.
	refreshGrace = 30 * time.Second
)

// commands lists the palette entries.
var commands = []string{
	"deals", "notifications", "clear", "sync", "refresh", "lock", "signout", "help", "quit",
}

// Model is the root Bubble Tea model.
type Model struct {
	store    store.Store
	catalog  *catalog.Catalog
	auth     Auth
	worker   *appsync.Worker
	verifier biometric.Verifier
	log      logging.Logger
	now      func() time.Time
	persist  *persister

	keys   *keys.KeyMap
	layout ui.Layout
	ready  bool

	state    appstate.State
	nav      *nav.Navigator
	restored bool

	deviceToken string
	listening   bool
	refreshing  bool
	refreshedAt time.Time

	status    string
	statusErr bool
	statusSeq int

	signin  signin.Model
	unlock  unlock.Model
	deals   deallist.Model
	detail  dealdetail.Model
	browser browser.Model
	preview preview.Model
	upload  upload.Model
	inbox   notifications.Model
	help    helpview.Model
	command command.Model
}

// New creates the root model. Nothing is shown but a loading placeholder
// until persisted state has been restored.
func New(o Options) Model {
	k := keys.DefaultKeyMap()
	now := o.Now
	if now == nil {
		now = time.Now
	}
	log := o.Log
	if log == nil {
		log = logging.Discard()
	}
	st := appstate.Initial()
	return Model{
		store:    o.Store,
		catalog:  o.Catalog,
		auth:     o.Auth,
		worker:   o.Worker,
		verifier: o.Verifier,
		log:      log.With("component", "app"),
		now:      now,
		persist:  newPersister(o.Vault, o.Store, log),

		keys:   k,
		layout: ui.NewLayout(80, 24),

		state:       st,
		nav:         nav.NewNavigator(st.Signals()),
		deviceToken: o.DeviceToken,

		signin:  signin.New(80, 22),
		unlock:  unlock.New(80, 22),
		deals:   deallist.New(o.Catalog, k, 80, 22),
		detail:  dealdetail.New(o.Catalog, k, 80, 22),
		browser: browser.New(o.Catalog, k, 80, 22),
		preview: preview.New(o.Catalog, k, 80, 22),
		upload:  upload.New(o.Catalog, k, o.UploadDir, 80, 22),
		inbox:   notifications.New(k, 80, 22),
		help:    helpview.New(k, 80, 22),
		command: command.New(80, 22, commands),
	}
}

// Init starts restoring persisted state.
func (m Model) Init() tea.Cmd {
	return m.restore()
}

// State returns the application state.
func (m Model) State() appstate.State { return m.state }

// Route returns the mounted route.
func (m Model) Route() nav.Route { return m.nav.Current() }

// Stack returns the mounted screen stack.
func (m Model) Stack() nav.Stack { return m.nav.Stack() }

// apply reduces actions into the state, persists the result and remounts
// the screen stack when the navigation signals changed.
func (m *Model) apply(actions ...any) tea.Cmd {
	persist := false
	for _, a := range actions {
		m.state = appstate.Reduce(m.state, a)
		if _, ok := a.(appstate.ConnectivityChanged); !ok {
			persist = true
		}
	}

	var cmds []tea.Cmd
	if persist && m.restored {
		cmds = append(cmds, m.persist.save(m.state))
	}
	if m.nav.Sync(m.state.Signals()) {
		cmds = append(cmds, m.mountStack())
	}
	m.inbox.SetItems(m.state.Notifications.Items)
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the mounted screens.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Width = msg.Width
		m.layout.Height = msg.Height
		m.ready = true
		m.resize()
		// Forward to the screens so huh forms can calculate their layout.
		return m.broadcast(msg)

	case restoredMsg:
		return m, m.handleRestored(msg)

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case tea.FocusMsg:
		if m.nav.Stack() == nav.StackAuthenticated {
			return m, m.apply(session.AppForegrounded{})
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
		return m.updateActive(msg)
	}

	var authCmd tea.Cmd
	if err := authError(msg); err != nil {
		authCmd = m.handleAuthError(err)
	}

	cmd, handled := m.handleIntent(msg)
	if handled {
		return m, tea.Batch(authCmd, cmd)
	}

	next, cmd := m.broadcast(msg)
	return next, tea.Batch(authCmd, cmd)
}

// handleIntent reacts to messages raised by the screens and by the
// shell's own commands.
func (m *Model) handleIntent(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	// Session
	case signin.SubmitMsg:
		start := m.apply(session.SignInStarted{})
		return tea.Batch(start, m.signIn(msg)), true
	case signedInMsg:
		return m.handleSignedIn(msg), true
	case unlock.AttemptMsg:
		return m.verifyUnlock(msg.PIN), true
	case unlockResultMsg:
		return m.handleUnlockResult(msg), true
	case unlock.SignOutMsg:
		return m.signOut(), true
	case refreshedMsg:
		return m.handleRefreshed(msg), true
	case registeredMsg:
		return m.handleRegistered(msg), true

	// Background sync
	case appsync.ResultMsg:
		return m.handleSyncResult(msg), true
	case appsync.ConnectivityMsg:
		return m.handleConnectivity(msg), true

	// Deals
	case deallist.SelectedDealMsg:
		return m.push(nav.DealDetail(msg.DealID)), true
	case dealdetail.BackMsg:
		return m.back(), true
	case dealdetail.OpenDocumentsMsg:
		return m.push(nav.DocumentList(msg.DealID, model.RootFolder)), true
	case dealdetail.OpenDocumentMsg:
		return m.push(nav.DocumentViewer(msg.DealID, msg.DocumentID)), true
	case dealdetail.StageChangeRequestedMsg:
		return m.changeStage(msg), true
	case dealdetail.StageChangedMsg:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return tea.Batch(cmd, m.deals.Refresh()), true

	// Documents
	case browser.BackMsg:
		return m.back(), true
	case doclist.DocumentSelectedMsg:
		return m.push(nav.DocumentViewer(msg.DealID, msg.DocumentID)), true
	case doclist.UploadRequestedMsg:
		return m.push(nav.Upload(msg.DealID, msg.Folder)), true
	case foldertree.FolderCreateRequestedMsg:
		return m.createFolder(msg), true
	case upload.UploadCompletedMsg:
		m.flash(fmt.Sprintf("Uploaded %s", msg.Document.Name), false)
		back := m.back()
		return tea.Batch(back, m.browser.Refresh(), m.statusTimer()), true
	case upload.BackMsg:
		return m.back(), true
	case preview.BackMsg:
		return m.back(), true
	case preview.DiscardAnnotationMsg:
		return m.discardAnnotation(msg), true
	case annotationDiscardedMsg:
		if msg.err != nil {
			m.flash("Could not discard annotation: "+msg.err.Error(), true)
			return m.statusTimer(), true
		}
		return m.preview.ReloadAnnotations(), true

	// Notifications
	case notifications.MarkReadMsg:
		return m.apply(notify.MarkRead{ID: msg.ID}), true
	case notifications.ClearMsg:
		return m.apply(notify.Clear{}), true
	case notifications.OpenMsg:
		return m.openNotification(msg), true
	case notifications.BackMsg:
		return m.back(), true

	// Overlays
	case helpview.CloseMsg:
		return m.back(), true
	case command.CancelMsg:
		return m.back(), true
	case command.CommandMsg:
		back := m.back()
		return tea.Batch(back, m.executeCommand(msg)), true
	}
	return nil, false
}

// handleGlobalKey handles keys that work on every authenticated screen.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.nav.Stack() != nav.StackAuthenticated || m.capturing() {
		return nil, false
	}
	route := m.nav.Current().Name

	switch {
	case key.Matches(msg, m.keys.Quit) && route == nav.RouteDealList:
		return m.quit(), true

	case key.Matches(msg, m.keys.Help) && route != nav.RouteHelp:
		m.help.SetScreen(string(route), m.screenBindings(route))
		return m.push(nav.Route{Name: nav.RouteHelp}), true

	case key.Matches(msg, m.keys.Command) && route != nav.RouteCommand:
		return m.push(nav.Route{Name: nav.RouteCommand}), true

	case key.Matches(msg, m.keys.Inbox) && route != nav.RouteNotifications:
		return m.push(nav.Route{Name: nav.RouteNotifications}), true

	case key.Matches(msg, m.keys.Lock):
		return m.lock(), true
	}
	return nil, false
}

// capturing reports whether the active screen is taking text input.
func (m Model) capturing() bool {
	switch m.nav.Current().Name {
	case nav.RouteDealList:
		return m.deals.Searching()
	case nav.RouteDealDetail:
		return m.detail.Editing()
	case nav.RouteDocumentList:
		return m.browser.Capturing()
	case nav.RouteDocumentViewer:
		return m.preview.Annotating()
	case nav.RouteCommand:
		return true
	}
	return false
}

// updateActive sends msg to the screen of the mounted route only.
func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.nav.Current().Name {
	case nav.RouteSignIn:
		m.signin, cmd = m.signin.Update(msg)
	case nav.RouteBiometricUnlock:
		m.unlock, cmd = m.unlock.Update(msg)
	case nav.RouteDealList:
		m.deals, cmd = m.deals.Update(msg)
	case nav.RouteDealDetail:
		m.detail, cmd = m.detail.Update(msg)
	case nav.RouteDocumentList:
		m.browser, cmd = m.browser.Update(msg)
	case nav.RouteDocumentViewer:
		m.preview, cmd = m.preview.Update(msg)
	case nav.RouteUpload:
		m.upload, cmd = m.upload.Update(msg)
	case nav.RouteNotifications:
		m.inbox, cmd = m.inbox.Update(msg)
	case nav.RouteHelp:
		m.help, cmd = m.help.Update(msg)
	case nav.RouteCommand:
		m.command, cmd = m.command.Update(msg)
	}

	return m, cmd
}

// broadcast sends a non-key message to every screen of the mounted stack.
// Screens drop results that are not theirs by refresh key or generation.
func (m Model) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch m.nav.Stack() {
	case nav.StackUnauthenticated:
		m.signin, cmd = m.signin.Update(msg)
		cmds = append(cmds, cmd)
	case nav.StackBiometricGate:
		m.unlock, cmd = m.unlock.Update(msg)
		cmds = append(cmds, cmd)
	case nav.StackAuthenticated:
		m.deals, cmd = m.deals.Update(msg)
		cmds = append(cmds, cmd)
		m.detail, cmd = m.detail.Update(msg)
		cmds = append(cmds, cmd)
		m.browser, cmd = m.browser.Update(msg)
		cmds = append(cmds, cmd)
		m.preview, cmd = m.preview.Update(msg)
		cmds = append(cmds, cmd)
		m.upload, cmd = m.upload.Update(msg)
		cmds = append(cmds, cmd)
		m.inbox, cmd = m.inbox.Update(msg)
		cmds = append(cmds, cmd)
		m.command, cmd = m.command.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// resize propagates the layout to every screen.
func (m *Model) resize() {
	m.layout.Offline = !m.state.Online
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.signin.SetSize(w, h)
	m.unlock.SetSize(w, h)
	m.deals.SetSize(w, h)
	m.detail.SetSize(w, h)
	m.browser.SetSize(w, h)
	m.preview.SetSize(w, h)
	m.upload.SetSize(w, h)
	m.inbox.SetSize(w, h)
	m.help.SetSize(w, h)
	m.command.SetSize(w, h)
}

// flash shows s in the status bar until the next statusTimer fires.
func (m *Model) flash(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
	m.statusSeq++
}

type statusExpiredMsg struct{ seq int }

func (m Model) statusTimer() tea.Cmd {
	seq := m.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return statusExpiredMsg{seq: seq} })
}

func (m *Model) quit() tea.Cmd {
	if m.worker != nil {
		m.worker.Stop()
	}
	return tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.restored {
		return lipgloss.Place(max(m.layout.Width, 1), max(m.layout.Height, 1),
			lipgloss.Center, lipgloss.Center,
			theme.DimmedStyle.Render("Loading…"))
	}

	header := m.layout.RenderHeader("Dealroom", m.unreadBadge(), m.headerStatus())
	banner := m.layout.RenderOfflineBanner("Offline: showing cached data. Changes sync when the connection returns.")
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, banner, m.renderContent(), statusBar)
}

func (m Model) unreadBadge() int {
	if m.nav.Stack() != nav.StackAuthenticated {
		return 0
	}
	return m.state.Notifications.Unread()
}

func (m Model) headerStatus() string {
	sess := m.state.Session.Session
	switch {
	case m.nav.Stack() == nav.StackBiometricGate:
		return "locked"
	case sess == nil:
		return "signed out"
	case sess.Profile.Name != "":
		return sess.Profile.Name
	default:
		return sess.Profile.Email
	}
}

// renderContent returns the rendered string for the mounted route.
func (m Model) renderContent() string {
	var content string
	switch m.nav.Current().Name {
	case nav.RouteSignIn:
		content = m.signin.View()
	case nav.RouteBiometricUnlock:
		content = m.unlock.View()
	case nav.RouteDealList:
		content = m.deals.View()
	case nav.RouteDealDetail:
		content = m.detail.View()
	case nav.RouteDocumentList:
		content = m.browser.View()
	case nav.RouteDocumentViewer:
		content = m.preview.View()
	case nav.RouteUpload:
		content = m.upload.View()
	case nav.RouteNotifications:
		content = m.inbox.View()
	case nav.RouteHelp:
		content = m.help.View()
	case nav.RouteCommand:
		content = m.command.View()
	}
	return lipgloss.NewStyle().
		Width(m.layout.ContentWidth()).
		Height(m.layout.ContentHeight()).
		MaxHeight(m.layout.ContentHeight()).
		Render(content)
}

// statusLine returns the flash message or keyboard hints for the status bar.
func (m Model) statusLine() string {
	if m.status != "" {
		if m.statusErr {
			return "⚠ " + m.status
		}
		return m.status
	}

	switch m.nav.Current().Name {
	case nav.RouteSignIn:
		return "enter next field | ctrl+c quit"
	case nav.RouteBiometricUnlock:
		return "enter unlock | ctrl+o sign out | ctrl+c quit"
	case nav.RouteDealList:
		return "q quit | ? help | / search | tab stage | i inbox | : command"
	case nav.RouteDealDetail:
		return "esc back | s stage | d documents | enter open | j/k select"
	case nav.RouteDocumentList:
		return "esc back | tab pane | n new folder | u upload | enter open"
	case nav.RouteDocumentViewer:
		return "esc back | h/l page | a annotate | x discard"
	case nav.RouteUpload:
		return "enter select | esc back"
	case nav.RouteNotifications:
		return "esc back | m mark read | C clear | enter open"
	case nav.RouteHelp:
		return "? close help | esc back"
	case nav.RouteCommand:
		return "enter execute | esc back"
	}
	return ""
}
