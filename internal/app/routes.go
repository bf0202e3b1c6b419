package app

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/dealroom/internal/nav"
	"github.com/nhle/dealroom/internal/notify"
	"github.com/nhle/dealroom/internal/ui/command"
	"github.com/nhle/dealroom/internal/ui/notifications"
)

// push shows r and starts whatever the screen needs to load.
func (m *Model) push(r nav.Route) tea.Cmd {
	if err := m.nav.Push(r); err != nil {
		m.log.Error(context.Background(), "navigation refused", "route", r.Name, "error", err)
		m.flash(err.Error(), true)
		return m.statusTimer()
	}
	return m.enter(r)
}

func (m *Model) enter(r nav.Route) tea.Cmd {
	switch r.Name {
	case nav.RouteDealDetail:
		return m.detail.Open(r.DealID)
	case nav.RouteDocumentList:
		return m.browser.Open(r.DealID, r.Folder)
	case nav.RouteDocumentViewer:
		return m.preview.Open(r.DealID, r.DocumentID)
	case nav.RouteUpload:
		return m.upload.Open(r.DealID, r.Folder)
	case nav.RouteNotifications:
		m.inbox.SetItems(m.state.Notifications.Items)
	case nav.RouteCommand:
		return m.command.Focus()
	}
	return nil
}

// back pops the current route.
func (m *Model) back() tea.Cmd {
	if m.nav.Current().Name == nav.RouteDocumentViewer {
		m.preview.Close()
	}
	m.nav.Pop()
	return nil
}

// screenBindings lists the bindings shown by the help overlay for route.
func (m Model) screenBindings(route nav.RouteName) []key.Binding {
	k := m.keys
	switch route {
	case nav.RouteDealList:
		return []key.Binding{k.Up, k.Down, k.Select, k.Search, k.CycleFilter, k.Refresh}
	case nav.RouteDealDetail:
		return []key.Binding{k.Up, k.Down, k.Select, k.Documents, k.Stage, k.Refresh, k.Back}
	case nav.RouteDocumentList:
		return []key.Binding{k.SwitchPane, k.Select, k.NewFolder, k.Upload, k.Back}
	case nav.RouteDocumentViewer:
		return []key.Binding{k.NextPage, k.PrevPage, k.Annotate, k.Save, k.Discard, k.Back}
	case nav.RouteUpload:
		return []key.Binding{k.Up, k.Down, k.Select, k.Back}
	case nav.RouteNotifications:
		return []key.Binding{k.Up, k.Down, k.Select, k.MarkRead, k.ClearAll, k.Back}
	}
	return nil
}

// openNotification marks n read and shows the document or deal it names.
func (m *Model) openNotification(msg notifications.OpenMsg) tea.Cmd {
	read := m.apply(notify.MarkRead{ID: msg.ID})
	switch {
	case msg.DealID != "" && msg.DocumentID != "":
		return tea.Batch(read, m.push(nav.DocumentViewer(msg.DealID, msg.DocumentID)))
	case msg.DealID != "":
		return tea.Batch(read, m.push(nav.DealDetail(msg.DealID)))
	}
	return read
}

// executeCommand runs a palette command. The palette has already been
// closed.
func (m *Model) executeCommand(msg command.CommandMsg) tea.Cmd {
	switch msg.Name {
	case "deals":
		m.nav.PopTo(nav.RouteDealList)
		return nil
	case "notifications", "inbox":
		return m.push(nav.Route{Name: nav.RouteNotifications})
	case "clear":
		return m.apply(notify.Clear{})
	case "sync", "refresh":
		if m.worker != nil {
			m.worker.Trigger()
		}
		m.flash("Syncing…", false)
		return tea.Batch(m.deals.Refresh(), m.statusTimer())
	case "lock":
		return m.lock()
	case "signout", "logout":
		return m.signOut()
	case "help":
		route := m.nav.Current().Name
		m.help.SetScreen(string(route), m.screenBindings(route))
		return m.push(nav.Route{Name: nav.RouteHelp})
	case "quit", "q":
		return m.quit()
	}
	m.flash("Unknown command: "+strings.Join(append([]string{msg.Name}, msg.Args...), " "), true)
	return m.statusTimer()
}
