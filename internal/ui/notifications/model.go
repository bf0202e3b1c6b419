// Package notifications is the inbox of received push notifications.
package notifications

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/theme"
	"github.com/nhle/dealroom/internal/ui"
)

// MarkReadMsg asks the shell to flag a notification as read.
type MarkReadMsg struct{ ID string }

// ClearMsg asks the shell to empty the queue.
type ClearMsg struct{}

// OpenMsg asks the shell to show what a notification points at. DealID and
// DocumentID come from the payload and may be empty.
type OpenMsg struct {
	ID         string
	DealID     string
	DocumentID string
}

// BackMsg signals the parent to close the inbox.
type BackMsg struct{}

type item struct{ n model.NotificationItem }

func (i item) FilterValue() string { return i.n.Title }

type delegate struct{}

func (delegate) Height() int                             { return 2 }
func (delegate) Spacing() int                            { return 1 }
func (delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (delegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	it, ok := li.(item)
	if !ok {
		return
	}
	n := it.n

	marker := "  "
	title := n.Title
	if !n.Read {
		marker = theme.UnreadBadgeStyle.Render("● ")
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}
	head := fmt.Sprintf("%s%s  %s", marker, title, theme.DimmedStyle.Render(ui.RelativeTime(n.ReceivedAt)))
	body := "  " + theme.DimmedStyle.Render(n.Body)

	style := theme.ListItemStyle
	if index == m.Index() {
		style = theme.SelectedItemStyle
	}
	fmt.Fprint(w, style.Render(head+"\n"+body))
}

// Model is the inbox view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates an empty inbox.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, delegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.Styles.Title = theme.HeaderStyle
	return Model{list: l, keys: k, width: width, height: height}
}

// SetItems replaces the listed notifications, keeping the cursor in range.
func (m *Model) SetItems(ns []model.NotificationItem) {
	idx := m.list.Index()
	items := make([]list.Item, len(ns))
	for i, n := range ns {
		items[i] = item{n: n}
	}
	m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.NotificationItem, bool) {
	it, ok := m.list.SelectedItem().(item)
	return it.n, ok
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the inbox.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.Read {
				return m, nil
			}
			return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

		case key.Matches(msg, m.keys.ClearAll):
			if len(m.list.Items()) == 0 {
				return m, nil
			}
			return m, func() tea.Msg { return ClearMsg{} }

		case key.Matches(msg, m.keys.Select):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			open := OpenMsg{
				ID:         n.ID,
				DealID:     n.PayloadString("deal_id"),
				DocumentID: n.PayloadString("document_id"),
			}
			return m, func() tea.Msg { return open }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the inbox.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications.")
	}
	return m.list.View()
}

// SetSize updates the inbox dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
