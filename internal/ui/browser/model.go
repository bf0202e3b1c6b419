// Package browser is the document browser of a deal: the folder tree on the
// left and the documents of the selected folder on the right.
package browser

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/theme"
	"github.com/nhle/dealroom/internal/ui/doclist"
	"github.com/nhle/dealroom/internal/ui/foldertree"
)

// Source provides both folders and documents.
type Source interface {
	foldertree.Source
	doclist.Source
}

// BackMsg is emitted when the user leaves the browser.
type BackMsg struct{}

type pane int

const (
	treePane pane = iota
	listPane
)

// Model is the document browser.
type Model struct {
	tree   foldertree.Model
	docs   doclist.Model
	keys   *keys.KeyMap
	focus  pane
	dealID string
	width  int
	height int
}

// New creates the browser.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	m := Model{
		tree:  foldertree.New(src, k, width/3, height),
		docs:  doclist.New(src, k, width-width/3, height),
		keys:  k,
		focus: treePane,
	}
	m.SetSize(width, height)
	return m
}

// Open loads the folders of a deal and the documents of folder.
func (m *Model) Open(dealID, folder string) tea.Cmd {
	m.dealID = dealID
	m.focus = treePane
	return tea.Batch(m.tree.Open(dealID), m.docs.Open(dealID, folder))
}

// Refresh re-fetches the current folder's documents.
func (m *Model) Refresh() tea.Cmd {
	return m.docs.Refresh()
}

// Folder returns the folder whose documents are listed.
func (m Model) Folder() string { return m.docs.Folder() }

// DealID returns the deal being browsed.
func (m Model) DealID() string { return m.dealID }

// Capturing reports whether the new-folder form has the keyboard.
func (m Model) Capturing() bool { return m.tree.Creating() }

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the browser.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case foldertree.FolderSelectedMsg:
		if msg.Path == m.docs.Folder() {
			return m, nil
		}
		return m, m.docs.Open(m.dealID, msg.Path)

	case foldertree.FolderCreatedMsg:
		var treeCmd tea.Cmd
		m.tree, treeCmd = m.tree.Update(msg)
		return m, tea.Batch(treeCmd, m.docs.Refresh())

	case foldertree.LoadedMsg, foldertree.FolderCreateFailedMsg:
		m.tree, cmd = m.tree.Update(msg)
		return m, cmd

	case doclist.LoadedMsg:
		m.docs, cmd = m.docs.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.focus == treePane && m.tree.Creating() {
			m.tree, cmd = m.tree.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, m.keys.SwitchPane):
			if m.focus == treePane {
				m.focus = listPane
			} else {
				m.focus = treePane
			}
			return m, nil
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.Upload):
			// Upload targets the listed folder whichever pane has focus.
			m.docs, cmd = m.docs.Update(msg)
			return m, cmd
		}
	}

	if m.focus == treePane {
		m.tree, cmd = m.tree.Update(msg)
	} else {
		m.docs, cmd = m.docs.Update(msg)
	}
	return m, cmd
}

// View renders both panes side by side.
func (m Model) View() string {
	treeStyle, listStyle := theme.BlurredPanelStyle, theme.BlurredPanelStyle
	if m.focus == treePane {
		treeStyle = theme.FocusedPanelStyle
	} else {
		listStyle = theme.FocusedPanelStyle
	}

	left := treeStyle.Width(m.treeWidth()).Height(m.height - 2).Render(m.tree.View())
	right := listStyle.Width(m.width - m.treeWidth() - 4).Height(m.height - 2).Render(m.docs.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m Model) treeWidth() int {
	return max(m.width/3-2, 16)
}

// SetSize updates the browser dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.tree.SetSize(m.treeWidth(), height-2)
	m.docs.SetSize(width-m.treeWidth()-6, height-2)
}

// Selected reports the folder highlighted in the tree.
func (m Model) Selected() string {
	if s := m.tree.Selected(); s != "" {
		return s
	}
	return model.RootFolder
}
