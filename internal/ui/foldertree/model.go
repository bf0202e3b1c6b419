// Package foldertree renders a deal's folders as an indented tree and
// raises folder selection and creation intents.
package foldertree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/theme"
)

// Source lists a deal's folders.
type Source interface {
	Folders(ctx context.Context, dealID string) ([]model.Folder, error)
}

// FolderSelectedMsg is emitted when the highlighted folder changes.
type FolderSelectedMsg struct {
	DealID string
	Path   string
}

// FolderCreateRequestedMsg asks the shell to create Name under Parent.
type FolderCreateRequestedMsg struct {
	DealID string
	Parent string
	Name   string
}

// FolderCreatedMsg is sent back by the shell after a successful create.
type FolderCreatedMsg struct{ Folder model.Folder }

// FolderCreateFailedMsg is sent back by the shell when a create failed.
type FolderCreateFailedMsg struct{ Err error }

// LoadedMsg carries the folders fetched for a refresh key.
type LoadedMsg struct {
	Key     uint64
	Folders []model.Folder
	Err     error
}

var errInvalidName = errors.New("folder names cannot be empty or contain /")

// ValidateName checks a new folder name.
func ValidateName(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "/") || s == "." || s == ".." {
		return errInvalidName
	}
	return nil
}

// formBindings keeps huh's value pointers stable across model copies.
type formBindings struct {
	name string
}

// Model is the folder tree.
type Model struct {
	source  Source
	keys    *keys.KeyMap
	dealID  string
	folders []model.Folder
	cursor  int
	key     uint64

	form     *huh.Form
	fb       *formBindings
	creating bool
	pending  bool

	status    string
	statusErr bool
	width     int
	height    int
}

// New creates an empty tree.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	return Model{
		source:  src,
		keys:    k,
		folders: withRoot(nil, ""),
		fb:      &formBindings{},
		width:   width,
		height:  height,
	}
}

// withRoot sorts folders by path and makes sure the root is present.
func withRoot(folders []model.Folder, dealID string) []model.Folder {
	out := make([]model.Folder, 0, len(folders)+1)
	hasRoot := false
	for _, f := range folders {
		f.Path = model.CleanFolder(f.Path)
		if f.Path == model.RootFolder {
			hasRoot = true
		}
		out = append(out, f)
	}
	if !hasRoot {
		out = append(out, model.Folder{Path: model.RootFolder, Name: "/", DealID: dealID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Open shows the folders of a deal and starts loading them.
func (m *Model) Open(dealID string) tea.Cmd {
	m.dealID = dealID
	m.folders = withRoot(nil, dealID)
	m.cursor = 0
	m.creating = false
	m.pending = false
	m.status = ""
	return m.Refresh()
}

// Refresh bumps the refresh key and re-fetches the tree.
func (m *Model) Refresh() tea.Cmd {
	m.key++
	src, key, dealID := m.source, m.key, m.dealID
	return func() tea.Msg {
		folders, err := src.Folders(context.Background(), dealID)
		return LoadedMsg{Key: key, Folders: folders, Err: err}
	}
}

// Selected returns the highlighted folder path.
func (m Model) Selected() string {
	if m.cursor < 0 || m.cursor >= len(m.folders) {
		return model.RootFolder
	}
	return m.folders[m.cursor].Path
}

// Folders returns the folders in display order.
func (m Model) Folders() []model.Folder {
	return m.folders
}

// Creating reports whether the new-folder form is open.
func (m Model) Creating() bool { return m.creating }

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) selectedMsg() tea.Cmd {
	dealID, path := m.dealID, m.Selected()
	return func() tea.Msg { return FolderSelectedMsg{DealID: dealID, Path: path} }
}

// Update handles messages for the tree.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.Key != m.key {
			return m, nil
		}
		if msg.Err != nil {
			m.setStatus("Could not load folders: "+msg.Err.Error(), true)
			return m, nil
		}
		current := m.Selected()
		m.folders = withRoot(msg.Folders, m.dealID)
		m.selectPath(current)
		return m, nil

	case FolderCreatedMsg:
		m.pending = false
		f := msg.Folder
		f.Path = model.CleanFolder(f.Path)
		if !m.has(f.Path) {
			m.folders = withRoot(append(m.folders, f), m.dealID)
		}
		m.selectPath(f.Path)
		m.setStatus("Created "+f.Path, false)
		return m, m.selectedMsg()

	case FolderCreateFailedMsg:
		m.pending = false
		m.setStatus("Could not create folder: "+msg.Err.Error(), true)
		return m, nil
	}

	if m.creating {
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.folders)-1 {
				m.cursor++
				return m, m.selectedMsg()
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				return m, m.selectedMsg()
			}
		case key.Matches(msg, m.keys.Select):
			return m, m.selectedMsg()
		case key.Matches(msg, m.keys.NewFolder):
			if m.pending || m.dealID == "" {
				return m, nil
			}
			return m, m.startCreate()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Refresh()
		}
	}
	return m, nil
}

func (m *Model) startCreate() tea.Cmd {
	m.fb.name = ""
	m.creating = true
	m.status = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("New folder in %s", m.Selected())).
				Placeholder("name").
				Value(&m.fb.name).
				Validate(ValidateName),
		),
	).WithShowHelp(false).WithWidth(max(m.width-4, 20))
	return m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		m.creating = false
		m.form = nil
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.creating = false
		m.form = nil
		return m.Request(m.fb.name)
	case huh.StateAborted:
		m.creating = false
		m.form = nil
		return m, nil
	}
	return m, cmd
}

// Request emits a create request for name under the selected folder.
func (m Model) Request(name string) (Model, tea.Cmd) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	m.pending = true
	m.setStatus("Creating "+model.JoinFolder(m.Selected(), name)+"…", false)
	req := FolderCreateRequestedMsg{DealID: m.dealID, Parent: m.Selected(), Name: name}
	return m, func() tea.Msg { return req }
}

func (m *Model) has(path string) bool {
	for _, f := range m.folders {
		if f.Path == path {
			return true
		}
	}
	return false
}

func (m *Model) selectPath(path string) {
	for i, f := range m.folders {
		if f.Path == path {
			m.cursor = i
			return
		}
	}
	m.cursor = 0
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// View renders the tree.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Folders"))
	b.WriteString("\n")

	for i, f := range m.folders {
		name := f.Name
		if f.Path == model.RootFolder {
			name = "/"
		} else if name == "" {
			name = f.Path[strings.LastIndex(f.Path, "/")+1:]
		}
		line := strings.Repeat("  ", f.Depth()) + "▸ " + name
		if i == m.cursor {
			line = theme.SelectedItemStyle.Render(line)
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	parts := []string{b.String()}
	if m.creating && m.form != nil {
		parts = append(parts, m.form.View())
	}
	if m.status != "" {
		style := theme.DimmedStyle
		if m.statusErr {
			style = theme.ErrorStyle
		}
		parts = append(parts, style.Render(m.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// SetSize updates the tree dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
