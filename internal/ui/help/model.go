package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/theme"
)

// CloseMsg is emitted when the overlay is dismissed.
type CloseMsg struct{}

// Model is the help overlay. It lists the global bindings plus the
// bindings of the screen it was opened from.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	screen string
	local  []key.Binding
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// SetScreen records the screen the overlay describes and its bindings.
func (m *Model) SetScreen(name string, bindings []key.Binding) {
	m.screen = name
	m.local = bindings
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update closes the overlay on esc, ? or q.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(msg, m.keys.Back, m.keys.Help, m.keys.Quit) {
			return m, func() tea.Msg { return CloseMsg{} }
		}
	}
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{titleStyle.Render("Keyboard Shortcuts")}

	m.help.Width = m.width - 4
	if len(m.local) > 0 {
		m.help.ShowAll = false
		sections = append(sections,
			theme.TitleStyle.Render(m.screen),
			m.help.ShortHelpView(m.local),
			"",
		)
	}

	m.help.ShowAll = true
	sections = append(sections, theme.TitleStyle.Render("Global"), m.help.View(m.keys))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
