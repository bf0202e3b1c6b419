// Package unlock is the gate shown when a restored or foregrounded session
// needs the device PIN before authenticated screens mount.
package unlock

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/theme"
)

// AttemptMsg carries a PIN entered by the user.
type AttemptMsg struct {
	PIN string
}

// SignOutMsg asks the shell to discard the stored session.
type SignOutMsg struct{}

// Model is the unlock gate.
type Model struct {
	input     textinput.Model
	name      string
	verifying bool
	err       error
	failures  int
	width     int
	height    int
}

// New creates the gate.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "PIN"
	ti.Prompt = "› "
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 32
	ti.Width = 20
	ti.Focus()
	return Model{input: ti, width: width, height: height}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// SetUser sets the name shown on the gate.
func (m *Model) SetUser(name string) { m.name = name }

// SetFailure records a failed attempt and its count.
func (m *Model) SetFailure(err error, failures int) {
	m.verifying = false
	m.err = err
	m.failures = failures
	m.input.Reset()
}

// Reset clears any previous attempt.
func (m *Model) Reset() {
	m.verifying = false
	m.err = nil
	m.failures = 0
	m.input.Reset()
}

// Verifying reports whether an attempt is being checked.
func (m Model) Verifying() bool { return m.verifying }

// Update handles messages for the gate.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			pin := strings.TrimSpace(m.input.Value())
			if pin == "" || m.verifying {
				return m, nil
			}
			m.verifying = true
			return m, func() tea.Msg { return AttemptMsg{PIN: pin} }
		case "ctrl+o":
			if m.verifying {
				return m, nil
			}
			return m, func() tea.Msg { return SignOutMsg{} }
		}
		if m.verifying {
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the gate.
func (m Model) View() string {
	title := "Unlock Dealroom"
	if m.name != "" {
		title = fmt.Sprintf("Welcome back, %s", m.name)
	}
	parts := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(title),
		theme.DimmedStyle.Render("Enter your device PIN to continue."),
		"",
		m.input.View(),
	}

	switch {
	case m.verifying:
		parts = append(parts, "", theme.DimmedStyle.Render("Verifying…"))
	case m.err != nil:
		line := m.err.Error()
		if m.failures > 1 {
			line = fmt.Sprintf("%s (%d failed attempts)", line, m.failures)
		}
		parts = append(parts, "", theme.ErrorStyle.Render(line))
	}
	parts = append(parts, "", theme.HelpStyle.Render("enter unlock • ctrl+o sign out • ctrl+c quit"))

	box := theme.BorderStyle.Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// SetSize updates the gate dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
