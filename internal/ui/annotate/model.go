// Package annotate is the text entry used to add a note to a document page.
package annotate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/op"
	"github.com/nhle/dealroom/internal/theme"
)

// SaveFunc performs the external save of a trimmed annotation text.
type SaveFunc func(ctx context.Context, text string) error

// saveTimeout bounds a single save call.
const saveTimeout = 30 * time.Second

// SavedMsg is emitted after a save succeeded.
type SavedMsg struct{ Text string }

// CancelMsg is emitted when the entry is dismissed.
type CancelMsg struct{}

// saveResultMsg carries the outcome of the save started at gen by the
// entry with the given id.
type saveResultMsg struct {
	entry uint64
	gen   uint64
	text  string
	err   error
}

// Model is the annotation entry.
type Model struct {
	id      uint64
	keys    *keys.KeyMap
	input   textarea.Model
	spinner spinner.Model
	save    SaveFunc
	op      op.Tracker
	label   string
	width   int
}

// New creates an entry that calls save on submit. id must differ between
// entries owned by the same parent so that a closed entry's late result is
// not taken by its successor. label describes the target, e.g. "Page 3".
func New(km *keys.KeyMap, id uint64, label string, save SaveFunc) Model {
	ta := textarea.New()
	ta.Placeholder = "Write a note..."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		id:      id,
		keys:    km,
		input:   ta,
		spinner: sp,
		save:    save,
		label:   label,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// ID returns the entry id given to New.
func (m Model) ID() uint64 { return m.id }

// Value returns the current input text.
func (m Model) Value() string { return m.input.Value() }

// SetValue replaces the input text.
func (m *Model) SetValue(s string) { m.input.SetValue(s) }

// State returns the phase of the save operation.
func (m Model) State() op.State { return m.op.State() }

// Err returns the last save failure.
func (m Model) Err() error { return m.op.Err() }

// Busy reports whether a save is in flight.
func (m Model) Busy() bool { return m.op.Busy() }

// Reset drops any in-flight result and returns the entry to idle. The
// parent calls it when the entry is closed.
func (m *Model) Reset() {
	m.op.Reset()
	m.input.Reset()
}

// Submit starts a save of the trimmed input. Blank input and submits while
// a save is in flight do nothing.
func (m Model) Submit() (Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	gen, ok := m.op.Begin()
	if !ok {
		return m, nil
	}

	save, id := m.save, m.id
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		return saveResultMsg{entry: id, gen: gen, text: text, err: save(ctx, text)}
	})
}

// Update handles messages for the entry.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case saveResultMsg:
		if msg.entry != m.id || !m.op.Finish(msg.gen, msg.err) {
			return m, nil
		}
		if msg.err != nil {
			return m, nil
		}
		m.input.Reset()
		text := msg.text
		return m, func() tea.Msg { return SavedMsg{Text: text} }

	case spinner.TickMsg:
		if !m.op.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Save):
			return m.Submit()
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return CancelMsg{} }
		}
		if m.op.Busy() {
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the entry.
func (m Model) View() string {
	title := theme.TitleStyle.Render(fmt.Sprintf("Annotate %s", m.label))

	var status string
	switch m.op.State() {
	case op.InFlight:
		status = m.spinner.View() + " Saving…"
	case op.Failed:
		status = theme.ErrorStyle.Render("Save failed: " + m.op.Err().Error())
	case op.Succeeded:
		status = theme.SuccessStyle.Render("Saved")
	default:
		status = theme.HelpStyle.Render("ctrl+s save · esc cancel")
	}

	return theme.BorderStyle.
		Width(m.width).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.input.View(), status))
}

// SetSize updates the entry width.
func (m *Model) SetSize(width int) {
	m.width = width - 2
	m.input.SetWidth(width - 4)
}
