// Package signin is the credential form shown while no session is held.
package signin

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/biometric"
	"github.com/nhle/dealroom/internal/theme"
)

// SubmitMsg carries the entered credentials. PIN is empty when the user
// skipped unlock enrollment.
type SubmitMsg struct {
	Email    string
	Password string
	PIN      string
}

var (
	errEmail    = errors.New("enter a valid email address")
	errPassword = errors.New("password is required")
	errPIN      = fmt.Errorf("unlock PIN must be at least %d digits", biometric.MinPINLength)
)

// ValidateEmail checks the email field.
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 || strings.ContainsAny(s, " \t") {
		return errEmail
	}
	return nil
}

// ValidatePassword checks the password field.
func ValidatePassword(s string) error {
	if s == "" {
		return errPassword
	}
	return nil
}

// ValidatePIN accepts an empty PIN or one of at least MinPINLength digits.
func ValidatePIN(s string) error {
	if s == "" {
		return nil
	}
	if len(s) < biometric.MinPINLength {
		return errPIN
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return errPIN
		}
	}
	return nil
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
	pin      string
}

// Model is the sign-in screen.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	busy   bool
	err    error
	width  int
	height int
}

// New creates the sign-in screen with an empty form.
func New(width, height int) Model {
	m := Model{fb: &formBindings{}, width: width, height: height}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@company.com").
				Value(&m.fb.email).
				Validate(ValidateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(ValidatePassword),
			huh.NewInput().
				Title("Unlock PIN").
				Description("Optional. Required to reopen the app on this device.").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.pin).
				Validate(ValidatePIN),
		),
	).WithShowHelp(false).WithWidth(min(max(m.width-8, 30), 60))
}

// Reset rebuilds the form, keeping the email for another attempt.
func (m *Model) Reset() tea.Cmd {
	m.fb.password = ""
	m.fb.pin = ""
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// SetBusy marks a sign-in as in flight.
func (m *Model) SetBusy(busy bool) { m.busy = busy }

// Busy reports whether a sign-in is in flight.
func (m Model) Busy() bool { return m.busy }

// SetError shows err and reopens the form.
func (m *Model) SetError(err error) tea.Cmd {
	m.err = err
	return m.Reset()
}

// Err returns the last sign-in failure.
func (m Model) Err() error { return m.err }

// Update handles messages for the sign-in screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.busy || m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.Submit(m.fb.email, m.fb.password, m.fb.pin)
	case huh.StateAborted:
		return m, m.Reset()
	}
	return m, cmd
}

// Submit validates the credentials and emits a SubmitMsg.
func (m Model) Submit(email, password, pin string) (Model, tea.Cmd) {
	email = strings.TrimSpace(email)
	for _, err := range []error{ValidateEmail(email), ValidatePassword(password), ValidatePIN(pin)} {
		if err != nil {
			m.err = err
			return m, m.Reset()
		}
	}
	m.busy = true
	m.err = nil
	msg := SubmitMsg{Email: email, Password: password, PIN: pin}
	return m, func() tea.Msg { return msg }
}

// View renders the sign-in screen.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Sign in to Dealroom")

	parts := []string{title}
	if m.busy {
		parts = append(parts, theme.DimmedStyle.Render("Signing in…"))
	} else if m.form != nil {
		parts = append(parts, m.form.View())
	}
	if m.err != nil {
		parts = append(parts, "", theme.ErrorStyle.Render(m.err.Error()))
	}

	box := theme.BorderStyle.Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(min(max(width-8, 30), 60))
	}
}
