// Package dealdetail shows one deal: metadata, attached documents and the
// activity timeline, with an inline stage editor.
package dealdetail

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/theme"
	"github.com/nhle/dealroom/internal/ui"
)

// Source loads a single deal.
type Source interface {
	Deal(ctx context.Context, id string) (model.Deal, error)
}

// BackMsg signals the parent to navigate back to the deal list.
type BackMsg struct{}

// LoadedMsg carries the deal fetched for a refresh key.
type LoadedMsg struct {
	Key  uint64
	Deal model.Deal
	Err  error
}

// OpenDocumentsMsg asks the shell to open the document browser of a deal.
type OpenDocumentsMsg struct {
	DealID string
}

// OpenDocumentMsg asks the shell to preview one attached document.
type OpenDocumentMsg struct {
	DealID     string
	DocumentID string
}

// StageChangeRequestedMsg asks the shell to move a deal to Stage.
type StageChangeRequestedMsg struct {
	DealID string
	Stage  model.DealStage
}

// StageChangedMsg is sent back by the shell with the updated deal.
type StageChangedMsg struct{ Deal model.Deal }

// StageChangeFailedMsg is sent back by the shell when the stage could not
// be stored.
type StageChangeFailedMsg struct{ Err error }

type formBindings struct {
	stage model.DealStage
}

// Model is the deal detail view.
type Model struct {
	source   Source
	viewport viewport.Model
	keys     *keys.KeyMap

	dealID  string
	deal    *model.Deal
	key     uint64
	loading bool
	err     error
	cursor  int

	form    *huh.Form
	fb      *formBindings
	editing bool
	pending bool
	status  string
	failed  bool

	width  int
	height int
}

// New creates a new deal detail model.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		source:   src,
		viewport: vp,
		keys:     k,
		fb:       &formBindings{},
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Open shows the deal with the given ID and starts loading it.
func (m *Model) Open(dealID string) tea.Cmd {
	m.dealID = dealID
	m.deal = nil
	m.err = nil
	m.cursor = 0
	m.editing = false
	m.pending = false
	m.status = ""
	return m.Refresh()
}

// Refresh bumps the refresh key and re-fetches the deal.
func (m *Model) Refresh() tea.Cmd {
	m.key++
	m.loading = m.deal == nil
	src, key, id := m.source, m.key, m.dealID
	return func() tea.Msg {
		d, err := src.Deal(context.Background(), id)
		return LoadedMsg{Key: key, Deal: d, Err: err}
	}
}

// SetDeal replaces the displayed deal and re-renders the content.
func (m *Model) SetDeal(d model.Deal) {
	m.deal = &d
	m.dealID = d.ID
	m.loading = false
	m.err = nil
	if m.cursor >= len(d.Documents) {
		m.cursor = 0
	}
	m.viewport.SetContent(m.renderContent())
}

// Deal returns the displayed deal, if any.
func (m Model) Deal() (model.Deal, bool) {
	if m.deal == nil {
		return model.Deal{}, false
	}
	return *m.deal, true
}

// Editing reports whether the stage editor is open.
func (m Model) Editing() bool { return m.editing }

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.Key != m.key {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.SetDeal(msg.Deal)
		m.viewport.GotoTop()
		return m, nil

	case StageChangedMsg:
		m.pending = false
		m.SetDeal(msg.Deal)
		if msg.Deal.HasOfflineChanges {
			m.setStatus("Stage saved offline, will sync when online", false)
		} else {
			m.setStatus("Stage set to "+msg.Deal.Stage.Label(), false)
		}
		return m, nil

	case StageChangeFailedMsg:
		m.pending = false
		m.setStatus("Could not change stage: "+msg.Err.Error(), true)
		return m, nil
	}

	if m.editing {
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok && m.deal != nil {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.deal.Documents)-1 {
				m.cursor++
				m.viewport.SetContent(m.renderContent())
			}
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.viewport.SetContent(m.renderContent())
			}
			return m, nil

		case key.Matches(msg, m.keys.Select):
			if len(m.deal.Documents) == 0 {
				return m, nil
			}
			req := OpenDocumentMsg{DealID: m.deal.ID, DocumentID: m.deal.Documents[m.cursor].DocumentID}
			return m, func() tea.Msg { return req }

		case key.Matches(msg, m.keys.Documents):
			id := m.deal.ID
			return m, func() tea.Msg { return OpenDocumentsMsg{DealID: id} }

		case key.Matches(msg, m.keys.Stage):
			if m.pending {
				return m, nil
			}
			return m, m.startEdit()

		case key.Matches(msg, m.keys.Refresh):
			return m, m.Refresh()
		}
	} else if ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	// Delegate to viewport for scrolling (pgup/pgdn, mouse)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) startEdit() tea.Cmd {
	m.fb.stage = m.deal.Stage
	m.editing = true
	m.status = ""

	opts := make([]huh.Option[model.DealStage], len(model.DealStages))
	for i, s := range model.DealStages {
		opts[i] = huh.NewOption(s.Label(), s)
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[model.DealStage]().
				Title("Move deal to stage").
				Options(opts...).
				Value(&m.fb.stage),
		),
	).WithShowHelp(false).WithWidth(max(m.width-4, 24))
	return m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		m.editing = false
		m.form = nil
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.editing = false
		m.form = nil
		return m.RequestStage(m.fb.stage)
	case huh.StateAborted:
		m.editing = false
		m.form = nil
		return m, nil
	}
	return m, cmd
}

// RequestStage emits a stage change for the displayed deal. Choosing the
// current stage is a no-op.
func (m Model) RequestStage(stage model.DealStage) (Model, tea.Cmd) {
	if m.deal == nil || stage == m.deal.Stage {
		return m, nil
	}
	if _, err := model.ParseDealStage(string(stage)); err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	m.pending = true
	m.setStatus("Moving to "+stage.Label()+"…", false)
	req := StageChangeRequestedMsg{DealID: m.deal.ID, Stage: stage}
	return m, func() tea.Msg { return req }
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.failed = isErr
}

// View renders the detail view.
func (m Model) View() string {
	placeholder := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.err != nil && m.deal == nil:
		return theme.ErrorStyle.Padding(1, 2).Render("Could not load deal: " + m.err.Error())
	case m.loading:
		return placeholder.Render("Loading deal…")
	case m.deal == nil:
		return placeholder.Render("No deal selected")
	}

	parts := []string{m.viewport.View()}
	if m.editing && m.form != nil {
		parts = append(parts, m.form.View())
	}
	if m.status != "" {
		style := theme.DimmedStyle
		if m.failed {
			style = theme.ErrorStyle
		}
		parts = append(parts, style.Render(m.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.deal == nil {
		return ""
	}
	d := m.deal
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(d.Name))

	badges := []string{theme.StageStyle(d.Stage).Render(d.Stage.Label())}
	if d.HasOfflineChanges {
		badges = append(badges, "  ", theme.PendingBadgeStyle.Render("unsynced changes"))
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, badges...), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-9s", label+":")), valStyle.Render(value))
	}

	sections = append(sections, row("Value", d.Value.String()))
	if d.Owner.Name != "" {
		owner := d.Owner.Name
		if d.Owner.Email != "" {
			owner += " <" + d.Owner.Email + ">"
		}
		sections = append(sections, row("Owner", owner))
	}
	if !d.UpdatedAt.IsZero() {
		sections = append(sections, row("Updated", d.UpdatedAt.Format("2006-01-02 15:04")))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	sections = append(sections, "", separator, "")
	sections = append(sections, headerStyle.Render(fmt.Sprintf("Documents (%d)", len(d.Documents))))
	if len(d.Documents) == 0 {
		sections = append(sections, theme.DimmedStyle.Italic(true).Render("No documents attached"))
	}
	for i, doc := range d.Documents {
		line := fmt.Sprintf("%s  %s", doc.Name, metaStyle.Render(model.CleanFolder(doc.Folder)))
		if i == m.cursor {
			line = theme.SelectedItemStyle.Render(line)
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		sections = append(sections, line)
	}

	if len(d.Timeline) > 0 {
		sections = append(sections, "", separator, "")
		sections = append(sections, headerStyle.Render("Timeline"))
		timeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
		kindStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
		for _, ev := range d.Timeline {
			sections = append(sections, fmt.Sprintf("%s  %s %s",
				timeStyle.Render(ui.RelativeTime(ev.At)),
				kindStyle.Render(ev.Kind),
				ev.Description,
			))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.deal != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
