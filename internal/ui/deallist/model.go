package deallist

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/store"
	"github.com/nhle/dealroom/internal/theme"
)

// Source lists deals matching a filter.
type Source interface {
	Deals(ctx context.Context, f store.DealFilter) ([]model.Deal, error)
}

// DealsLoadedMsg is sent when deals have been loaded for a refresh key.
type DealsLoadedMsg struct {
	Key   uint64
	Deals []model.Deal
	Err   error
}

// SelectedDealMsg is sent when a user opens a deal.
type SelectedDealMsg struct {
	DealID string
}

// Model is the deal list view.
type Model struct {
	list        list.Model
	source      Source
	keys        *keys.KeyMap
	filter      store.DealFilter
	stageIndex  int
	searchMode  bool
	searchInput textinput.Model
	key         uint64
	loaded      bool
	err         error
	width       int
	height      int
}

// New creates a new deal list model.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Deals"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search deals..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		source:      src,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init returns a command that loads the deals.
func (m Model) Init() tea.Cmd {
	return nil
}

// Refresh bumps the refresh key and reloads with the current filter.
func (m *Model) Refresh() tea.Cmd {
	m.key++
	src, key, filter := m.source, m.key, m.filter
	return func() tea.Msg {
		deals, err := src.Deals(context.Background(), filter)
		return DealsLoadedMsg{Key: key, Deals: deals, Err: err}
	}
}

// Filter returns the active filter.
func (m Model) Filter() store.DealFilter { return m.filter }

// Deals returns the deals currently listed.
func (m Model) Deals() []model.Deal {
	items := m.list.Items()
	out := make([]model.Deal, 0, len(items))
	for _, it := range items {
		if d, ok := it.(DealItem); ok {
			out = append(out, d.Deal)
		}
	}
	return out
}

// Update handles messages for the deal list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DealsLoadedMsg:
		if msg.Key != m.key {
			return m, nil
		}
		m.loaded = true
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		items := make([]list.Item, len(msg.Deals))
		for i, d := range msg.Deals {
			items[i] = DealItem{Deal: d}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool { return m.searchMode }

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.filter.Query = strings.TrimSpace(m.searchInput.Value())
		return m, m.Refresh()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filter.Query = ""
		return m, m.Refresh()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(DealItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedDealMsg{DealID: item.Deal.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.filter.Query)
		cmd := m.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.CycleFilter):
		m.cycleStage()
		return m, m.Refresh()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Refresh()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// cycleStage steps the stage filter through all, then every stage.
func (m *Model) cycleStage() {
	m.stageIndex = (m.stageIndex + 1) % (len(model.DealStages) + 1)
	if m.stageIndex == 0 {
		m.filter.Stage = nil
		m.list.Title = "Deals"
		return
	}
	stage := model.DealStages[m.stageIndex-1]
	m.filter.Stage = &stage
	m.list.Title = "Deals · " + stage.Label()
}

// View renders the deal list view.
func (m Model) View() string {
	var top string
	if m.searchMode {
		top = lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
	} else if m.filter.Query != "" {
		top = theme.DimmedStyle.Padding(0, 1).Render("search: " + m.filter.Query)
	}

	body := m.list.View()
	switch {
	case m.err != nil:
		body = theme.ErrorStyle.Padding(1, 2).Render("Could not load deals: " + m.err.Error())
	case !m.loaded:
		body = m.renderMessage("Loading deals…")
	case len(m.list.Items()) == 0:
		body = m.renderEmptyState()
	}

	if top == "" {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, body)
}

func (m Model) renderEmptyState() string {
	if m.filter.Stage != nil || m.filter.Query != "" {
		return m.renderMessage("No matching deals.\nPress tab to change the stage filter or / to search again.")
	}
	return m.renderMessage("No deals yet.")
}

func (m Model) renderMessage(s string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(s)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
