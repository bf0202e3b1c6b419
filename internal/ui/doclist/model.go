// Package doclist shows the documents of one deal folder.
package doclist

import (
	"context"
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

// Source lists documents. dealID and folder may be empty.
type Source interface {
	Documents(ctx context.Context, dealID, folder string) ([]model.Document, error)
}

// DocumentSelectedMsg is emitted when the user opens a document.
type DocumentSelectedMsg struct {
	DealID     string
	DocumentID string
}

// UploadRequestedMsg is emitted when the user asks to upload into the
// current folder.
type UploadRequestedMsg struct {
	DealID string
	Folder string
}

// LoadedMsg carries the documents fetched for a refresh key.
type LoadedMsg struct {
	Key       uint64
	Documents []model.Document
	Err       error
}

// item wraps a document for the bubbles list.
type item struct{ doc model.Document }

func (i item) FilterValue() string { return i.doc.Name }

type delegate struct{}

func (delegate) Height() int                             { return 1 }
func (delegate) Spacing() int                            { return 0 }
func (delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (delegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	it, ok := li.(item)
	if !ok {
		return
	}
	d := it.doc

	cached := "  "
	if d.IsCached() {
		cached = theme.SyncedBadgeStyle.Render("● ")
	}
	meta := theme.DimmedStyle.Render(fmt.Sprintf(
		"%s · %d p · %s", ui.Size(d.SizeBytes), d.PageCount, ui.RelativeTime(d.UpdatedAt),
	))
	line := fmt.Sprintf("%s%s  %s", cached, d.Name, meta)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// Model is the document list.
type Model struct {
	list    list.Model
	source  Source
	keys    *keys.KeyMap
	dealID  string
	folder  string
	key     uint64
	loading bool
	err     error
	width   int
	height  int
}

// New creates an empty document list.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, delegate{}, width, height-1)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{
		list:   l,
		source: src,
		keys:   k,
		folder: model.RootFolder,
		width:  width,
		height: height,
	}
}

// Open points the list at a deal folder and starts loading it.
func (m *Model) Open(dealID, folder string) tea.Cmd {
	m.dealID = dealID
	m.folder = model.CleanFolder(folder)
	return m.Refresh()
}

// Refresh bumps the refresh key and re-fetches. Results for older keys are
// dropped.
func (m *Model) Refresh() tea.Cmd {
	m.key++
	m.loading = true
	m.err = nil

	src, key, dealID, folder := m.source, m.key, m.dealID, m.folder
	return func() tea.Msg {
		docs, err := src.Documents(context.Background(), dealID, folder)
		return LoadedMsg{Key: key, Documents: docs, Err: err}
	}
}

// RefreshKey returns the current refresh key.
func (m Model) RefreshKey() uint64 { return m.key }

// Folder returns the folder being listed.
func (m Model) Folder() string { return m.folder }

// Selected returns the highlighted document, if any.
func (m Model) Selected() (model.Document, bool) {
	it, ok := m.list.SelectedItem().(item)
	if !ok {
		return model.Document{}, false
	}
	return it.doc, true
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the document list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.Key != m.key {
			return m, nil
		}
		m.loading = false
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		items := make([]list.Item, len(msg.Documents))
		for i, d := range msg.Documents {
			items[i] = item{doc: d}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Select):
			if d, ok := m.Selected(); ok {
				dealID := d.DealID
				if dealID == "" {
					dealID = m.dealID
				}
				return m, func() tea.Msg {
					return DocumentSelectedMsg{DealID: dealID, DocumentID: d.ID}
				}
			}
			return m, nil
		case key.Matches(msg, m.keys.Upload):
			if m.dealID == "" {
				return m, nil
			}
			dealID, folder := m.dealID, m.folder
			return m, func() tea.Msg {
				return UploadRequestedMsg{DealID: dealID, Folder: folder}
			}
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Refresh()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the document list.
func (m Model) View() string {
	header := theme.TitleStyle.Render(m.folder)

	var body string
	switch {
	case m.err != nil:
		body = theme.ErrorStyle.Render("Could not load documents: " + m.err.Error())
	case m.loading && len(m.list.Items()) == 0:
		body = theme.DimmedStyle.Render("Loading documents…")
	case len(m.list.Items()) == 0:
		body = theme.DimmedStyle.Render("No documents in this folder. Press u to upload.")
	default:
		body = m.list.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}
