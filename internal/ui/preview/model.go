// Package preview pages through a document and manages its annotations.
package preview

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/op"
	"github.com/nhle/dealroom/internal/theme"
	"github.com/nhle/dealroom/internal/ui"
	"github.com/nhle/dealroom/internal/ui/annotate"
)

// LinesPerPage splits text documents without form feeds into pages.
const LinesPerPage = 60

// Source loads documents and stores annotations.
type Source interface {
	Open(ctx context.Context, docID string) (model.Document, []byte, error)
	Annotations(ctx context.Context, docID string) ([]model.Annotation, error)
	SaveAnnotation(ctx context.Context, a model.Annotation) (model.Annotation, error)
}

// DiscardAnnotationMsg asks the shell to delete a pending annotation.
type DiscardAnnotationMsg struct {
	ID         string
	DocumentID string
}

// BackMsg is emitted when the user leaves the preview.
type BackMsg struct{}

type loadedMsg struct {
	gen  uint64
	doc  model.Document
	data []byte
	err  error
}

type annotationsMsg struct {
	gen   uint64
	items []model.Annotation
	err   error
}

// Paginate splits content into pages on form feeds, or every LinesPerPage
// lines when there are none. It always returns at least one page.
func Paginate(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.Contains(content, "\f") {
		pages := strings.Split(content, "\f")
		if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
			pages = pages[:len(pages)-1]
		}
		return pages
	}

	lines := strings.Split(content, "\n")
	var pages []string
	for start := 0; start < len(lines); start += LinesPerPage {
		end := min(start+LinesPerPage, len(lines))
		pages = append(pages, strings.Join(lines[start:end], "\n"))
	}
	if len(pages) == 0 {
		pages = []string{""}
	}
	return pages
}

// Model is the document preview.
type Model struct {
	source   Source
	keys     *keys.KeyMap
	viewport viewport.Model
	load     op.Tracker

	dealID      string
	docID       string
	doc         model.Document
	pages       []string
	page        int
	annotations []model.Annotation
	annGen      uint64

	entry    *annotate.Model
	entrySeq uint64
	status   string
	failure  bool

	width  int
	height int
}

// New creates an empty preview.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width-4, height-8)
	return Model{
		source:   src,
		keys:     k,
		viewport: vp,
		pages:    []string{""},
		width:    width,
		height:   height,
	}
}

// Open starts loading a document and its annotations. Results from an
// earlier Open are dropped.
func (m *Model) Open(dealID, docID string) tea.Cmd {
	m.load.Reset()
	gen, _ := m.load.Begin()
	m.dealID = dealID
	m.docID = docID
	m.doc = model.Document{}
	m.pages = []string{""}
	m.page = 0
	m.annotations = nil
	m.closeEntry()
	m.status = ""

	src := m.source
	return tea.Batch(
		func() tea.Msg {
			doc, data, err := src.Open(context.Background(), docID)
			return loadedMsg{gen: gen, doc: doc, data: data, err: err}
		},
		m.ReloadAnnotations(),
	)
}

// Close drops in-flight work. The shell calls it when leaving the screen.
func (m *Model) Close() {
	m.load.Reset()
	m.annGen++
	m.closeEntry()
}

// ReloadAnnotations re-fetches the annotations of the open document.
func (m *Model) ReloadAnnotations() tea.Cmd {
	m.annGen++
	gen, src, docID := m.annGen, m.source, m.docID
	return func() tea.Msg {
		items, err := src.Annotations(context.Background(), docID)
		return annotationsMsg{gen: gen, items: items, err: err}
	}
}

// Page returns the 1-based current page.
func (m Model) Page() int { return m.page + 1 }

// PageCount returns the number of pages.
func (m Model) PageCount() int { return len(m.pages) }

// Annotating reports whether the annotation entry is open.
func (m Model) Annotating() bool { return m.entry != nil }

// Saving reports whether the open entry has a save in flight.
func (m Model) Saving() bool { return m.entry != nil && m.entry.Busy() }

// Draft returns the text of the open entry.
func (m Model) Draft() string {
	if m.entry == nil {
		return ""
	}
	return m.entry.Value()
}

// Document returns the open document.
func (m Model) Document() model.Document { return m.doc }

// PageAnnotations returns the annotations of the current page.
func (m Model) PageAnnotations() []model.Annotation {
	var out []model.Annotation
	for _, a := range m.annotations {
		if a.Page == m.Page() {
			out = append(out, a)
		}
	}
	return out
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the preview.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if !m.load.Finish(msg.gen, msg.err) {
			return m, nil
		}
		m.doc = msg.doc
		switch {
		case msg.err != nil:
			m.pages = []string{""}
		case m.doc.IsText() || m.doc.MimeType == "":
			m.pages = Paginate(string(msg.data))
		default:
			m.pages = []string{m.binarySummary()}
		}
		m.page = 0
		m.render()
		return m, nil

	case annotationsMsg:
		if msg.gen != m.annGen {
			return m, nil
		}
		if msg.err != nil {
			m.setStatus("Could not load annotations: "+msg.err.Error(), true)
			return m, nil
		}
		m.annotations = msg.items
		return m, nil

	case annotate.SavedMsg:
		m.closeEntry()
		m.setStatus("Annotation saved", false)
		return m, m.ReloadAnnotations()

	case annotate.CancelMsg:
		m.closeEntry()
		return m, nil
	}

	if m.entry != nil {
		entry, cmd := m.entry.Update(msg)
		m.entry = &entry
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.NextPage):
			if m.page < len(m.pages)-1 {
				m.page++
				m.render()
			}
			return m, nil
		case key.Matches(msg, m.keys.PrevPage):
			if m.page > 0 {
				m.page--
				m.render()
			}
			return m, nil
		case key.Matches(msg, m.keys.Annotate):
			if m.load.State() != op.Succeeded {
				return m, nil
			}
			return m, m.openEntry()
		case key.Matches(msg, m.keys.Discard):
			return m, m.discard()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) openEntry() tea.Cmd {
	src := m.source
	target := model.Annotation{DocumentID: m.docID, DealID: m.dealID, Page: m.Page()}
	m.entrySeq++
	entry := annotate.New(m.keys, m.entrySeq, fmt.Sprintf("page %d", target.Page), func(ctx context.Context, text string) error {
		a := target
		a.Text = text
		_, err := src.SaveAnnotation(ctx, a)
		return err
	})
	entry.SetSize(m.width - 4)
	m.entry = &entry
	m.status = ""
	return entry.Init()
}

func (m *Model) closeEntry() {
	if m.entry != nil {
		m.entry.Reset()
	}
	m.entry = nil
}

// discard requests removal of the newest pending annotation on this page.
func (m Model) discard() tea.Cmd {
	var target *model.Annotation
	for _, a := range m.PageAnnotations() {
		if a.Synced {
			continue
		}
		if target == nil || a.CreatedAt.After(target.CreatedAt) {
			target = &a
		}
	}
	if target == nil {
		return nil
	}
	msg := DiscardAnnotationMsg{ID: target.ID, DocumentID: target.DocumentID}
	return func() tea.Msg { return msg }
}

func (m Model) binarySummary() string {
	lines := []string{
		fmt.Sprintf("%s cannot be shown as text.", m.doc.Name),
		"",
		fmt.Sprintf("Type:  %s", m.doc.MimeType),
		fmt.Sprintf("Size:  %s", ui.Size(m.doc.SizeBytes)),
	}
	if m.doc.IsCached() {
		lines = append(lines, fmt.Sprintf("Saved: %s", *m.doc.LocalPath))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) render() {
	wrap := lipgloss.NewStyle().Width(max(m.viewport.Width, 10))
	m.viewport.SetContent(wrap.Render(m.pages[m.page]))
	m.viewport.GotoTop()
}

func (m *Model) setStatus(s string, failure bool) {
	m.status = s
	m.failure = failure
}

// View renders the preview.
func (m Model) View() string {
	title := theme.TitleStyle.Render(m.doc.Name)
	if m.doc.Name == "" {
		title = theme.TitleStyle.Render("Document")
	}
	pageInfo := theme.DimmedStyle.Render(fmt.Sprintf("  page %d/%d", m.Page(), m.PageCount()))
	header := lipgloss.JoinHorizontal(lipgloss.Top, title, pageInfo)

	var body string
	switch m.load.State() {
	case op.InFlight:
		body = theme.DimmedStyle.Render("Loading document…")
	case op.Failed:
		body = theme.ErrorStyle.Render("Could not open document: " + m.load.Err().Error())
	default:
		body = m.viewport.View()
	}

	parts := []string{header, body, m.annotationsView()}
	if m.entry != nil {
		parts = append(parts, m.entry.View())
	}
	if m.status != "" {
		style := theme.SuccessStyle
		if m.failure {
			style = theme.ErrorStyle
		}
		parts = append(parts, style.Render(m.status))
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) annotationsView() string {
	anns := m.PageAnnotations()
	if len(anns) == 0 {
		return theme.DimmedStyle.Render("No annotations on this page. Press a to add one.")
	}
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render(fmt.Sprintf("Annotations (%d)", len(anns))))
	for _, a := range anns {
		fmt.Fprintf(&b, "\n• %s  %s %s", a.Text,
			theme.SyncBadge(a.Synced), theme.DimmedStyle.Render(ui.RelativeTime(a.CreatedAt)))
	}
	return b.String()
}

// SetSize updates the preview dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 4
	m.viewport.Height = max(height-8, 3)
	if m.entry != nil {
		m.entry.SetSize(width - 4)
	}
	if len(m.pages) > 0 {
		m.render()
	}
}
