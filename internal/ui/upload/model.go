// Package upload lets the user pick a local file and send it to a deal
// folder.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/op"
	"github.com/nhle/dealroom/internal/theme"
)

// Uploader sends a local file to the backend.
type Uploader interface {
	Upload(ctx context.Context, dealID, folder, path string) (model.Document, error)
}

// uploadTimeout bounds a single upload.
const uploadTimeout = 5 * time.Minute

// UploadCompletedMsg is emitted after the backend accepted a file.
type UploadCompletedMsg struct {
	Document model.Document
}

// BackMsg is emitted when the user leaves the screen.
type BackMsg struct{}

type resultMsg struct {
	gen uint64
	doc model.Document
	err error
}

// Model is the upload screen.
type Model struct {
	picker   filepicker.Model
	spinner  spinner.Model
	uploader Uploader
	keys     *keys.KeyMap
	op       op.Tracker

	dealID string
	folder string
	file   string
	width  int
	height int
}

// New creates the upload screen starting in dir.
func New(u Uploader, k *keys.KeyMap, dir string, width, height int) Model {
	fp := filepicker.New()
	fp.CurrentDirectory = dir
	fp.ShowHidden = false
	fp.AutoHeight = false
	fp.SetHeight(height - 4)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		picker:   fp,
		spinner:  sp,
		uploader: u,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Open targets a deal folder and reads the picker's directory. Any upload
// still in flight from a previous visit is ignored.
func (m *Model) Open(dealID, folder string) tea.Cmd {
	m.op.Reset()
	m.dealID = dealID
	m.folder = model.CleanFolder(folder)
	m.file = ""
	return m.picker.Init()
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return m.picker.Init()
}

// State returns the phase of the upload.
func (m Model) State() op.State { return m.op.State() }

// Start uploads path into the target folder.
func (m Model) Start(path string) (Model, tea.Cmd) {
	gen, ok := m.op.Begin()
	if !ok {
		return m, nil
	}
	m.file = path

	u, dealID, folder := m.uploader, m.dealID, m.folder
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		doc, err := u.Upload(ctx, dealID, folder, path)
		return resultMsg{gen: gen, doc: doc, err: err}
	})
}

// Update handles messages for the upload screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		if !m.op.Finish(msg.gen, msg.err) {
			return m, nil
		}
		if msg.err != nil {
			return m, nil
		}
		doc := msg.doc
		return m, func() tea.Msg { return UploadCompletedMsg{Document: doc} }

	case spinner.TickMsg:
		if !m.op.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			if m.op.Busy() {
				return m, nil
			}
			return m, func() tea.Msg { return BackMsg{} }
		}
		if m.op.Busy() {
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		return m.Start(path)
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.op.Reset()
		m.file = path
	}
	return m, cmd
}

// View renders the upload screen.
func (m Model) View() string {
	title := theme.TitleStyle.Render(fmt.Sprintf("Upload to %s", m.folder))
	dir := theme.DimmedStyle.Render(m.picker.CurrentDirectory)

	var status string
	switch m.op.State() {
	case op.InFlight:
		status = m.spinner.View() + " Uploading " + filepath.Base(m.file) + "…"
	case op.Failed:
		status = theme.ErrorStyle.Render("Upload failed: " + m.op.Err().Error())
	case op.Succeeded:
		status = theme.SuccessStyle.Render("Uploaded " + filepath.Base(m.file))
	default:
		status = theme.HelpStyle.Render("enter select · esc back")
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, dir, m.picker.View(), status))
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.picker.SetHeight(height - 4)
}

// DefaultDir returns the directory the picker starts in.
func DefaultDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
