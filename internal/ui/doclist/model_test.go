package doclist

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
)

type fakeSource struct {
	docs  []model.Document
	calls []string
}

func (f *fakeSource) Documents(_ context.Context, dealID, folder string) ([]model.Document, error) {
	f.calls = append(f.calls, dealID+":"+folder)
	return f.docs, nil
}

func load(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	return m
}

func TestOpenLoadsFolder(t *testing.T) {
	src := &fakeSource{docs: []model.Document{{ID: "doc1", DealID: "d1", Name: "NDA.txt"}}}
	m := New(src, keys.DefaultKeyMap(), 80, 20)

	cmd := m.Open("d1", "legal")
	assert.Contains(t, m.View(), "Loading documents")
	m = load(t, m, cmd)

	assert.Equal(t, []string{"d1:/legal"}, src.calls)
	assert.Equal(t, "/legal", m.Folder())
	d, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "doc1", d.ID)
}

func TestRefreshKeyDropsStaleResults(t *testing.T) {
	src := &fakeSource{}
	m := New(src, keys.DefaultKeyMap(), 80, 20)

	first := m.Open("d1", "/")
	require.Equal(t, uint64(1), m.RefreshKey())
	stale := first()

	src.docs = []model.Document{{ID: "doc2", DealID: "d1", Name: "Model.xlsx"}}
	m = load(t, m, m.Refresh())
	assert.Equal(t, uint64(2), m.RefreshKey())

	m, _ = m.Update(stale)

	d, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "doc2", d.ID, "older refresh must not overwrite newer")
}

func TestIntents(t *testing.T) {
	src := &fakeSource{docs: []model.Document{{ID: "doc1", DealID: "d1", Name: "NDA.txt"}}}
	m := New(src, keys.DefaultKeyMap(), 80, 20)
	m = load(t, m, m.Open("d1", "/legal"))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, DocumentSelectedMsg{DealID: "d1", DocumentID: "doc1"}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
	require.NotNil(t, cmd)
	assert.Equal(t, UploadRequestedMsg{DealID: "d1", Folder: "/legal"}, cmd())
}

func TestEmptyFolder(t *testing.T) {
	m := New(&fakeSource{}, keys.DefaultKeyMap(), 80, 20)
	m = load(t, m, m.Open("d1", "/"))

	assert.Contains(t, m.View(), "No documents")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}
