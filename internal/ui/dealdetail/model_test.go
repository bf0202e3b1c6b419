package dealdetail

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
)

type fakeSource struct {
	deal  model.Deal
	err   error
	calls int
}

func (f *fakeSource) Deal(_ context.Context, id string) (model.Deal, error) {
	f.calls++
	if f.err != nil {
		return model.Deal{}, f.err
	}
	d := f.deal
	d.ID = id
	return d, nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleDeal() model.Deal {
	return model.Deal{
		Name:  "Acme acquisition",
		Stage: model.StageNegotiation,
		Value: model.Money{Amount: 1250000, Currency: "USD"},
		Owner: model.Owner{Name: "Dana Reyes", Email: "dana@example.com"},
		Documents: []model.DealDocument{
			{DocumentID: "doc-1", Name: "Term sheet.txt", Folder: "/"},
			{DocumentID: "doc-2", Name: "NDA.txt", Folder: "/legal"},
		},
		Timeline: []model.TimelineEvent{
			{At: time.Now().Add(-time.Hour), Kind: "stage", Description: "Moved to negotiation"},
		},
	}
}

func opened(t *testing.T, src *fakeSource) Model {
	t.Helper()
	m := New(src, keys.DefaultKeyMap(), 100, 40)
	cmd := m.Open("d1")
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	return m
}

func TestOpenRendersDeal(t *testing.T) {
	src := &fakeSource{deal: sampleDeal()}
	m := opened(t, src)

	view := m.View()
	assert.Contains(t, view, "Acme acquisition")
	assert.Contains(t, view, "12500.00 USD")
	assert.Contains(t, view, "Dana Reyes")
	assert.Contains(t, view, "Documents (2)")
	assert.Contains(t, view, "Moved to negotiation")
}

func TestLoadError(t *testing.T) {
	m := opened(t, &fakeSource{err: errors.New("not found")})

	assert.Contains(t, m.View(), "Could not load deal: not found")
}

func TestStaleLoadIgnored(t *testing.T) {
	src := &fakeSource{deal: sampleDeal()}
	m := New(src, keys.DefaultKeyMap(), 100, 40)
	stale := m.Open("d1")()

	src.deal.Name = "Renamed"
	cmd := m.Refresh()
	m, _ = m.Update(cmd())
	m, _ = m.Update(stale)

	d, ok := m.Deal()
	require.True(t, ok)
	assert.Equal(t, "Renamed", d.Name)
}

func TestSelectDocument(t *testing.T) {
	m := opened(t, &fakeSource{deal: sampleDeal()})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, OpenDocumentMsg{DealID: "d1", DocumentID: "doc-2"}, cmd())
}

func TestOpenDocumentsAndBack(t *testing.T) {
	m := opened(t, &fakeSource{deal: sampleDeal()})

	_, cmd := m.Update(runes("d"))
	require.NotNil(t, cmd)
	assert.Equal(t, OpenDocumentsMsg{DealID: "d1"}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestStageEditorOpensAndCloses(t *testing.T) {
	m := opened(t, &fakeSource{deal: sampleDeal()})

	m, _ = m.Update(runes("s"))
	require.True(t, m.Editing())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Editing())
}

func TestRequestStage(t *testing.T) {
	m := opened(t, &fakeSource{deal: sampleDeal()})

	_, cmd := m.RequestStage(model.StageNegotiation)
	assert.Nil(t, cmd, "current stage is a no-op")

	_, cmd = m.RequestStage(model.DealStage("archived"))
	assert.Nil(t, cmd)

	m, cmd = m.RequestStage(model.StageClosing)
	require.NotNil(t, cmd)
	assert.Equal(t, StageChangeRequestedMsg{DealID: "d1", Stage: model.StageClosing}, cmd())
	assert.Contains(t, m.View(), "Moving to Closing")
}

func TestStageChangedOffline(t *testing.T) {
	m := opened(t, &fakeSource{deal: sampleDeal()})

	d := sampleDeal()
	d.ID = "d1"
	d.Stage = model.StageClosing
	d.HasOfflineChanges = true
	m, _ = m.Update(StageChangedMsg{Deal: d})

	view := m.View()
	assert.Contains(t, view, "Closing")
	assert.Contains(t, view, "unsynced changes")
	assert.Contains(t, view, "saved offline")
}

func TestStageChangeFailed(t *testing.T) {
	m := opened(t, &fakeSource{deal: sampleDeal()})

	m, _ = m.Update(StageChangeFailedMsg{Err: errors.New("session expired")})

	assert.Contains(t, m.View(), "Could not change stage: session expired")
}
