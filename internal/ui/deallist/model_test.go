package deallist

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/store"
)

type fakeSource struct {
	deals   []model.Deal
	err     error
	filters []store.DealFilter
}

func (f *fakeSource) Deals(_ context.Context, flt store.DealFilter) ([]model.Deal, error) {
	f.filters = append(f.filters, flt)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Deal
	for _, d := range f.deals {
		if flt.Stage != nil && d.Stage != *flt.Stage {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	return m
}

func sample() *fakeSource {
	return &fakeSource{deals: []model.Deal{
		{ID: "d1", Name: "Acme acquisition", Stage: model.StageProspect},
		{ID: "d2", Name: "Globex merger", Stage: model.StageQualification},
	}}
}

func TestRefreshLoadsDeals(t *testing.T) {
	m := New(sample(), keys.DefaultKeyMap(), 100, 30)
	assert.Contains(t, m.View(), "Loading deals")

	m = loaded(t, m, m.Refresh())

	assert.Len(t, m.Deals(), 2)
	assert.Contains(t, m.View(), "Acme acquisition")
}

func TestCycleFilter(t *testing.T) {
	src := sample()
	m := New(src, keys.DefaultKeyMap(), 100, 30)
	m = loaded(t, m, m.Refresh())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = loaded(t, m, cmd)
	require.NotNil(t, m.Filter().Stage)
	assert.Equal(t, model.StageProspect, *m.Filter().Stage)
	require.Len(t, m.Deals(), 1)
	assert.Equal(t, "d1", m.Deals()[0].ID)

	for range model.DealStages {
		m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	m = loaded(t, m, cmd)
	assert.Nil(t, m.Filter().Stage, "cycle wraps back to all stages")
	assert.Len(t, m.Deals(), 2)
}

func TestSearchSetsQuery(t *testing.T) {
	src := sample()
	m := New(src, keys.DefaultKeyMap(), 100, 30)
	m = loaded(t, m, m.Refresh())

	m, _ = m.Update(runes("/"))
	require.True(t, m.Searching())
	for _, r := range "acme" {
		m, _ = m.Update(runes(string(r)))
	}
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = loaded(t, m, cmd)

	assert.False(t, m.Searching())
	assert.Equal(t, "acme", src.filters[len(src.filters)-1].Query)

	m, cmd = m.Update(runes("/"))
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	loaded(t, m, cmd)
	assert.Equal(t, "", src.filters[len(src.filters)-1].Query)
}

func TestSelectEmitsDeal(t *testing.T) {
	m := New(sample(), keys.DefaultKeyMap(), 100, 30)
	m = loaded(t, m, m.Refresh())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, SelectedDealMsg{DealID: "d1"}, cmd())
}

func TestStaleLoadIgnored(t *testing.T) {
	src := sample()
	m := New(src, keys.DefaultKeyMap(), 100, 30)
	stale := m.Refresh()
	staleMsg := stale()

	src.deals = src.deals[:1]
	m = loaded(t, m, m.Refresh())
	m, _ = m.Update(staleMsg)

	assert.Len(t, m.Deals(), 1)
}

func TestLoadError(t *testing.T) {
	src := &fakeSource{err: errors.New("backend down")}
	m := New(src, keys.DefaultKeyMap(), 100, 30)

	m = loaded(t, m, m.Refresh())

	assert.Contains(t, m.View(), "backend down")
}
