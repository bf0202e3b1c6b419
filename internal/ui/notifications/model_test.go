package notifications

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dealroom/internal/keys"
	"github.com/nhle/dealroom/internal/model"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func inbox() Model {
	m := New(keys.DefaultKeyMap(), 80, 30)
	m.SetItems([]model.NotificationItem{
		{
			ID:         "n2",
			Title:      "NDA uploaded",
			Body:       "Dana added NDA.txt",
			Payload:    map[string]any{"deal_id": "d1", "document_id": "doc-9"},
			ReceivedAt: time.Now(),
		},
		{ID: "n1", Title: "Stage changed", ReceivedAt: time.Now().Add(-time.Hour), Read: true},
	})
	return m
}

func TestViewListsNotifications(t *testing.T) {
	view := inbox().View()

	assert.Contains(t, view, "NDA uploaded")
	assert.Contains(t, view, "Stage changed")
}

func TestEmptyInbox(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)

	assert.Contains(t, m.View(), "No notifications")
	_, cmd := m.Update(runes("C"))
	assert.Nil(t, cmd)
}

func TestMarkRead(t *testing.T) {
	m := inbox()

	_, cmd := m.Update(runes("m"))
	require.NotNil(t, cmd)
	assert.Equal(t, MarkReadMsg{ID: "n2"}, cmd())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = m.Update(runes("m"))
	assert.Nil(t, cmd, "already read")
}

func TestOpenCarriesPayload(t *testing.T) {
	_, cmd := inbox().Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, OpenMsg{ID: "n2", DealID: "d1", DocumentID: "doc-9"}, cmd())
}

func TestClearAndBack(t *testing.T) {
	m := inbox()

	_, cmd := m.Update(runes("C"))
	require.NotNil(t, cmd)
	assert.Equal(t, ClearMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestSetItemsClampsCursor(t *testing.T) {
	m := inbox()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})

	m.SetItems([]model.NotificationItem{{ID: "n3", Title: "Only one"}})

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "n3", n.ID)
}
