package deallist

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/theme"
	"github.com/nhle/dealroom/internal/ui"
)

// DealItem wraps a model.Deal so it can be used in a bubbles/list.
type DealItem struct {
	Deal model.Deal
}

// FilterValue returns the string used for fuzzy filtering.
func (i DealItem) FilterValue() string { return i.Deal.Name }

// ItemDelegate implements list.ItemDelegate for rendering deals.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single deal line: stage, name, value, owner and age.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(DealItem)
	if !ok {
		return
	}
	deal := it.Deal

	stage := theme.StageStyle(deal.Stage).Width(15).Render(deal.Stage.Label())

	offline := ""
	if deal.HasOfflineChanges {
		offline = theme.PendingBadgeStyle.Render(" ⟳ unsynced")
	}

	meta := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(fmt.Sprintf("%s · %s · %s", deal.Value, deal.Owner.Name, ui.RelativeTime(deal.UpdatedAt)))

	line := fmt.Sprintf("%s %s%s  %s", stage, deal.Name, offline, meta)

	if deal.Stage.IsClosed() {
		line = theme.DimmedStyle.Render(line)
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}
