package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/dealroom/internal/appstate"
	"github.com/nhle/dealroom/internal/nav"
	"github.com/nhle/dealroom/internal/notify"
	appsync "github.com/nhle/dealroom/internal/sync"
	"github.com/nhle/dealroom/internal/ui/dealdetail"
	"github.com/nhle/dealroom/internal/ui/foldertree"
	"github.com/nhle/dealroom/internal/ui/preview"
)

type annotationDiscardedMsg struct{ err error }

func (m Model) changeStage(msg dealdetail.StageChangeRequestedMsg) tea.Cmd {
	c := m.catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		d, err := c.SetStage(ctx, msg.DealID, msg.Stage)
		if err != nil {
			return dealdetail.StageChangeFailedMsg{Err: err}
		}
		return dealdetail.StageChangedMsg{Deal: d}
	}
}

func (m Model) createFolder(msg foldertree.FolderCreateRequestedMsg) tea.Cmd {
	c := m.catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		f, err := c.CreateFolder(ctx, msg.DealID, msg.Parent, msg.Name)
		if err != nil {
			return foldertree.FolderCreateFailedMsg{Err: err}
		}
		return foldertree.FolderCreatedMsg{Folder: f}
	}
}

func (m Model) discardAnnotation(msg preview.DiscardAnnotationMsg) tea.Cmd {
	c := m.catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return annotationDiscardedMsg{err: c.DiscardAnnotation(ctx, msg.ID)}
	}
}

// handleSyncResult folds a finished sync pass into the state and the
// screens, then waits for the next one. Auth rejections are handled before
// this is reached.
func (m *Model) handleSyncResult(msg appsync.ResultMsg) tea.Cmd {
	cmds := []tea.Cmd{m.waitForSync()}

	if len(msg.Notifications) > 0 {
		actions := make([]any, 0, len(msg.Notifications))
		announce := ""
		for _, n := range msg.Notifications {
			actions = append(actions, notify.Enqueue{Item: n})
			if !n.Silent {
				announce = n.Title
			}
		}
		cmds = append(cmds, m.apply(actions...))
		if announce != "" {
			m.flash("🔔 "+announce, false)
			cmds = append(cmds, m.statusTimer())
		}
	}

	if msg.Deals != nil {
		cmds = append(cmds, m.deals.Refresh())
		if m.nav.Current().Name == nav.RouteDealDetail {
			cmds = append(cmds, m.detail.Refresh())
		}
	}
	if msg.AnnotationsSynced > 0 && m.nav.Current().Name == nav.RouteDocumentViewer {
		cmds = append(cmds, m.preview.ReloadAnnotations())
	}

	if msg.Err != nil && msg.AuthErr == nil {
		m.log.Warn(context.Background(), "sync incomplete", "error", msg.Err)
		if m.status == "" {
			m.flash(fmt.Sprintf("Sync incomplete: %v", msg.Err), true)
			cmds = append(cmds, m.statusTimer())
		}
	}
	return tea.Batch(cmds...)
}

// handleConnectivity records the backend's reachability and syncs as soon
// as it returns.
func (m *Model) handleConnectivity(msg appsync.ConnectivityMsg) tea.Cmd {
	was := m.state.Online
	cmd := m.apply(appstate.ConnectivityChanged{Online: msg.Online})
	m.resize()

	cmds := []tea.Cmd{cmd, m.waitForSync()}
	switch {
	case msg.Online && !was:
		m.log.Info(context.Background(), "backend reachable")
		if m.worker != nil {
			m.worker.Trigger()
		}
		m.flash("Back online", false)
		cmds = append(cmds, m.statusTimer())
	case !msg.Online && was:
		m.log.Warn(context.Background(), "backend unreachable", "error", msg.Err)
	}
	return tea.Batch(cmds...)
}

func (m Model) waitForSync() tea.Cmd {
	if m.worker == nil {
		return nil
	}
	return m.worker.WaitForNext()
}
