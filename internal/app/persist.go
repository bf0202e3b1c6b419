package app

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/dealroom/internal/appstate"
	"github.com/nhle/dealroom/internal/logging"
	"github.com/nhle/dealroom/internal/session"
	"github.com/nhle/dealroom/internal/store"
)

const persistTimeout = 5 * time.Second

// persister writes the session to the keyring and the notification queue
// to the store. Writes run as commands; a snapshot older than the last one
// written is skipped so out-of-order commands never regress stored state.
type persister struct {
	vault *session.Vault
	store store.Store
	log   logging.Logger

	mu      gosync.Mutex
	next    uint64
	written uint64
}

func newPersister(v *session.Vault, s store.Store, log logging.Logger) *persister {
	return &persister{vault: v, store: s, log: log}
}

// save returns a command that stores st.
func (p *persister) save(st appstate.State) tea.Cmd {
	p.mu.Lock()
	p.next++
	seq := p.next
	p.mu.Unlock()

	return func() tea.Msg {
		p.mu.Lock()
		defer p.mu.Unlock()
		if seq < p.written {
			return nil
		}
		p.written = seq

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := p.write(ctx, st); err != nil {
			p.log.Error(ctx, "persisting state", "error", err)
		}
		return nil
	}
}

func (p *persister) write(ctx context.Context, st appstate.State) error {
	var errs []error
	if err := p.vault.Persist(st.Session); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}
	n := st.Notifications
	if err := p.store.SaveNotificationSnapshot(ctx, n.Items, n.Token); err != nil {
		errs = append(errs, fmt.Errorf("notifications: %w", err))
	}
	return errors.Join(errs...)
}
