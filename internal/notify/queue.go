// Package notify holds the notification queue state: a bounded,
// most-recent-first log of received notifications and the device token
// registered with the push service.
//
// State changes are expressed as actions applied by Reduce, which never
// mutates its input.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/dealroom/internal/model"
)

// MaxItems is the queue capacity; older notifications are evicted.
const MaxItems = 50

// State is the notifications slice of the application state.
type State struct {
	// Items is ordered most-recent-first and never longer than MaxItems.
	Items []model.NotificationItem

	// Token is the last device token the push service accepted.
	Token string

	// Registering is the token currently being registered, if any.
	Registering string

	// LastError is the most recent registration failure.
	LastError error
}

// Action is a state transition applied by Reduce.
type Action interface {
	isAction()
}

// Enqueue records a newly received notification.
type Enqueue struct{ Item model.NotificationItem }

// MarkRead flags the notification with the given ID as read.
type MarkRead struct{ ID string }

// Clear empties the queue. The token is kept.
type Clear struct{}

// Restore replaces the queue with persisted items and token.
type Restore struct {
	Items []model.NotificationItem
	Token string
}

// RegisterStarted marks a token registration as in flight.
type RegisterStarted struct{ Token string }

// TokenRegistered is the success outcome of a registration.
type TokenRegistered struct{ Token string }

// TokenRegistrationFailed is the failure outcome of a registration.
type TokenRegistrationFailed struct {
	Token string
	Err   error
}

func (Enqueue) isAction()                 {}
func (MarkRead) isAction()                {}
func (Clear) isAction()                   {}
func (Restore) isAction()                 {}
func (RegisterStarted) isAction()         {}
func (TokenRegistered) isAction()         {}
func (TokenRegistrationFailed) isAction() {}

// Reduce applies a to s and returns the new state.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Enqueue:
		items := make([]model.NotificationItem, 0, min(len(s.Items)+1, MaxItems))
		items = append(items, a.Item)
		items = append(items, s.Items...)
		s.Items = truncate(items)

	case MarkRead:
		idx := -1
		for i, it := range s.Items {
			if it.ID == a.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s
		}
		items := make([]model.NotificationItem, len(s.Items))
		copy(items, s.Items)
		items[idx].Read = true
		s.Items = items

	case Clear:
		s.Items = nil

	case Restore:
		items := make([]model.NotificationItem, len(a.Items))
		copy(items, a.Items)
		s.Items = truncate(items)
		s.Token = a.Token

	case RegisterStarted:
		s.Registering = a.Token
		s.LastError = nil

	case TokenRegistered:
		s.Token = a.Token
		s.Registering = ""
		s.LastError = nil

	case TokenRegistrationFailed:
		s.Registering = ""
		s.LastError = a.Err
	}

	return s
}

func truncate(items []model.NotificationItem) []model.NotificationItem {
	if len(items) > MaxItems {
		return items[:MaxItems]
	}
	return items
}

// Unread returns the number of unread notifications.
func (s State) Unread() int {
	n := 0
	for _, it := range s.Items {
		if !it.Read {
			n++
		}
	}
	return n
}

// Find returns the notification with the given ID.
func (s State) Find(id string) (model.NotificationItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return model.NotificationItem{}, false
}

// Registrar is the push-registration collaborator.
type Registrar interface {
	RegisterDeviceToken(ctx context.Context, token string) error
}

// ErrEmptyToken is returned when asked to register an empty token.
var ErrEmptyToken = errors.New("empty device token")

// Register performs the registration call and returns the outcome action.
// It never retries; the failure action carries the rejection reason.
func Register(ctx context.Context, r Registrar, token string) Action {
	if token == "" {
		return TokenRegistrationFailed{Token: token, Err: ErrEmptyToken}
	}
	if err := r.RegisterDeviceToken(ctx, token); err != nil {
		return TokenRegistrationFailed{
			Token: token,
			Err:   fmt.Errorf("registering device token: %w", err),
		}
	}
	return TokenRegistered{Token: token}
}
