package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nhle/dealroom/internal/model"
)

const pushTokenKey = "push_token"

// SaveNotificationSnapshot replaces the persisted notification queue and
// registered device token.
func (s *SQLiteStore) SaveNotificationSnapshot(
	ctx context.Context,
	items []model.NotificationItem,
	token string,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notification_snapshot"); err != nil {
		return fmt.Errorf("clearing notification snapshot: %w", err)
	}

	for i, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshaling notification %s: %w", it.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO notification_snapshot (position, item) VALUES (?, ?)", i, string(data),
		)
		if err != nil {
			return fmt.Errorf("saving notification %s: %w", it.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", pushTokenKey, token,
	)
	if err != nil {
		return fmt.Errorf("saving push token: %w", err)
	}

	return tx.Commit()
}

// LoadNotificationSnapshot returns the persisted queue in order and the
// registered token.
func (s *SQLiteStore) LoadNotificationSnapshot(ctx context.Context) ([]model.NotificationItem, string, error) {
	var raw []string
	err := s.db.SelectContext(ctx, &raw,
		"SELECT item FROM notification_snapshot ORDER BY position ASC",
	)
	if err != nil {
		return nil, "", fmt.Errorf("loading notification snapshot: %w", err)
	}

	items := make([]model.NotificationItem, 0, len(raw))
	for _, r := range raw {
		var it model.NotificationItem
		if err := json.Unmarshal([]byte(r), &it); err != nil {
			return nil, "", fmt.Errorf("unmarshaling notification: %w", err)
		}
		items = append(items, it)
	}

	token, err := s.GetMeta(ctx, pushTokenKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}
	return items, token, nil
}
