package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nhle/dealroom/internal/model"
)

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterDeviceToken registers this installation for push delivery.
func (c *Client) RegisterDeviceToken(ctx context.Context, token string) error {
	err := c.sendJSON(ctx, http.MethodPost, "/v1/devices",
		registerDeviceRequest{Token: token, Platform: "terminal"}, nil)
	if err != nil {
		return fmt.Errorf("registering device: %w", err)
	}
	return nil
}

type notificationsResponse struct {
	Notifications []model.NotificationItem `json:"notifications"`
}

// FetchNotifications returns notifications delivered to token after since,
// oldest first.
func (c *Client) FetchNotifications(ctx context.Context, token string, since time.Time) ([]model.NotificationItem, error) {
	path := "/v1/devices/" + url.PathEscape(token) + "/notifications"
	if !since.IsZero() {
		path += "?" + url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}.Encode()
	}

	var resp notificationsResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	return resp.Notifications, nil
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.getJSON(ctx, "/v1/health", nil); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}
