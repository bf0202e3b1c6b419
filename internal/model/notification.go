package model

import "time"

// NotificationItem is one push or local notification received by the device.
type NotificationItem struct {
	// ID is the identifier assigned by the push service.
	ID string `json:"id"`

	// Title is the short headline.
	Title string `json:"title"`

	// Body is the notification text.
	Body string `json:"body"`

	// Payload holds arbitrary data attached by the sender
	// (e.g. deal_id, document_id).
	Payload map[string]any `json:"payload,omitempty"`

	// ReceivedAt is when this device received the notification.
	ReceivedAt time.Time `json:"received_at"`

	// Silent notifications are recorded but never announced.
	Silent bool `json:"silent,omitempty"`

	// Read indicates whether the user has viewed the notification.
	Read bool `json:"read,omitempty"`
}

// PayloadString returns the string value stored under key, if any.
func (n NotificationItem) PayloadString(key string) string {
	if n.Payload == nil {
		return ""
	}
	s, _ := n.Payload[key].(string)
	return s
}
