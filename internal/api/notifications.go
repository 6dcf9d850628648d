package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dnguyen/buswatch/internal/model"
)

// notificationList decodes the two layouts the backend uses for
// notification listings: a bare array, or an object wrapping the array
// under a "notifications" key. Anything else fails decoding and is
// surfaced as a malformed-response error.
type notificationList []model.Notification

func (l *notificationList) UnmarshalJSON(data []byte) error {
	var bare []model.Notification
	if err := json.Unmarshal(data, &bare); err == nil {
		*l = bare
		return nil
	}

	var wrapped struct {
		Notifications *[]model.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Notifications != nil {
		*l = *wrapped.Notifications
		return nil
	}

	return errors.New("expected a notification array or a {notifications: []} object")
}

// ListNotifications retrieves all notifications addressed to recipient,
// normalized to a single slice regardless of the wire layout.
func (c *Client) ListNotifications(ctx context.Context, recipient string) ([]model.Notification, error) {
	var list notificationList
	if err := c.get(ctx, "/notifications/user/"+recipient, &list); err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", recipient, err)
	}
	return list, nil
}

// MarkNotificationRead flags a single notification as read server-side.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.patch(ctx, "/notifications/"+id+"/read", nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead flags every notification for recipient as
// read server-side.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, recipient string) error {
	if err := c.patch(ctx, "/notifications/user/"+recipient+"/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read for %s: %w", recipient, err)
	}
	return nil
}
