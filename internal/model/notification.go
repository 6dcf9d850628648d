package model

import "time"

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	NotificationAnnouncement NotificationType = "announcement"
	NotificationRouteChange  NotificationType = "route_change"
	NotificationDelay        NotificationType = "delay"
	NotificationCancellation NotificationType = "cancellation"
	NotificationReminder     NotificationType = "reminder"
	NotificationGeneral      NotificationType = "general"
)

// NotificationPriority is the urgency level attached to a notification.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification represents an alert delivered to a rider about service
// activity (delays, route changes, booking reminders, announcements).
type Notification struct {
	// ID is the server-assigned identifier for this notification.
	ID string `json:"id"`

	// Recipient is the user this notification was addressed to.
	Recipient string `json:"recipient"`

	// Type classifies the notification.
	Type NotificationType `json:"type"`

	// Title is an optional short heading.
	Title string `json:"title,omitempty"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Priority is the urgency level; urgent notifications trigger a
	// distinct audible cue when they arrive unread.
	Priority NotificationPriority `json:"priority"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"is_read"`

	// ReadAt is when the notification was marked read. It is non-nil
	// exactly when Read is true.
	ReadAt *time.Time `json:"read_at,omitempty"`

	// CreatedAt is when this notification was generated server-side.
	CreatedAt time.Time `json:"created_at"`
}

// MarkRead flips the read flag and stamps ReadAt with now. An existing
// ReadAt is preserved so repeated marks are stable.
func (n *Notification) MarkRead(now time.Time) {
	if n.Read && n.ReadAt != nil {
		return
	}
	n.Read = true
	n.ReadAt = &now
}

// UnreadCount returns the number of unread notifications in ns. Derived
// state such as badge counters must always be recomputed through this
// rather than tracked separately.
func UnreadCount(ns []Notification) int {
	count := 0
	for i := range ns {
		if !ns[i].Read {
			count++
		}
	}
	return count
}
