package notifications

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/theme"
)

// NotificationItem wraps a model.Notification so it can be used in a
// bubbles/list.
type NotificationItem struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i NotificationItem) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i NotificationItem) Title() string { return i.Notification.Title }

// Description returns a short summary line for the list.
func (i NotificationItem) Description() string {
	parts := []string{
		string(i.Notification.Type),
		string(i.Notification.Priority),
		relativeTime(i.Notification.CreatedAt),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering notification rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line. Unread items carry a dot
// prefix and a bold title; read items are dimmed.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ni, ok := item.(NotificationItem)
	if !ok {
		return
	}

	n := ni.Notification
	isSelected := index == m.Index()

	prefix := " "
	if !n.Read {
		prefix = "●"
	}

	typeBadge := theme.TypeLabelStyle(n.Type).Render(string(n.Type))
	priBadge := theme.PriorityStyle(n.Priority).Render(priorityLabel(n.Priority))

	title := n.Title
	if !n.Read {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}

	timeStr := theme.HelpStyle.Render(relativeTime(n.CreatedAt))

	line := fmt.Sprintf(
		"%s %s %s %s  %s",
		prefix, typeBadge, priBadge, title, timeStr,
	)

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}

// priorityLabel returns a short label for the given priority.
func priorityLabel(p model.NotificationPriority) string {
	switch p {
	case model.PriorityUrgent:
		return "!!"
	case model.PriorityHigh:
		return "!"
	case model.PriorityNormal:
		return "·"
	case model.PriorityLow:
		return "·"
	default:
		return "·"
	}
}
