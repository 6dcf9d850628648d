package notifications

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dnguyen/buswatch/internal/keys"
	"github.com/dnguyen/buswatch/internal/notify"
	"github.com/dnguyen/buswatch/internal/theme"
)

// Model is the notification inbox view component.
type Model struct {
	list      list.Model
	center    *notify.Center
	keys      *keys.KeyMap
	recipient string
	snap      notify.Snapshot
	width     int
	height    int
}

// New creates a new notifications model over the given center.
func New(center *notify.Center, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		center: center,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetRecipient points the inbox at a user and triggers a fetch.
// Called when the session identity changes.
func (m *Model) SetRecipient(id string) {
	if id == m.recipient {
		return
	}
	m.recipient = id
	if id != "" {
		m.center.Load(id, true)
	}
}

// Update handles messages for the notifications view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case notify.ChangedMsg:
		m.snap = msg.Snapshot
		items := make([]list.Item, len(m.snap.Notifications))
		for i, n := range m.snap.Notifications {
			items[i] = NotificationItem{Notification: n}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			if m.recipient != "" {
				m.center.Load(m.recipient, true)
			}
			return m, nil

		case key.Matches(msg, m.keys.MarkRead), key.Matches(msg, m.keys.Select):
			item, ok := m.list.SelectedItem().(NotificationItem)
			if !ok {
				return m, nil
			}
			m.center.MarkAsRead(item.Notification.ID)
			return m, nil

		case key.Matches(msg, m.keys.MarkAllRead):
			if m.recipient != "" {
				m.center.MarkAllAsRead(m.recipient)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the notifications view.
func (m Model) View() string {
	if m.recipient == "" {
		return m.centered("Log in to see your notifications.")
	}

	var footer string
	switch m.snap.State {
	case notify.StateLoading:
		footer = theme.HelpStyle.Render("Loading notifications…")
	case notify.StateRefreshing:
		footer = theme.HelpStyle.Render("Refreshing…")
	case notify.StateError:
		footer = theme.ErrorStyle.Render(m.snap.ErrMessage)
	}

	if len(m.list.Items()) == 0 {
		if footer != "" {
			return m.centered(footer)
		}
		return m.centered("No notifications.")
	}

	header := theme.HelpStyle.Render("all read")
	if m.snap.UnreadCount > 0 {
		header = theme.UnreadBadgeStyle.Render(
			fmt.Sprintf("%d unread", m.snap.UnreadCount),
		)
	}

	parts := []string{header, m.list.View()}
	if footer != "" {
		parts = append(parts, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) centered(text string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(text)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
