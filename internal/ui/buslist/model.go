package buslist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dnguyen/buswatch/internal/busfeed"
	"github.com/dnguyen/buswatch/internal/keys"
	"github.com/dnguyen/buswatch/internal/theme"
)

// BookRequestedMsg is sent when the user asks to book a seat on the
// selected bus.
type BookRequestedMsg struct {
	BusID string
}

// Model is the bus fleet view component.
type Model struct {
	list   list.Model
	feed   *busfeed.Feed
	keys   *keys.KeyMap
	snap   busfeed.Snapshot
	width  int
	height int
}

// New creates a new bus list model over the given feed.
func New(feed *busfeed.Feed, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Buses"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		feed:   feed,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns a command that loads the fleet.
func (m Model) Init() tea.Cmd {
	return m.feed.Load()
}

// Update handles messages for the bus list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case busfeed.UpdatedMsg:
		m.snap = msg.Snapshot
		cmd := m.list.SetItems(m.buildItems())
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			return m, m.feed.Refresh()

		case key.Matches(msg, m.keys.Select):
			item, ok := m.list.SelectedItem().(BusItem)
			if !ok {
				return m, nil
			}
			m.feed.SelectBus(item.Bus.ID)
			return m, nil

		case key.Matches(msg, m.keys.Book):
			item, ok := m.list.SelectedItem().(BusItem)
			if !ok {
				return m, nil
			}
			m.feed.SelectBus(item.Bus.ID)
			id := item.Bus.ID
			return m, func() tea.Msg {
				return BookRequestedMsg{BusID: id}
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// buildItems joins the fleet with its ETA projections.
func (m Model) buildItems() []list.Item {
	items := make([]list.Item, len(m.snap.Buses))
	for i, b := range m.snap.Buses {
		items[i] = BusItem{Bus: b, ETA: m.feed.ETAFor(b.ID)}
	}
	return items
}

// View renders the bus list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No buses to show.\n\nPress r to refresh.")
	}

	var footer string
	if m.snap.Placeholder {
		footer = theme.PlaceholderStyle.Render(
			fmt.Sprintf("Showing sample data: %s", m.snap.ErrMessage),
		)
	}

	if footer == "" {
		return m.list.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), footer)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
