package buslist

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/theme"
)

// BusItem wraps a model.Bus plus its ETA projection so it can be used
// in a bubbles/list.
type BusItem struct {
	Bus model.Bus
	ETA *model.BusETA
}

// FilterValue returns the string used for fuzzy filtering.
func (i BusItem) FilterValue() string { return i.Bus.Number }

// Title returns the bus number for the list.
func (i BusItem) Title() string { return i.Bus.Number }

// Description returns a short summary line for the list.
func (i BusItem) Description() string {
	if i.ETA == nil {
		return i.Bus.Status
	}
	return fmt.Sprintf("%s | %s", i.Bus.Status, i.ETA.ETA)
}

// ItemDelegate implements list.ItemDelegate for rendering bus rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single bus line: number, status badge, occupancy,
// ETA, and route when known.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	bi, ok := item.(BusItem)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	statusBadge := theme.StatusStyle(bi.Bus.Status).Render(bi.Bus.Status)

	occupancy := occupancyLabel(bi.Bus)

	etaStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render("eta unknown")
	routeStr := ""
	if bi.ETA != nil {
		etaStr = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen).
			Render(bi.ETA.ETA)
		if bi.ETA.Route.Name != "" {
			routeStr = lipgloss.NewStyle().
				Foreground(theme.ColorGray).
				Render("  " + bi.ETA.Route.Name)
		}
	}

	line := fmt.Sprintf(
		"%s %s %s  %s%s",
		bi.Bus.Number, statusBadge, occupancy, etaStr, routeStr,
	)

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// occupancyLabel renders seat occupancy, color-coded by how full the
// bus is.
func occupancyLabel(b model.Bus) string {
	label := fmt.Sprintf("%d/%d", b.Occupied, b.Capacity)

	style := lipgloss.NewStyle().Foreground(theme.ColorGreen)
	if b.Capacity > 0 {
		ratio := float64(b.Occupied) / float64(b.Capacity)
		switch {
		case ratio >= 1:
			style = style.Foreground(theme.ColorRed)
		case ratio >= 0.8:
			style = style.Foreground(theme.ColorOrange)
		case ratio >= 0.5:
			style = style.Foreground(theme.ColorYellow)
		}
	}

	return style.Render(label)
}
