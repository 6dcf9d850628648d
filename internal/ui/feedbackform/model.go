package feedbackform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/theme"
)

// FeedbackSubmittedMsg is dispatched when the user confirms the form.
type FeedbackSubmittedMsg struct {
	Feedback model.Feedback
}

// FeedbackCancelMsg is dispatched when the user cancels the form.
type FeedbackCancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	rating  int
	comment string
}

// Model is the Bubble Tea model for the trip feedback form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	bus    model.Bus
	userID string
	width  int
	height int
}

// New creates a new feedback form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{rating: 5},
		width:  width,
		height: height,
	}
}

// Start initializes the form for rating a trip on the given bus.
func (m *Model) Start(bus model.Bus, userID string) tea.Cmd {
	m.bus = bus
	m.userID = userID
	m.fb.rating = 5
	m.fb.comment = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the feedback form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		fb := model.Feedback{
			UserID:  m.userID,
			BusID:   m.bus.ID,
			Rating:  m.fb.rating,
			Comment: strings.TrimSpace(m.fb.comment),
		}
		return m, func() tea.Msg { return FeedbackSubmittedMsg{Feedback: fb} }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return FeedbackCancelMsg{} }
	}

	return m, cmd
}

// View renders the feedback form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := fmt.Sprintf("Feedback for %s", m.bus.Number)
	content := titleStyle.Render(title) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Rating").
				Options(
					huh.NewOption("★★★★★ Excellent", 5),
					huh.NewOption("★★★★ Good", 4),
					huh.NewOption("★★★ Okay", 3),
					huh.NewOption("★★ Poor", 2),
					huh.NewOption("★ Terrible", 1),
				).
				Value(&m.fb.rating),
			huh.NewText().
				Title("Comment").
				Placeholder("Anything else about the trip? (optional)").
				Value(&m.fb.comment),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
