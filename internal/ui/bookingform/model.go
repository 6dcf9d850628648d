package bookingform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/theme"
)

// BookingSubmittedMsg is dispatched when the user confirms the form.
// The RequestID is already populated so retries of the same submission
// stay idempotent.
type BookingSubmittedMsg struct {
	Request model.BookingRequest
}

// BookingCancelMsg is dispatched when the user cancels the form.
type BookingCancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	seat    string
	confirm bool
}

// Model is the Bubble Tea model for the seat booking form.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	bus       model.Bus
	userID    string
	requestID string
	width     int
	height    int
}

// New creates a new booking form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form for booking a seat on the given bus. A
// fresh idempotency key is minted here and reused for the lifetime of
// this form instance.
func (m *Model) Start(bus model.Bus, userID string) tea.Cmd {
	m.bus = bus
	m.userID = userID
	m.requestID = uuid.NewString()
	m.fb.seat = ""
	m.fb.confirm = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the booking form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		if !m.fb.confirm {
			return m, func() tea.Msg { return BookingCancelMsg{} }
		}
		req := model.BookingRequest{
			RequestID: m.requestID,
			UserID:    m.userID,
			BusID:     m.bus.ID,
			Seat:      strings.TrimSpace(m.fb.seat),
		}
		return m, func() tea.Msg { return BookingSubmittedMsg{Request: req} }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return BookingCancelMsg{} }
	}

	return m, cmd
}

// View renders the booking form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := fmt.Sprintf("Book a seat on %s", m.bus.Number)
	seatsLeft := m.bus.Capacity - m.bus.Occupied
	subtitle := theme.HelpStyle.Render(
		fmt.Sprintf("%d seats available", seatsLeft),
	)

	content := titleStyle.Render(title) + "\n" + subtitle + "\n\n" + m.form.View()

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
			huh.NewInput().
				Title("Seat").
				Placeholder("e.g. 12B").
				Value(&m.fb.seat).
				Validate(validateSeat),
			huh.NewConfirm().
				Title("Confirm booking?").
				Affirmative("Book").
				Negative("Cancel").
				Value(&m.fb.confirm),
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

func validateSeat(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("seat is required")
	}
	return nil
}
