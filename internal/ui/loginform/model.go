package loginform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/theme"
)

// LogInSubmittedMsg is dispatched when the user submits the login form.
type LogInSubmittedMsg struct {
	Email    string
	Password string
}

// SignUpSubmittedMsg is dispatched when the user submits the sign-up form.
type SignUpSubmittedMsg struct {
	Request api.SignUpRequest
}

// CancelMsg is dispatched when the user cancels either form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	username string
	password string
	fullName string
	phone    string
	signUp   bool
}

// Model is the Bubble Tea model for the login/sign-up form.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	signUpMode bool
	errMessage string
	width      int
	height     int
}

// New creates a new login form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// StartLogIn initializes the form for logging into an existing account.
func (m *Model) StartLogIn() tea.Cmd {
	m.signUpMode = false
	m.errMessage = ""
	m.fb.password = ""
	m.form = m.buildLogInForm()
	return m.form.Init()
}

// StartSignUp initializes the form for registering a new account.
func (m *Model) StartSignUp() tea.Cmd {
	m.signUpMode = true
	m.errMessage = ""
	m.fb.password = ""
	m.form = m.buildSignUpForm()
	return m.form.Init()
}

// SetError shows a submission error and re-opens the form so the user
// can correct and retry.
func (m *Model) SetError(message string) tea.Cmd {
	m.errMessage = message
	if m.signUpMode {
		m.form = m.buildSignUpForm()
	} else {
		m.form = m.buildLogInForm()
	}
	return m.form.Init()
}

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the login form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "Log in"
	if m.signUpMode {
		titleText = "Create account"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText)
	if m.errMessage != "" {
		content += "\n" + theme.ErrorStyle.Render(m.errMessage)
	}
	content += "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildLogInForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(validateRequired("Email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("No account yet?").
				Affirmative("Sign up instead").
				Negative("Log in").
				Value(&m.fb.signUp),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) buildSignUpForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(validateRequired("Email")),
			huh.NewInput().
				Title("Username").
				Value(&m.fb.username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("Password")),
			huh.NewInput().
				Title("Full name").
				Value(&m.fb.fullName),
			huh.NewInput().
				Title("Phone").
				Placeholder("optional").
				Value(&m.fb.phone),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	if !m.signUpMode && m.fb.signUp {
		// The user flipped the confirm toggle to switch modes rather
		// than submit credentials.
		m.fb.signUp = false
		return func() tea.Msg { return switchToSignUpMsg{} }
	}

	if m.signUpMode {
		req := api.SignUpRequest{
			Email:    strings.TrimSpace(m.fb.email),
			Username: strings.TrimSpace(m.fb.username),
			Password: m.fb.password,
			FullName: strings.TrimSpace(m.fb.fullName),
			Phone:    strings.TrimSpace(m.fb.phone),
		}
		return func() tea.Msg { return SignUpSubmittedMsg{Request: req} }
	}

	email := strings.TrimSpace(m.fb.email)
	password := m.fb.password
	return func() tea.Msg {
		return LogInSubmittedMsg{Email: email, Password: password}
	}
}

// switchToSignUpMsg is internal: it flips the form into sign-up mode.
type switchToSignUpMsg struct{}

// HandleInternal processes messages private to this component. It
// returns true when the message was consumed.
func (m *Model) HandleInternal(msg tea.Msg) (tea.Cmd, bool) {
	if _, ok := msg.(switchToSignUpMsg); ok {
		return m.StartSignUp(), true
	}
	return nil, false
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

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
