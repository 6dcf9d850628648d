package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/authprovider"
	"github.com/dnguyen/buswatch/internal/busfeed"
	"github.com/dnguyen/buswatch/internal/keys"
	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/notify"
	"github.com/dnguyen/buswatch/internal/session"
	"github.com/dnguyen/buswatch/internal/ui"
	"github.com/dnguyen/buswatch/internal/ui/bookingform"
	"github.com/dnguyen/buswatch/internal/ui/buslist"
	"github.com/dnguyen/buswatch/internal/ui/feedbackform"
	"github.com/dnguyen/buswatch/internal/ui/helpview"
	"github.com/dnguyen/buswatch/internal/ui/loginform"
	"github.com/dnguyen/buswatch/internal/ui/notifications"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewBuses ViewState = iota
	ViewNotifications
	ViewBooking
	ViewFeedback
	ViewLogin
	ViewHelp
)

// etaTickMsg drives the periodic ETA refresh.
type etaTickMsg struct{}

// revalidateTickMsg drives the periodic session revalidation.
type revalidateTickMsg struct{}

// Deps are the long-lived collaborators the root model routes between.
// Provider may be nil when no hosted auth provider is configured.
type Deps struct {
	Config   *model.AppConfig
	API      *api.Client
	Session  *session.Manager
	Center   *notify.Center
	Feed     *busfeed.Feed
	Provider *authprovider.Client
	Log      zerolog.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout,
// and the background sync state owners.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	deps         Deps
	keys         *keys.KeyMap

	busList      buslist.Model
	notifView    notifications.Model
	bookingForm  bookingform.Model
	feedbackForm feedbackform.Model
	loginForm    loginform.Model
	helpView     helpview.Model

	ready      bool
	sess       session.Snapshot
	unread     int
	status     string
	promo      string
	discountCh <-chan authprovider.ChangeEvent

	rtCtx    context.Context
	rtCancel context.CancelFunc
}

// New creates the root application model.
func New(deps Deps) Model {
	k := keys.DefaultKeyMap()
	rtCtx, rtCancel := context.WithCancel(context.Background())

	notifView := notifications.New(deps.Center, k, 80, 24)
	if deps.Config.Sync.RecipientOverride != "" {
		notifView.SetRecipient(deps.Config.Sync.RecipientOverride)
	}

	return Model{
		currentView:  ViewBuses,
		deps:         deps,
		keys:         k,
		busList:      buslist.New(deps.Feed, k, 80, 24),
		notifView:    notifView,
		bookingForm:  bookingform.New(80, 24),
		feedbackForm: feedbackform.New(80, 24),
		loginForm:    loginform.New(80, 24),
		helpView:     helpview.New(k, 80, 24),
		rtCtx:        rtCtx,
		rtCancel:     rtCancel,
	}
}

// Init loads the fleet, restores the session, and starts the
// background tickers.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.busList.Init(),
		m.deps.Session.Start(),
		m.deps.Center.WaitForChange(),
		m.etaTick(),
		m.revalidateTick(),
	}
	if m.deps.Provider != nil {
		cmds = append(cmds, m.subscribeDiscounts())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w := m.layout.ContentWidth()
		h := m.layout.ContentHeight()
		m.busList.SetSize(w, h)
		m.notifView.SetSize(w, h)
		m.bookingForm.SetSize(w, h)
		m.feedbackForm.SetSize(w, h)
		m.loginForm.SetSize(w, h)
		m.helpView.SetSize(w, h)
		// Forward to the active view so huh forms can lay out.
		return m.updateActiveView(msg)

	case tea.FocusMsg:
		// Terminal regained focus: revalidate the session and let the
		// notification center decide whether its data is stale enough
		// to refetch.
		cmds := []tea.Cmd{m.deps.Session.Revalidate()}
		if r := m.recipient(); r != "" {
			m.deps.Center.Load(r, false)
		}
		return m, tea.Batch(cmds...)

	case etaTickMsg:
		return m, tea.Batch(m.deps.Feed.Refresh(), m.etaTick())

	case revalidateTickMsg:
		return m, tea.Batch(m.deps.Session.Revalidate(), m.revalidateTick())

	case session.ChangedMsg:
		return m.handleSessionChange(msg)

	case notify.ChangedMsg:
		m.unread = msg.Snapshot.UnreadCount
		var cmd tea.Cmd
		m.notifView, cmd = m.notifView.Update(msg)
		return m, tea.Batch(cmd, m.deps.Center.WaitForChange())

	case busfeed.UpdatedMsg:
		var cmd tea.Cmd
		m.busList, cmd = m.busList.Update(msg)
		return m, cmd

	case buslist.BookRequestedMsg:
		return m.startBooking()

	case bookingform.BookingSubmittedMsg:
		m.currentView = ViewBuses
		m.status = "Booking seat…"
		return m, m.submitBooking(msg.Request)

	case bookingform.BookingCancelMsg:
		m.currentView = ViewBuses
		return m, nil

	case bookingResultMsg:
		m.status = msg.status
		return m, nil

	case feedbackform.FeedbackSubmittedMsg:
		m.currentView = ViewBuses
		m.status = "Sending feedback…"
		return m, m.submitFeedback(msg.Feedback)

	case feedbackform.FeedbackCancelMsg:
		m.currentView = ViewBuses
		return m, nil

	case feedbackResultMsg:
		m.status = msg.status
		return m, nil

	case loginform.LogInSubmittedMsg:
		return m, m.deps.Session.LogIn(msg.Email, msg.Password)

	case loginform.SignUpSubmittedMsg:
		return m, m.deps.Session.SignUp(msg.Request)

	case loginform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case discountSubscribedMsg:
		m.discountCh = msg.events
		return m, m.waitDiscount()

	case discountMsg:
		m.promo = msg.text
		return m, m.waitDiscount()

	case discountClosedMsg:
		m.discountCh = nil
		return m, nil

	case tea.KeyMsg:
		if handled, mdl, cmd := m.handleGlobalKey(msg); handled {
			return mdl, cmd
		}
	}

	if cmd, ok := m.loginForm.HandleInternal(msg); ok {
		return m, cmd
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that apply regardless of the active
// view. Form views keep full keyboard focus except for ctrl+c.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return true, m, m.quit()
	}

	// Forms own the keyboard.
	if m.currentView == ViewBooking || m.currentView == ViewFeedback || m.currentView == ViewLogin {
		return false, m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return true, m, m.quit()

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return true, m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return true, m, nil

	case key.Matches(msg, m.keys.Back):
		if m.currentView != ViewBuses {
			m.currentView = ViewBuses
			return true, m, nil
		}

	case key.Matches(msg, m.keys.Buses):
		m.currentView = ViewBuses
		return true, m, nil

	case key.Matches(msg, m.keys.Notifications):
		m.previousView = m.currentView
		m.currentView = ViewNotifications
		if r := m.recipient(); r != "" {
			m.deps.Center.Load(r, false)
		}
		return true, m, nil

	case key.Matches(msg, m.keys.Feedback):
		return m.startFeedbackKey()

	case key.Matches(msg, m.keys.Login):
		if !m.sess.Authenticated {
			m.previousView = m.currentView
			m.currentView = ViewLogin
			return true, m, m.loginForm.StartLogIn()
		}

	case key.Matches(msg, m.keys.Logout):
		if m.sess.Authenticated {
			return true, m, m.deps.Session.LogOut()
		}
	}

	return false, m, nil
}

// handleSessionChange reacts to login, logout, and revalidation.
func (m Model) handleSessionChange(msg session.ChangedMsg) (tea.Model, tea.Cmd) {
	wasAuthed := m.sess.Authenticated
	m.sess = msg.Snapshot

	if m.sess.Authenticated {
		m.notifView.SetRecipient(m.sess.User.ID)
		if m.currentView == ViewLogin {
			m.currentView = m.previousView
			m.status = fmt.Sprintf("Signed in as %s", m.sess.User.Username)
		}
		return m, nil
	}

	m.notifView.SetRecipient(m.deps.Config.Sync.RecipientOverride)
	if m.currentView == ViewLogin && m.sess.ErrMessage != "" {
		return m, m.loginForm.SetError(m.sess.ErrMessage)
	}
	if wasAuthed {
		m.status = "Signed out."
	}
	return m, nil
}

// startBooking opens the booking form, or the login form when signed out.
func (m Model) startBooking() (tea.Model, tea.Cmd) {
	bus := m.deps.Feed.CurrentBus()
	if bus == nil {
		return m, nil
	}

	if !m.sess.Authenticated {
		m.status = "Log in to book a seat."
		m.previousView = m.currentView
		m.currentView = ViewLogin
		return m, m.loginForm.StartLogIn()
	}

	m.previousView = m.currentView
	m.currentView = ViewBooking
	return m, m.bookingForm.Start(*bus, m.sess.User.ID)
}

// startFeedbackKey opens the feedback form for the selected bus.
func (m Model) startFeedbackKey() (bool, tea.Model, tea.Cmd) {
	if m.currentView != ViewBuses {
		return false, m, nil
	}
	bus := m.deps.Feed.CurrentBus()
	if bus == nil {
		return true, m, nil
	}
	if !m.sess.Authenticated {
		m.status = "Log in to leave feedback."
		m.previousView = m.currentView
		m.currentView = ViewLogin
		return true, m, m.loginForm.StartLogIn()
	}
	m.previousView = m.currentView
	m.currentView = ViewFeedback
	return true, m, m.feedbackForm.Start(*bus, m.sess.User.ID)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewBuses:
		m.busList, cmd = m.busList.Update(msg)
	case ViewNotifications:
		m.notifView, cmd = m.notifView.Update(msg)
	case ViewBooking:
		m.bookingForm, cmd = m.bookingForm.Update(msg)
	case ViewFeedback:
		m.feedbackForm, cmd = m.feedbackForm.Update(msg)
	case ViewLogin:
		m.loginForm, cmd = m.loginForm.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// recipient is the notification recipient to watch: the signed-in
// user, or the configured override while signed out.
func (m Model) recipient() string {
	if m.sess.User != nil {
		return m.sess.User.ID
	}
	return m.deps.Config.Sync.RecipientOverride
}

// quit stops the background owners and exits.
func (m Model) quit() tea.Cmd {
	m.rtCancel()
	m.deps.Center.Close()
	return tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Buswatch", m.headerStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// headerStatus is the right-hand header segment: promo banner, unread
// badge, and session identity.
func (m Model) headerStatus() string {
	out := ""
	if m.promo != "" {
		out += m.promo + "  "
	}
	if m.unread > 0 {
		out += fmt.Sprintf("[%d unread]  ", m.unread)
	}
	if m.sess.Authenticated {
		out += m.sess.User.Username
	} else {
		out += "signed out"
	}
	return out
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewBuses:
		return m.busList.View()
	case ViewNotifications:
		return m.notifView.View()
	case ViewBooking:
		return m.bookingForm.View()
	case ViewFeedback:
		return m.feedbackForm.View()
	case ViewLogin:
		return m.loginForm.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar. A
// transient status message takes precedence when present.
func (m Model) keyHints() string {
	if m.status != "" {
		return m.status
	}

	switch m.currentView {
	case ViewNotifications:
		return "m mark read | M mark all | r refresh | esc back"
	case ViewBooking, ViewFeedback, ViewLogin:
		return "enter submit | esc cancel"
	case ViewHelp:
		return "? close help | esc back"
	default:
		return "q quit | ? help | enter select | b book | f feedback | 2 notifications | r refresh"
	}
}

// etaTick schedules the next ETA refresh per the configured cadence.
func (m Model) etaTick() tea.Cmd {
	interval := time.Duration(m.deps.Config.Sync.ETARefreshSec) * time.Second
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return etaTickMsg{}
	})
}

// revalidateTick schedules the next periodic session check.
func (m Model) revalidateTick() tea.Cmd {
	return tea.Tick(session.RevalidateInterval, func(time.Time) tea.Msg {
		return revalidateTickMsg{}
	})
}
