// Package session tracks the bearer token and the authenticated user
// projection derived from it.
package session

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/model"
)

// API is the backend auth surface the manager consumes. SetToken
// installs the bearer token used by subsequent calls.
type API interface {
	SignUp(ctx context.Context, req api.SignUpRequest) (*api.AuthResult, error)
	LogIn(ctx context.Context, email, password string) (*api.AuthResult, error)
	LogOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (*model.User, error)
	SetToken(token string)
}

// TokenStore persists the bearer token between runs (system keyring in
// production).
type TokenStore interface {
	Token() (string, error)
	SaveToken(token string) error
	DeleteToken() error
}

// Provider is the hosted auth provider; the manager only consumes its
// current session token, used when no local token exists yet.
type Provider interface {
	CurrentSession(ctx context.Context) (string, error)
}

// Clock supplies the current time. Tests substitute a fake.
type Clock func() time.Time

// RevalidateInterval is how often an active session is re-confirmed
// against the backend. Terminal focus regained triggers an extra
// revalidation.
const RevalidateInterval = 5 * time.Minute

const callTimeout = 30 * time.Second

// Snapshot is the session view for rendering and gating.
type Snapshot struct {
	Authenticated bool
	User          *model.User
	ErrMessage    string
}

// ChangedMsg is a tea.Msg delivered when the session state changed.
type ChangedMsg struct {
	Snapshot Snapshot
}

// Manager owns the session lifecycle: adopting, validating, and
// clearing the bearer token. Its commands run on Bubble Tea's Cmd
// goroutines, so the periodic revalidation can overlap a user-triggered
// login or logout; mu guards the session fields.
type Manager struct {
	backend  API
	tokens   TokenStore
	provider Provider
	log      zerolog.Logger
	clock    Clock

	mu    sync.Mutex
	token string
	user  *model.User
	err   string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock substitutes the time source.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// New creates a session manager. provider may be nil when no hosted
// auth provider is configured.
func New(backend API, tokens TokenStore, provider Provider, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		backend:  backend,
		tokens:   tokens,
		provider: provider,
		log:      log.With().Str("component", "session").Logger(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Authenticated: m.user != nil,
		User:          m.user,
		ErrMessage:    m.err,
	}
}

// Token returns the current bearer token, empty when signed out.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Start restores a previous session: the local token if one is stored,
// otherwise whatever session the auth provider currently holds. A token
// that is already expired by local clock comparison is discarded
// without consulting the network.
func (m *Manager) Start() tea.Cmd {
	return func() tea.Msg {
		token, err := m.tokens.Token()
		if err != nil || token == "" {
			token = m.adoptProviderSession()
		}
		if token == "" {
			return ChangedMsg{Snapshot: m.Snapshot()}
		}

		if expiredLocally(token, m.clock()) {
			m.clear()
			return ChangedMsg{Snapshot: m.Snapshot()}
		}

		m.mu.Lock()
		m.token = token
		m.mu.Unlock()
		m.backend.SetToken(token)
		return m.revalidate()
	}
}

// Revalidate re-confirms the current user against the backend. It is a
// no-op while signed out.
func (m *Manager) Revalidate() tea.Cmd {
	return func() tea.Msg {
		token := m.Token()
		if token == "" {
			return nil
		}
		if expiredLocally(token, m.clock()) {
			m.clear()
			return ChangedMsg{Snapshot: m.Snapshot()}
		}
		return m.revalidate()
	}
}

// LogIn exchanges credentials for a session and persists the token.
func (m *Manager) LogIn(email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		result, err := m.backend.LogIn(ctx, email, password)
		if err != nil {
			m.setError(api.UserMessage(err))
			return ChangedMsg{Snapshot: m.Snapshot()}
		}

		m.install(result)
		return ChangedMsg{Snapshot: m.Snapshot()}
	}
}

// SignUp registers an account and signs in with the returned token.
func (m *Manager) SignUp(req api.SignUpRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		result, err := m.backend.SignUp(ctx, req)
		if err != nil {
			m.setError(api.UserMessage(err))
			return ChangedMsg{Snapshot: m.Snapshot()}
		}

		m.install(result)
		return ChangedMsg{Snapshot: m.Snapshot()}
	}
}

// LogOut clears the session locally and tells the backend best-effort.
func (m *Manager) LogOut() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		if err := m.backend.LogOut(ctx); err != nil {
			m.log.Warn().Err(err).Msg("backend logout failed")
		}
		m.clear()
		return ChangedMsg{Snapshot: m.Snapshot()}
	}
}

// revalidate asks the backend who the token belongs to. An
// authorization-shaped failure clears the session; any other failure
// leaves it intact (fail-open on ambiguous errors).
func (m *Manager) revalidate() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	user, err := m.backend.CurrentUser(ctx)
	if err != nil {
		if api.IsAuthError(err) {
			m.log.Info().Msg("session rejected by backend, signing out")
			m.clear()
		} else {
			m.log.Warn().Err(err).Msg("session revalidation inconclusive, keeping session")
		}
		return ChangedMsg{Snapshot: m.Snapshot()}
	}

	m.mu.Lock()
	m.user = user
	m.err = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()
	return ChangedMsg{Snapshot: snap}
}

// adoptProviderSession asks the auth provider for its current token.
func (m *Manager) adoptProviderSession() string {
	if m.provider == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	token, err := m.provider.CurrentSession(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("no provider session to adopt")
		return ""
	}
	return token
}

// setError records a user-facing failure message.
func (m *Manager) setError(message string) {
	m.mu.Lock()
	m.err = message
	m.mu.Unlock()
}

// install records a fresh auth result and persists its token.
func (m *Manager) install(result *api.AuthResult) {
	user := result.User

	m.mu.Lock()
	m.token = result.Token
	m.user = &user
	m.err = ""
	m.mu.Unlock()

	m.backend.SetToken(result.Token)

	if err := m.tokens.SaveToken(result.Token); err != nil {
		m.log.Warn().Err(err).Msg("persisting session token failed")
	}
}

// clear drops the session locally.
func (m *Manager) clear() {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()

	m.backend.SetToken("")

	if err := m.tokens.DeleteToken(); err != nil {
		m.log.Debug().Err(err).Msg("deleting stored token failed")
	}
}

// expiredLocally decodes the token's claim segment without verifying
// its signature and compares the expiry against now. A token that
// cannot be decoded counts as expired; one without an expiry claim is
// left for the backend to judge.
func expiredLocally(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now)
}
