package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/model"
)

type fakeAuthAPI struct {
	mu          sync.Mutex
	user        *model.User
	currentErr  error
	loginResult *api.AuthResult
	loginErr    error

	currentCalls int
	logoutCalls  int
	tokensSet    []string
}

func (f *fakeAuthAPI) SignUp(ctx context.Context, req api.SignUpRequest) (*api.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginResult, f.loginErr
}

func (f *fakeAuthAPI) LogIn(ctx context.Context, email, password string) (*api.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginResult, f.loginErr
}

func (f *fakeAuthAPI) LogOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return nil
}

func (f *fakeAuthAPI) CurrentUser(ctx context.Context) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentCalls++
	return f.user, f.currentErr
}

func (f *fakeAuthAPI) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensSet = append(f.tokensSet, token)
}

type memTokenStore struct {
	mu      sync.Mutex
	token   string
	saved   []string
	deletes int
	getErr  error
}

func (m *memTokenStore) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.getErr
}

func (m *memTokenStore) SaveToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.saved = append(m.saved, token)
	return nil
}

func (m *memTokenStore) DeleteToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.deletes++
	return nil
}

type fakeProvider struct {
	token string
	err   error
	calls int
}

func (f *fakeProvider) CurrentSession(ctx context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

// signedToken builds a real HS256 token whose expiry is now+offset.
func signedToken(t *testing.T, offset time.Duration) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(offset).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestStartClearsExpiredTokenWithoutNetworkCall(t *testing.T) {
	backend := &fakeAuthAPI{}
	tokens := &memTokenStore{token: signedToken(t, -time.Hour)}

	m := New(backend, tokens, nil, zerolog.Nop())
	msg := m.Start()()

	changed, ok := msg.(ChangedMsg)
	require.True(t, ok)
	assert.False(t, changed.Snapshot.Authenticated)
	assert.Zero(t, backend.currentCalls, "an expired token must not reach the network")
	assert.Equal(t, 1, tokens.deletes)
}

func TestStartRevalidatesValidToken(t *testing.T) {
	user := &model.User{ID: "u1", Email: "rider@example.com", Role: "user"}
	backend := &fakeAuthAPI{user: user}
	tokens := &memTokenStore{token: signedToken(t, time.Hour)}

	m := New(backend, tokens, nil, zerolog.Nop())
	msg := m.Start()()

	changed := msg.(ChangedMsg)
	assert.True(t, changed.Snapshot.Authenticated)
	require.NotNil(t, changed.Snapshot.User)
	assert.Equal(t, "u1", changed.Snapshot.User.ID)
	assert.Equal(t, 1, backend.currentCalls)
}

func TestStartTreatsGarbageTokenAsExpired(t *testing.T) {
	backend := &fakeAuthAPI{}
	tokens := &memTokenStore{token: "not-a-jwt"}

	m := New(backend, tokens, nil, zerolog.Nop())
	msg := m.Start()()

	changed := msg.(ChangedMsg)
	assert.False(t, changed.Snapshot.Authenticated)
	assert.Zero(t, backend.currentCalls)
}

func TestStartAdoptsProviderSessionWhenNoLocalToken(t *testing.T) {
	user := &model.User{ID: "u1"}
	backend := &fakeAuthAPI{user: user}
	tokens := &memTokenStore{}
	provider := &fakeProvider{token: signedToken(t, time.Hour)}

	m := New(backend, tokens, provider, zerolog.Nop())
	msg := m.Start()()

	changed := msg.(ChangedMsg)
	assert.Equal(t, 1, provider.calls)
	assert.True(t, changed.Snapshot.Authenticated)
}

func TestRevalidateAuthFailureClearsSession(t *testing.T) {
	backend := &fakeAuthAPI{
		currentErr: &api.Error{Class: api.ClassAuth, StatusCode: 401, Message: "token revoked"},
	}
	tokens := &memTokenStore{token: signedToken(t, time.Hour)}

	m := New(backend, tokens, nil, zerolog.Nop())
	m.Start()()

	assert.False(t, m.Snapshot().Authenticated)
	assert.Empty(t, m.Token())
	assert.GreaterOrEqual(t, tokens.deletes, 1)
}

func TestRevalidateAmbiguousFailureKeepsSession(t *testing.T) {
	user := &model.User{ID: "u1"}
	backend := &fakeAuthAPI{user: user}
	tokens := &memTokenStore{token: signedToken(t, time.Hour)}

	m := New(backend, tokens, nil, zerolog.Nop())
	m.Start()()
	require.True(t, m.Snapshot().Authenticated)

	backend.currentErr = &api.Error{Class: api.ClassNetwork, Message: "timeout"}
	backend.user = nil
	m.Revalidate()()

	assert.True(t, m.Snapshot().Authenticated, "transient failures must not log the user out")
	assert.NotEmpty(t, m.Token())
}

func TestRevalidateIsNoOpWhileSignedOut(t *testing.T) {
	backend := &fakeAuthAPI{}
	m := New(backend, &memTokenStore{}, nil, zerolog.Nop())

	msg := m.Revalidate()()
	assert.Nil(t, msg)
	assert.Zero(t, backend.currentCalls)
}

func TestLogInInstallsAndPersistsToken(t *testing.T) {
	token := signedToken(t, time.Hour)
	backend := &fakeAuthAPI{
		loginResult: &api.AuthResult{
			Token: token,
			User:  model.User{ID: "u1", Email: "rider@example.com"},
		},
	}
	tokens := &memTokenStore{}

	m := New(backend, tokens, nil, zerolog.Nop())
	msg := m.LogIn("rider@example.com", "hunter2")()

	changed := msg.(ChangedMsg)
	assert.True(t, changed.Snapshot.Authenticated)
	assert.Equal(t, []string{token}, tokens.saved)
	assert.Contains(t, backend.tokensSet, token)
}

func TestLogInFailureStoresMessage(t *testing.T) {
	backend := &fakeAuthAPI{loginErr: errors.New("wrong password")}
	m := New(backend, &memTokenStore{}, nil, zerolog.Nop())

	msg := m.LogIn("rider@example.com", "nope")()

	changed := msg.(ChangedMsg)
	assert.False(t, changed.Snapshot.Authenticated)
	assert.NotEmpty(t, changed.Snapshot.ErrMessage)
}

func TestConcurrentRevalidateAndLogIn(t *testing.T) {
	// Bubble Tea runs every command on its own goroutine, so the
	// periodic revalidation can overlap a user-triggered login.
	token := signedToken(t, time.Hour)
	user := model.User{ID: "u1", Username: "rider"}
	backend := &fakeAuthAPI{
		user:        &user,
		loginResult: &api.AuthResult{Token: token, User: user},
	}
	tokens := &memTokenStore{}

	m := New(backend, tokens, nil, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			m.LogIn("rider@example.com", "hunter2")()
		}()
		go func() {
			defer wg.Done()
			m.Revalidate()()
		}()
		go func() {
			defer wg.Done()
			_ = m.Snapshot()
			_ = m.Token()
		}()
	}
	wg.Wait()

	assert.True(t, m.Snapshot().Authenticated)
	assert.Equal(t, token, m.Token())
}

func TestLogOutClearsLocalStateEvenIfBackendFails(t *testing.T) {
	token := signedToken(t, time.Hour)
	backend := &fakeAuthAPI{user: &model.User{ID: "u1"}}
	tokens := &memTokenStore{token: token}

	m := New(backend, tokens, nil, zerolog.Nop())
	m.Start()()
	require.True(t, m.Snapshot().Authenticated)

	m.LogOut()()

	assert.False(t, m.Snapshot().Authenticated)
	assert.Empty(t, tokens.token)
	assert.Equal(t, 1, backend.logoutCalls)
}
