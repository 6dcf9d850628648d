package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/model"
)

// fakeBackend is a scriptable API stub. Each call to ListNotifications
// pops the next queued response.
type fakeBackend struct {
	mu sync.Mutex

	responses []listResponse
	listCalls int

	// release, when non-nil, blocks ListNotifications until closed.
	release chan struct{}

	markReadIDs  []string
	markAllCalls int
	markReadErr  error
	markAllErr   error
}

type listResponse struct {
	notifications []model.Notification
	err           error
}

func (f *fakeBackend) ListNotifications(ctx context.Context, recipient string) ([]model.Notification, error) {
	f.mu.Lock()
	f.listCalls++
	release := f.release
	var resp listResponse
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return resp.notifications, resp.err
}

func (f *fakeBackend) MarkNotificationRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadIDs = append(f.markReadIDs, id)
	return f.markReadErr
}

func (f *fakeBackend) MarkAllNotificationsRead(ctx context.Context, recipient string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllCalls++
	return f.markAllErr
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func notification(id string, read bool, priority model.NotificationPriority) model.Notification {
	n := model.Notification{
		ID:        id,
		Recipient: "u1",
		Type:      model.NotificationGeneral,
		Message:   "message " + id,
		Priority:  priority,
		Read:      read,
		CreatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	if read {
		at := n.CreatedAt.Add(time.Minute)
		n.ReadAt = &at
	}
	return n
}

func newTestCenter(t *testing.T, backend API, opts ...Option) (*Center, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{
		WithClock(clock.Now),
		WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	}, opts...)

	c := New(backend, zerolog.Nop(), opts...)
	t.Cleanup(c.Close)
	return c, clock
}

func waitForState(t *testing.T, c *Center, want State) Snapshot {
	t.Helper()

	require.Eventually(t, func() bool {
		return c.Snapshot().State == want
	}, 2*time.Second, 5*time.Millisecond, "waiting for state %v", want)

	return c.Snapshot()
}

func TestLoadEmptyCollection(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{{notifications: []model.Notification{}}}}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)

	snap := waitForState(t, c, StateIdle)
	assert.Empty(t, snap.Notifications)
	assert.Zero(t, snap.UnreadCount)
	assert.Empty(t, snap.ErrMessage)
}

func TestLoadReplacesCollectionAndRecomputesUnread(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{{notifications: []model.Notification{
		notification("n1", false, model.PriorityNormal),
		notification("n2", true, model.PriorityLow),
		notification("n3", false, model.PriorityHigh),
	}}}}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)

	snap := waitForState(t, c, StateIdle)
	assert.Len(t, snap.Notifications, 3)
	assert.Equal(t, 2, snap.UnreadCount)
	assert.False(t, snap.LastFetch.IsZero())
}

func TestThrottleWindowBlocksNonForcedLoad(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{
		{notifications: nil},
		{notifications: nil},
	}}
	c, clock := newTestCenter(t, backend)

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	clock.Advance(10 * time.Second)
	c.Load("u1", false)

	// No second network call may be observed inside the window.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, backend.calls())

	clock.Advance(25 * time.Second)
	c.Load("u1", false)
	require.Eventually(t, func() bool {
		return backend.calls() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestForcedLoadBypassesThrottle(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{
		{notifications: nil},
		{notifications: nil},
	}}
	c, clock := newTestCenter(t, backend)

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	clock.Advance(time.Second)
	c.Load("u1", true)

	require.Eventually(t, func() bool {
		return backend.calls() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		release:   release,
		responses: []listResponse{{notifications: nil}, {notifications: nil}},
	}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)
	c.Load("u1", true)
	c.Load("u1", false)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, backend.calls(), "only one fetch may be in flight per recipient")

	close(release)
	waitForState(t, c, StateIdle)
}

func TestCueFiresOnceForNewUnread(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{{notifications: []model.Notification{
		notification("n1", true, model.PriorityNormal),
		notification("n2", false, model.PriorityUrgent),
	}}}}

	var mu sync.Mutex
	var cues []bool
	c, _ := newTestCenter(t, backend, WithCue(func(urgent bool) {
		mu.Lock()
		cues = append(cues, urgent)
		mu.Unlock()
	}))

	c.Load("u1", false)

	snap := waitForState(t, c, StateIdle)
	assert.Equal(t, 1, snap.UnreadCount)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(cues) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []bool{true}, cues, "urgent unread arrival fires the urgent cue exactly once")
	mu.Unlock()
}

func TestCueNormalWhenNoUrgentArrival(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{{notifications: []model.Notification{
		notification("n1", false, model.PriorityNormal),
	}}}}

	var mu sync.Mutex
	var cues []bool
	c, _ := newTestCenter(t, backend, WithCue(func(urgent bool) {
		mu.Lock()
		cues = append(cues, urgent)
		mu.Unlock()
	}))

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(cues) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []bool{false}, cues)
	mu.Unlock()
}

func TestCueSilentWhenUnreadDidNotRise(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{
		{notifications: []model.Notification{notification("n1", false, model.PriorityUrgent)}},
		{notifications: []model.Notification{notification("n1", false, model.PriorityUrgent)}},
	}}

	var mu sync.Mutex
	cueCount := 0
	c, clock := newTestCenter(t, backend, WithCue(func(bool) {
		mu.Lock()
		cueCount++
		mu.Unlock()
	}))

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	clock.Advance(time.Minute)
	c.Load("u1", false)
	require.Eventually(t, func() bool {
		return backend.calls() == 2
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, cueCount, "a refetch of the same unread set must not re-cue")
	mu.Unlock()
}

func TestFailureSchedulesBackoffRetries(t *testing.T) {
	transient := &api.Error{Class: api.ClassNetwork, Message: "timeout"}
	backend := &fakeBackend{responses: []listResponse{
		{err: transient},
		{err: transient},
		{notifications: []model.Notification{notification("n1", false, model.PriorityNormal)}},
	}}

	var mu sync.Mutex
	var delays []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}

	c, _ := newTestCenter(t, backend, WithSleeper(sleeper))
	c.Load("u1", false)

	snap := waitForState(t, c, StateIdle)
	assert.Equal(t, 1, snap.UnreadCount)
	assert.Equal(t, 3, backend.calls())

	mu.Lock()
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, delays)
	mu.Unlock()
}

func TestTerminalErrorClassIsNotRetried(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{
		{err: &api.Error{Class: api.ClassExhausted, Message: "too many requests"}},
	}}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)

	snap := waitForState(t, c, StateError)
	assert.Equal(t, api.ClassExhausted, snap.ErrClass)
	assert.NotEmpty(t, snap.ErrMessage)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, backend.calls())
}

func TestRetryBudgetExhausts(t *testing.T) {
	transient := &api.Error{Class: api.ClassNetwork, Message: "timeout"}
	backend := &fakeBackend{responses: []listResponse{
		{err: transient}, {err: transient}, {err: transient}, {err: transient},
	}}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)

	require.Eventually(t, func() bool {
		// Initial fetch plus three retries.
		return backend.calls() == 4
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, backend.calls(), "retry budget is three refetches")
	assert.Equal(t, StateError, c.Snapshot().State)
}

func TestSuccessfulFetchClearsErrorAndResetsRetries(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{
		{err: &api.Error{Class: api.ClassNetwork, Message: "timeout"}},
		{notifications: nil},
	}}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)

	snap := waitForState(t, c, StateIdle)
	assert.Empty(t, snap.ErrMessage)
	assert.Empty(t, string(snap.ErrClass))
}

func TestMarkAsReadIsImmediateAndOptimistic(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{
		{notifications: []model.Notification{
			notification("n1", false, model.PriorityNormal),
			notification("n2", false, model.PriorityNormal),
		}},
	}}
	c, clock := newTestCenter(t, backend)

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	// Slow the backend confirmation path down; the local flip must not
	// wait for it.
	backend.mu.Lock()
	backend.markReadErr = &api.Error{Class: api.ClassNetwork, Message: "timeout"}
	backend.mu.Unlock()

	markTime := clock.Now()
	c.MarkAsRead("n1")

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount)
	for _, n := range snap.Notifications {
		if n.ID == "n1" {
			assert.True(t, n.Read)
			require.NotNil(t, n.ReadAt)
			assert.Equal(t, markTime, *n.ReadAt)
		}
	}

	// The backend call is still attempted, and its failure never rolls
	// the local state back.
	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.markReadIDs) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, c.Snapshot().UnreadCount)
}

func TestMarkAsReadUnknownIDIsNoOp(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{
		{notifications: []model.Notification{notification("n1", false, model.PriorityNormal)}},
	}}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	c.MarkAsRead("ghost")

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount)

	time.Sleep(20 * time.Millisecond)
	backend.mu.Lock()
	assert.Empty(t, backend.markReadIDs)
	backend.mu.Unlock()
}

func TestMarkAllAsReadIsIdempotent(t *testing.T) {
	readAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	already := notification("n1", true, model.PriorityLow)
	already.ReadAt = &readAt

	backend := &fakeBackend{responses: []listResponse{
		{notifications: []model.Notification{
			already,
			notification("n2", false, model.PriorityNormal),
			notification("n3", false, model.PriorityUrgent),
		}},
	}}
	c, clock := newTestCenter(t, backend)

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	c.MarkAllAsRead("u1")
	first := c.Snapshot()
	assert.Zero(t, first.UnreadCount)

	clock.Advance(time.Minute)
	c.MarkAllAsRead("u1")
	second := c.Snapshot()

	assert.Equal(t, first.Notifications, second.Notifications,
		"applying mark-all twice must equal applying it once")

	for _, n := range second.Notifications {
		assert.True(t, n.Read)
		require.NotNil(t, n.ReadAt)
	}

	// Pre-existing read timestamps are preserved.
	assert.Equal(t, readAt, *second.Notifications[0].ReadAt)
}

func TestOverlayDroppedOnNextFullFetch(t *testing.T) {
	stillUnread := notification("n1", false, model.PriorityNormal)
	backend := &fakeBackend{responses: []listResponse{
		{notifications: []model.Notification{stillUnread}},
		{notifications: []model.Notification{stillUnread}},
	}}
	c, clock := newTestCenter(t, backend)

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	c.MarkAsRead("n1")
	assert.Zero(t, c.Snapshot().UnreadCount)

	// The server still reports n1 unread; after the next full fetch the
	// server snapshot wins and the optimistic flip is dropped.
	clock.Advance(time.Minute)
	c.Load("u1", false)
	require.Eventually(t, func() bool {
		return backend.calls() == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return c.Snapshot().UnreadCount == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUnreadCountAlwaysMatchesCollection(t *testing.T) {
	backend := &fakeBackend{responses: []listResponse{
		{notifications: []model.Notification{
			notification("n1", false, model.PriorityNormal),
			notification("n2", false, model.PriorityHigh),
			notification("n3", true, model.PriorityLow),
		}},
	}}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)
	waitForState(t, c, StateIdle)

	check := func() {
		snap := c.Snapshot()
		assert.Equal(t, model.UnreadCount(snap.Notifications), snap.UnreadCount)
	}

	check()
	c.MarkAsRead("n1")
	check()
	c.MarkAllAsRead("u1")
	check()
}

func TestCloseStopsRetriesAndLateCompletions(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		release: release,
		responses: []listResponse{
			{notifications: []model.Notification{notification("n1", false, model.PriorityNormal)}},
		},
	}
	c, _ := newTestCenter(t, backend)

	c.Load("u1", false)
	time.Sleep(10 * time.Millisecond)
	c.Close()
	close(release)

	// The in-flight completion observes the teardown and must not
	// mutate state.
	time.Sleep(20 * time.Millisecond)
	snap := c.Snapshot()
	assert.Empty(t, snap.Notifications)
	assert.NotEqual(t, StateIdle, snap.State)
}
