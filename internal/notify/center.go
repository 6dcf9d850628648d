// Package notify owns the canonical notification state: the last-known
// server snapshot, an optimistic read-overlay, the derived unread count,
// and the fetch throttle/retry machinery that keeps it synchronized
// with the backend.
package notify

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/retry"
)

// State is the synchronization phase of the notification center.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateRefreshing
	StateError
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRefreshing:
		return "refreshing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// API is the backend surface the center consumes.
type API interface {
	ListNotifications(ctx context.Context, recipient string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, recipient string) error
}

// Clock supplies the current time. Tests substitute a fake.
type Clock func() time.Time

// Cue plays an audible signal for newly arrived unread notifications.
type Cue func(urgent bool)

// Snapshot is an immutable view of the center's state: the merged
// notification list (server snapshot plus local read-overlay), the
// unread count recomputed from it, and the current phase and error slot.
type Snapshot struct {
	Notifications []model.Notification
	UnreadCount   int
	State         State
	ErrMessage    string
	ErrClass      api.Class
	LastFetch     time.Time
}

// ChangedMsg is a tea.Msg emitted after every state transition.
type ChangedMsg struct {
	Snapshot Snapshot
}

const (
	// minFetchInterval is the throttle window between non-forced fetches.
	minFetchInterval = 30 * time.Second

	// maxRetries bounds the automatic refetch attempts after a failure.
	maxRetries = 3

	// retryBaseDelay is the first retry delay; retries back off 5s, 10s, 20s.
	retryBaseDelay = 5 * time.Second

	fetchTimeout = 30 * time.Second
)

// Center is the notification synchronization state machine. All state
// lives behind one mutex; fetches and backend mutations run in
// goroutines and report back through it.
type Center struct {
	backend API
	log     zerolog.Logger
	clock   Clock
	cue     Cue
	sleep   retry.Sleeper

	minInterval time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	changeCh chan ChangedMsg

	mu sync.Mutex
	// server is the last-known server snapshot in fetch order.
	server []model.Notification
	// pendingRead overlays optimistic per-id mark-read mutations onto
	// the server snapshot until the next successful full fetch. The
	// server wins afterwards: pending flips are dropped, not re-pushed.
	pendingRead map[string]time.Time
	// pendingAllAt is set by an optimistic mark-all-read and applied to
	// every entry still unread after the per-id overlay.
	pendingAllAt *time.Time

	state      State
	errMessage string
	errClass   api.Class
	lastFetch  time.Time
	fetched    bool
	inflight   map[string]bool
	retryCount int
}

// Option customizes a Center.
type Option func(*Center)

// WithClock substitutes the time source.
func WithClock(c Clock) Option {
	return func(n *Center) {
		n.clock = c
	}
}

// WithCue installs the audible-cue hook.
func WithCue(c Cue) Option {
	return func(n *Center) {
		n.cue = c
	}
}

// WithSleeper substitutes the retry wait implementation.
func WithSleeper(s retry.Sleeper) Option {
	return func(n *Center) {
		n.sleep = s
	}
}

// WithMinInterval overrides the fetch throttle window.
func WithMinInterval(d time.Duration) Option {
	return func(n *Center) {
		if d > 0 {
			n.minInterval = d
		}
	}
}

// New creates a Center over the given backend.
func New(backend API, log zerolog.Logger, opts ...Option) *Center {
	ctx, cancel := context.WithCancel(context.Background())

	n := &Center{
		backend:     backend,
		log:         log.With().Str("component", "notify").Logger(),
		clock:       time.Now,
		cue:         func(bool) {},
		minInterval: minFetchInterval,
		ctx:         ctx,
		cancel:      cancel,
		changeCh:    make(chan ChangedMsg, 16),
		pendingRead: make(map[string]time.Time),
		inflight:    make(map[string]bool),
	}
	n.sleep = func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Close tears the center down. Pending retry timers and in-flight fetch
// completions observe the cancellation and never mutate state afterwards.
func (n *Center) Close() {
	n.cancel()
}

// Snapshot returns the current merged view.
func (n *Center) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked()
}

// WaitForChange returns a tea.Cmd that delivers the next ChangedMsg.
// Call it again after handling each message to keep listening.
func (n *Center) WaitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-n.ctx.Done():
			return nil
		case msg := <-n.changeCh:
			return msg
		}
	}
}

// Load requests a fetch of recipient's notifications. It is a no-op
// when a fetch for that recipient is already in flight, or when the
// throttle window since the last successful fetch has not elapsed and
// force is false. A forced load bypasses the throttle but never the
// in-flight gate.
func (n *Center) Load(recipient string, force bool) {
	n.mu.Lock()

	if n.inflight[recipient] {
		n.mu.Unlock()
		return
	}
	if !force && n.fetched && n.clock().Sub(n.lastFetch) < n.minInterval {
		n.mu.Unlock()
		return
	}

	n.inflight[recipient] = true
	if n.fetched {
		n.state = StateRefreshing
	} else {
		n.state = StateLoading
	}
	n.emitLocked()
	n.mu.Unlock()

	go n.fetch(recipient)
}

// fetch performs one backend list call and applies the outcome.
func (n *Center) fetch(recipient string) {
	ctx, cancel := context.WithTimeout(n.ctx, fetchTimeout)
	defer cancel()

	fetched, err := n.backend.ListNotifications(ctx, recipient)

	// A torn-down center must not mutate state.
	if n.ctx.Err() != nil {
		return
	}

	if err != nil {
		n.applyFailure(recipient, err)
		return
	}
	n.applySuccess(recipient, fetched)
}

// applySuccess replaces the server snapshot wholesale, drops the
// optimistic overlay, recomputes derived state, and fires the audible
// cue when the unread count rose.
func (n *Center) applySuccess(recipient string, fetched []model.Notification) {
	n.mu.Lock()

	prevMerged := n.mergedLocked()
	prevUnread := model.UnreadCount(prevMerged)
	prevUnreadIDs := make(map[string]bool, len(prevMerged))
	for _, m := range prevMerged {
		if !m.Read {
			prevUnreadIDs[m.ID] = true
		}
	}

	n.server = fetched
	n.pendingRead = make(map[string]time.Time)
	n.pendingAllAt = nil
	n.state = StateIdle
	n.errMessage = ""
	n.errClass = ""
	n.lastFetch = n.clock()
	n.fetched = true
	n.retryCount = 0
	delete(n.inflight, recipient)

	newUnread := model.UnreadCount(fetched)
	urgent := false
	if newUnread > prevUnread {
		for _, m := range fetched {
			if !m.Read && !prevUnreadIDs[m.ID] && m.Priority == model.PriorityUrgent {
				urgent = true
				break
			}
		}
	}

	n.emitLocked()
	n.mu.Unlock()

	if newUnread > prevUnread {
		n.cue(urgent)
	}
}

// applyFailure records the classified error and schedules a forced
// refetch with exponential backoff while the retry budget lasts.
func (n *Center) applyFailure(recipient string, err error) {
	class := api.ClassOf(err)

	n.mu.Lock()
	n.state = StateError
	n.errMessage = api.UserMessage(err)
	n.errClass = class
	delete(n.inflight, recipient)

	scheduleRetry := api.IsRetryable(err) && n.retryCount < maxRetries
	var delay time.Duration
	if scheduleRetry {
		n.retryCount++
		delay = retry.Delay(retryBaseDelay, n.retryCount)
	}
	n.emitLocked()
	n.mu.Unlock()

	n.log.Warn().
		Err(err).
		Str("recipient", recipient).
		Str("class", string(class)).
		Bool("retry_scheduled", scheduleRetry).
		Msg("notification fetch failed")

	if !scheduleRetry {
		return
	}

	go func() {
		if n.sleep(n.ctx, delay) != nil {
			return
		}
		n.Load(recipient, true)
	}()
}

// MarkAsRead optimistically flips the matching entry to read and stamps
// its read time immediately. The backend call is best-effort: its
// failure is logged but never rolls the local mutation back.
func (n *Center) MarkAsRead(id string) {
	n.mu.Lock()

	found := false
	for i := range n.server {
		if n.server[i].ID == id {
			found = true
			break
		}
	}
	if !found {
		n.mu.Unlock()
		return
	}

	if _, ok := n.pendingRead[id]; !ok {
		n.pendingRead[id] = n.clock()
	}
	n.emitLocked()
	n.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(n.ctx, fetchTimeout)
		defer cancel()
		if err := n.backend.MarkNotificationRead(ctx, id); err != nil {
			n.log.Warn().Err(err).Str("id", id).Msg("mark-read not confirmed by backend")
		}
	}()
}

// MarkAllAsRead optimistically flips every entry to read, preserving
// pre-existing read times, and zeroes the unread count. Applying it
// twice yields the same state as applying it once.
func (n *Center) MarkAllAsRead(recipient string) {
	n.mu.Lock()

	if n.pendingAllAt == nil {
		now := n.clock()
		n.pendingAllAt = &now
	}
	n.emitLocked()
	n.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(n.ctx, fetchTimeout)
		defer cancel()
		if err := n.backend.MarkAllNotificationsRead(ctx, recipient); err != nil {
			n.log.Warn().
				Err(err).
				Str("recipient", recipient).
				Msg("mark-all-read not confirmed by backend")
		}
	}()
}

// mergedLocked applies the optimistic overlay to the server snapshot.
func (n *Center) mergedLocked() []model.Notification {
	merged := make([]model.Notification, len(n.server))
	copy(merged, n.server)

	for i := range merged {
		if at, ok := n.pendingRead[merged[i].ID]; ok {
			merged[i].MarkRead(at)
		}
		if n.pendingAllAt != nil {
			merged[i].MarkRead(*n.pendingAllAt)
		}
	}

	return merged
}

// snapshotLocked builds the UI view, recomputing the unread count from
// the merged collection.
func (n *Center) snapshotLocked() Snapshot {
	merged := n.mergedLocked()
	return Snapshot{
		Notifications: merged,
		UnreadCount:   model.UnreadCount(merged),
		State:         n.state,
		ErrMessage:    n.errMessage,
		ErrClass:      n.errClass,
		LastFetch:     n.lastFetch,
	}
}

// emitLocked publishes the current snapshot without blocking.
func (n *Center) emitLocked() {
	msg := ChangedMsg{Snapshot: n.snapshotLocked()}
	select {
	case n.changeCh <- msg:
	default:
		// Drop if the UI is behind; it will pick up the next change.
	}
}
