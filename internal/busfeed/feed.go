// Package busfeed owns the vehicle list, per-bus ETA projections, and
// terminal reference data shown in the tracking view.
package busfeed

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/cache"
	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/retry"
)

// API is the backend surface the feed consumes.
type API interface {
	ListBuses(ctx context.Context) ([]model.Bus, error)
	ListBusETAs(ctx context.Context) ([]model.BusETA, error)
}

const (
	busCacheKey = "buses"
	etaCacheKey = "bus_etas"

	busCacheTTL = 5 * time.Minute
	etaCacheTTL = 15 * time.Second

	fetchTimeout = 30 * time.Second
)

// referenceTerminals seeds terminal data. There is no list endpoint for
// terminals yet; replace this once the backend grows one.
var referenceTerminals = []model.Terminal{
	{
		ID:       "terminal-north",
		Name:     "North Terminal",
		Location: model.Coordinate{Lat: 14.6760, Lng: 121.0437},
	},
	{
		ID:       "terminal-south",
		Name:     "South Terminal",
		Location: model.Coordinate{Lat: 14.5547, Lng: 121.0244},
	},
}

// placeholderBuses is shown instead of an empty screen when the fleet
// cannot be fetched.
var placeholderBuses = []model.Bus{
	{ID: "placeholder-1", Number: "— (sample)", Capacity: 40, Occupied: 0, Status: "unavailable"},
	{ID: "placeholder-2", Number: "— (sample)", Capacity: 40, Occupied: 0, Status: "unavailable"},
}

// placeholderETAs accompanies placeholderBuses.
var placeholderETAs = []model.BusETA{
	{BusID: "placeholder-1", BusNumber: "— (sample)", ETA: "unavailable"},
	{BusID: "placeholder-2", BusNumber: "— (sample)", ETA: "unavailable"},
}

// Snapshot is an immutable view of the feed for rendering.
type Snapshot struct {
	Buses        []model.Bus
	ETAs         []model.BusETA
	Terminals    []model.Terminal
	CurrentBusID string

	// Placeholder is true while the view shows the fallback dataset
	// because the backend could not be reached.
	Placeholder bool

	ErrMessage string
}

// UpdatedMsg is a tea.Msg delivered when the feed's state changed.
type UpdatedMsg struct {
	Snapshot Snapshot
}

// Feed is the bus/ETA polling state owner. Reads go through the
// response cache; fetches retry transient failures before degrading to
// the placeholder dataset.
type Feed struct {
	backend API
	cache   *cache.Cache
	log     zerolog.Logger

	mu           sync.Mutex
	buses        []model.Bus
	etas         []model.BusETA
	terminals    []model.Terminal
	currentBusID string
	placeholder  bool
	errMessage   string
}

// New creates a feed over the given backend and response cache.
func New(backend API, c *cache.Cache, log zerolog.Logger) *Feed {
	return &Feed{
		backend:   backend,
		cache:     c,
		log:       log.With().Str("component", "busfeed").Logger(),
		terminals: referenceTerminals,
	}
}

// Snapshot returns the current feed state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Load returns a tea.Cmd that fetches the fleet and its ETA
// projections. Failures fall back to the placeholder dataset instead of
// leaving the view empty.
func (f *Feed) Load() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		buses, err := cache.CachedJSON(ctx, f.cache, busCacheKey, busCacheTTL,
			func(ctx context.Context) ([]model.Bus, error) {
				return retry.Do(ctx, f.backend.ListBuses, retry.WithRetryable(api.IsRetryable))
			})

		etas, etaErr := f.fetchETAs(ctx)
		if err == nil {
			err = etaErr
		}

		f.mu.Lock()
		if err != nil {
			f.log.Warn().Err(err).Msg("bus feed load failed, using placeholder data")
			f.buses = placeholderBuses
			f.etas = placeholderETAs
			f.placeholder = true
			f.errMessage = api.UserMessage(err)
		} else {
			f.buses = buses
			f.etas = etas
			f.placeholder = false
			f.errMessage = ""
		}
		if f.currentBusID == "" && len(f.buses) > 0 {
			f.currentBusID = f.buses[0].ID
		}
		snap := f.snapshotLocked()
		f.mu.Unlock()

		return UpdatedMsg{Snapshot: snap}
	}
}

// Refresh returns a tea.Cmd that re-fetches ETA data only, replacing
// the ETA collection wholesale. The bus list is left untouched.
func (f *Feed) Refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		// A refresh wants fresh data, not the cached projection.
		f.cache.Remove(etaCacheKey)

		etas, err := f.fetchETAs(ctx)

		f.mu.Lock()
		if err != nil {
			f.log.Warn().Err(err).Msg("ETA refresh failed")
			f.errMessage = api.UserMessage(err)
		} else {
			f.etas = etas
			f.errMessage = ""
		}
		snap := f.snapshotLocked()
		f.mu.Unlock()

		return UpdatedMsg{Snapshot: snap}
	}
}

// SelectBus moves the current-bus pointer. An unknown id is ignored.
func (f *Feed) SelectBus(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.buses {
		if b.ID == id {
			f.currentBusID = id
			return
		}
	}
}

// CurrentBus returns the bus under the current-bus pointer, or nil when
// the fleet is empty.
func (f *Feed) CurrentBus() *model.Bus {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.buses {
		if f.buses[i].ID == f.currentBusID {
			b := f.buses[i]
			return &b
		}
	}
	return nil
}

// ETAFor returns the ETA projection for a bus id, or nil when none is
// known.
func (f *Feed) ETAFor(busID string) *model.BusETA {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.etas {
		if f.etas[i].BusID == busID {
			e := f.etas[i]
			return &e
		}
	}
	return nil
}

func (f *Feed) fetchETAs(ctx context.Context) ([]model.BusETA, error) {
	return cache.CachedJSON(ctx, f.cache, etaCacheKey, etaCacheTTL,
		func(ctx context.Context) ([]model.BusETA, error) {
			return retry.Do(ctx, f.backend.ListBusETAs, retry.WithRetryable(api.IsRetryable))
		})
}

func (f *Feed) snapshotLocked() Snapshot {
	return Snapshot{
		Buses:        f.buses,
		ETAs:         f.etas,
		Terminals:    f.terminals,
		CurrentBusID: f.currentBusID,
		Placeholder:  f.placeholder,
		ErrMessage:   f.errMessage,
	}
}
