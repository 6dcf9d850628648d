package busfeed

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/cache"
	"github.com/dnguyen/buswatch/internal/model"
)

type fakeAPI struct {
	mu       sync.Mutex
	buses    []model.Bus
	etas     []model.BusETA
	busErr   error
	etaErr   error
	busCalls int
	etaCalls int
}

func (f *fakeAPI) ListBuses(context.Context) ([]model.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busCalls++
	return f.buses, f.busErr
}

func (f *fakeAPI) ListBusETAs(context.Context) ([]model.BusETA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.etaCalls++
	return f.etas, f.etaErr
}

func fixtureFleet() ([]model.Bus, []model.BusETA) {
	buses := []model.Bus{
		{ID: "b1", Number: "42A", Capacity: 40, Occupied: 12, Status: "active"},
		{ID: "b2", Number: "17", Capacity: 30, Occupied: 30, Status: "active"},
	}
	etas := []model.BusETA{
		{BusID: "b1", BusNumber: "42A", ETA: "5 min", Route: model.Route{Name: "North Loop"}},
		{BusID: "b2", BusNumber: "17", ETA: "12 min", Route: model.Route{Name: "South Loop"}},
	}
	return buses, etas
}

func newTestFeed(backend API) *Feed {
	c := cache.New(nil, zerolog.Nop())
	return New(backend, c, zerolog.Nop())
}

func TestLoadPopulatesFleetAndDefaultsSelection(t *testing.T) {
	buses, etas := fixtureFleet()
	backend := &fakeAPI{buses: buses, etas: etas}
	f := newTestFeed(backend)

	msg := f.Load()()
	updated, ok := msg.(UpdatedMsg)
	require.True(t, ok)

	assert.Equal(t, buses, updated.Snapshot.Buses)
	assert.Equal(t, etas, updated.Snapshot.ETAs)
	assert.Len(t, updated.Snapshot.Terminals, 2, "terminals are seeded from the reference pair")
	assert.Equal(t, "b1", updated.Snapshot.CurrentBusID, "selection defaults to the first bus")
	assert.False(t, updated.Snapshot.Placeholder)
	assert.Empty(t, updated.Snapshot.ErrMessage)
}

func TestLoadFailureFallsBackToPlaceholder(t *testing.T) {
	backend := &fakeAPI{
		busErr: &api.Error{Class: api.ClassExhausted, Message: "refused"},
		etaErr: &api.Error{Class: api.ClassExhausted, Message: "refused"},
	}
	f := newTestFeed(backend)

	msg := f.Load()()
	updated, ok := msg.(UpdatedMsg)
	require.True(t, ok)

	assert.True(t, updated.Snapshot.Placeholder)
	assert.NotEmpty(t, updated.Snapshot.Buses, "the view must never be left empty")
	assert.NotEmpty(t, updated.Snapshot.ETAs)
	assert.NotEmpty(t, updated.Snapshot.ErrMessage)
}

func TestRefreshReplacesETAsOnly(t *testing.T) {
	buses, etas := fixtureFleet()
	backend := &fakeAPI{buses: buses, etas: etas}
	f := newTestFeed(backend)

	f.Load()()

	backend.mu.Lock()
	backend.etas = []model.BusETA{
		{BusID: "b1", BusNumber: "42A", ETA: "2 min"},
	}
	busCallsBefore := backend.busCalls
	backend.mu.Unlock()

	msg := f.Refresh()()
	updated, ok := msg.(UpdatedMsg)
	require.True(t, ok)

	assert.Len(t, updated.Snapshot.ETAs, 1, "ETA collection is replaced wholesale")
	assert.Equal(t, "2 min", updated.Snapshot.ETAs[0].ETA)
	assert.Equal(t, buses, updated.Snapshot.Buses, "refresh must not touch the bus list")

	backend.mu.Lock()
	assert.Equal(t, busCallsBefore, backend.busCalls, "refresh must not re-fetch the bus list")
	backend.mu.Unlock()
}

func TestRefreshFailureKeepsLastKnownETAs(t *testing.T) {
	buses, etas := fixtureFleet()
	backend := &fakeAPI{buses: buses, etas: etas}
	f := newTestFeed(backend)

	f.Load()()

	backend.mu.Lock()
	backend.etaErr = &api.Error{Class: api.ClassExhausted, Message: "refused"}
	backend.mu.Unlock()

	msg := f.Refresh()()
	updated := msg.(UpdatedMsg)

	assert.Equal(t, etas, updated.Snapshot.ETAs, "stale ETAs beat an empty view")
	assert.NotEmpty(t, updated.Snapshot.ErrMessage)
}

func TestCachedETAsAreNotRefetchedWithinTTL(t *testing.T) {
	buses, etas := fixtureFleet()
	backend := &fakeAPI{buses: buses, etas: etas}
	f := newTestFeed(backend)

	f.Load()()
	f.Load()()

	backend.mu.Lock()
	assert.Equal(t, 1, backend.busCalls)
	assert.Equal(t, 1, backend.etaCalls)
	backend.mu.Unlock()
}

func TestSelectBus(t *testing.T) {
	buses, etas := fixtureFleet()
	backend := &fakeAPI{buses: buses, etas: etas}
	f := newTestFeed(backend)

	f.Load()()

	f.SelectBus("b2")
	current := f.CurrentBus()
	require.NotNil(t, current)
	assert.Equal(t, "b2", current.ID)

	f.SelectBus("ghost")
	current = f.CurrentBus()
	require.NotNil(t, current)
	assert.Equal(t, "b2", current.ID, "unknown ids leave the pointer alone")
}

func TestETAFor(t *testing.T) {
	buses, etas := fixtureFleet()
	backend := &fakeAPI{buses: buses, etas: etas}
	f := newTestFeed(backend)

	f.Load()()

	eta := f.ETAFor("b1")
	require.NotNil(t, eta)
	assert.Equal(t, "5 min", eta.ETA)

	assert.Nil(t, f.ETAFor("ghost"))
}
