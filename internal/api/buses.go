package api

import (
	"context"
	"fmt"

	"github.com/dnguyen/buswatch/internal/model"
)

// ListBuses retrieves the fleet.
func (c *Client) ListBuses(ctx context.Context) ([]model.Bus, error) {
	var buses []model.Bus
	if err := c.get(ctx, "/buses", &buses); err != nil {
		return nil, fmt.Errorf("listing buses: %w", err)
	}
	return buses, nil
}

// ListBusETAs retrieves per-bus ETA projections joined against route and
// last-known-position data.
func (c *Client) ListBusETAs(ctx context.Context) ([]model.BusETA, error) {
	var etas []model.BusETA
	if err := c.get(ctx, "/buses/eta", &etas); err != nil {
		return nil, fmt.Errorf("listing bus ETAs: %w", err)
	}
	return etas, nil
}
