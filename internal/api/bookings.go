package api

import (
	"context"
	"fmt"

	"github.com/dnguyen/buswatch/internal/model"
)

// CreateBooking reserves a seat. The request carries a client-generated
// idempotency key so a retried submit cannot double-book.
func (c *Client) CreateBooking(ctx context.Context, req model.BookingRequest) (*model.Booking, error) {
	var booking model.Booking
	if err := c.post(ctx, "/bookings", req, &booking); err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}
	return &booking, nil
}

// ListBookings retrieves all bookings belonging to a user.
func (c *Client) ListBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := c.get(ctx, "/bookings/user/"+userID, &bookings); err != nil {
		return nil, fmt.Errorf("listing bookings for %s: %w", userID, err)
	}
	return bookings, nil
}

// GetBooking retrieves a single booking by id.
func (c *Client) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	if err := c.get(ctx, "/bookings/"+id, &booking); err != nil {
		return nil, fmt.Errorf("fetching booking %s: %w", id, err)
	}
	return &booking, nil
}
