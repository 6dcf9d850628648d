package model

import "time"

// Booking is a seat reservation on a bus.
type Booking struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BusID     string    `json:"bus_id"`
	Seat      string    `json:"seat"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	// CheckoutURL points at the hosted payment page for this booking,
	// when the backend requires payment to confirm it.
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// BookingRequest is the payload sent to create a booking. RequestID is a
// client-generated idempotency key.
type BookingRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	BusID     string `json:"bus_id"`
	Seat      string `json:"seat"`
}
