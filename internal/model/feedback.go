package model

import "time"

// Feedback is a rider rating and comment about a trip on a bus.
type Feedback struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	BusID     string    `json:"bus_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
