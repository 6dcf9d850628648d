package model

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bus is a vehicle in the fleet as reported by the backend. Buses are
// read-only projections; the client never mutates them.
type Bus struct {
	// ID is the backend identifier for the vehicle.
	ID string `json:"id"`

	// Number is the rider-facing bus number (e.g. "42A").
	Number string `json:"bus_number"`

	// Capacity is the total seat count.
	Capacity int `json:"capacity"`

	// Occupied is the number of seats currently taken.
	Occupied int `json:"occupied"`

	// Status is the operational status (e.g. "active", "maintenance").
	Status string `json:"status"`
}

// Route describes the line a bus is serving.
type Route struct {
	Name            string `json:"name"`
	StartTerminalID string `json:"start_terminal_id"`
	EndTerminalID   string `json:"end_terminal_id"`
}

// BusETA joins a vehicle to its route, estimated arrival, and last known
// position. CurrentLocation is nil when the vehicle has not reported a
// fix recently.
type BusETA struct {
	BusID           string      `json:"busId"`
	BusNumber       string      `json:"busNumber"`
	ETA             string      `json:"eta"`
	CurrentLocation *Coordinate `json:"currentLocation"`
	Route           Route       `json:"route"`
}

// Terminal is a named stop at the start or end of a route.
type Terminal struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
}
