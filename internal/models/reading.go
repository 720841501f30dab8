package models

import (
	"fmt"
	"time"
)

// Reading represents one sample from a corrosion sensor.
// Readings are written by the ingestion side and never modified here.
type Reading struct {
	ID          int64     `json:"id"`
	DeviceID    int       `json:"device_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Resistor    float64   `json:"resistor"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Validate checks the fields every persisted reading must carry
func (r *Reading) Validate() error {
	if r == nil {
		return fmt.Errorf("reading is nil")
	}
	if r.ID <= 0 {
		return fmt.Errorf("reading id must be positive, got %d", r.ID)
	}
	if r.CapturedAt.IsZero() {
		return fmt.Errorf("reading %d has no capture time", r.ID)
	}
	return nil
}

// String returns a human readable form of the reading
func (r *Reading) String() string {
	return fmt.Sprintf("Device: %d, CapturedAt: %s, Temperature: %.1f°C, Humidity: %.1f%%, Resistor: %.5f",
		r.DeviceID,
		r.CapturedAt.Format(time.RFC3339),
		r.Temperature,
		r.Humidity,
		r.Resistor)
}

// Copy returns a deep copy of the Reading
func (r *Reading) Copy() *Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Newer reports whether r was captured after other.
// Ties on capture time are broken by id so ordering is total.
func (r *Reading) Newer(other *Reading) bool {
	if other == nil {
		return true
	}
	if r.CapturedAt.Equal(other.CapturedAt) {
		return r.ID > other.ID
	}
	return r.CapturedAt.After(other.CapturedAt)
}
