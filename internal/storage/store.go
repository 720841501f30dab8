package storage

import (
	"context"
	"time"

	"github.com/afroash/corrosion-monitor/internal/models"
)

// Store defines the read-only query contract over the corrosion readings table.
// All listing methods return readings newest first.
type Store interface {
	// DeviceIDs returns the distinct device ids, ascending
	DeviceIDs(ctx context.Context) ([]int, error)

	// LatestReading returns the newest reading for a device, or nil if it has none
	LatestReading(ctx context.Context, deviceID int) (*models.Reading, error)

	// RecentReadings returns up to limit readings for a device
	RecentReadings(ctx context.Context, deviceID int, limit int) ([]*models.Reading, error)

	// CountReadings returns the number of readings stored for a device
	CountReadings(ctx context.Context, deviceID int) (int, error)

	// ReadingsPage returns up to limit readings for a device after skipping offset rows
	ReadingsPage(ctx context.Context, deviceID int, offset, limit int) ([]*models.Reading, error)

	// Stats returns table-wide statistics
	Stats(ctx context.Context) (*StorageStats, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	Close() error
}

// StorageStats contains information about the readings table
type StorageStats struct {
	TotalReadings int64     `json:"total_readings"`
	UniqueDevices int       `json:"unique_devices"`
	OldestReading time.Time `json:"oldest_reading,omitempty"`
	NewestReading time.Time `json:"newest_reading,omitempty"`
}
