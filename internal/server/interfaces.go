package server

import (
	"context"

	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/storage"
)

// QueryService defines the read operations the HTTP surface exposes.
// query.Service implements this interface.
type QueryService interface {
	// ListDevices returns every device id, ascending
	ListDevices(ctx context.Context) (*models.DeviceList, error)

	// GetLatest returns the newest reading of a device
	GetLatest(ctx context.Context, deviceID int) (*models.Reading, error)

	// GetRecentMetric returns up to limit values of one metric, newest first
	GetRecentMetric(ctx context.Context, deviceID int, metric models.Metric, limit int) ([]models.RecentValue, error)

	// GetHistory returns one page of a device's readings
	GetHistory(ctx context.Context, deviceID int, page, pageSize int) (*models.HistoryPage, error)

	// Stats returns table-wide statistics
	Stats(ctx context.Context) (*storage.StorageStats, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of open refresh channel connections.
// StreamHandler implements this interface.
type SessionCounter interface {
	SessionCount() int
}
