package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/storage"
)

// Observer receives the outcome of every query. metrics.Metrics implements it.
type Observer interface {
	ObserveQuery(operation string, duration time.Duration, err error)
}

// Service answers the dashboard's read queries against a Store.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	store    storage.Store
	logger   zerolog.Logger
	observer Observer
}

// NewService creates a query service over store
func NewService(store storage.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// SetObserver attaches a query observer
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

func (s *Service) observe(op string, start time.Time, err error) {
	if err != nil {
		var ev *zerolog.Event
		switch KindOf(err) {
		case KindNotFound:
			ev = s.logger.Debug()
		case KindStoreUnavailable:
			ev = s.logger.Error()
		default:
			ev = s.logger.Warn()
		}
		ev.Err(err).Str("operation", op).Msg("Query failed")
	}
	if s.observer != nil {
		s.observer.ObserveQuery(op, time.Since(start), err)
	}
}

// ListDevices returns the distinct device ids in ascending order
func (s *Service) ListDevices(ctx context.Context) (_ *models.DeviceList, err error) {
	defer func(start time.Time) { s.observe("list_devices", start, err) }(time.Now())

	ids, err := s.store.DeviceIDs(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return &models.DeviceList{Devices: ids}, nil
}

// GetLatest returns the reading with the greatest capture time for a device
func (s *Service) GetLatest(ctx context.Context, deviceID int) (_ *models.Reading, err error) {
	defer func(start time.Time) { s.observe("get_latest", start, err) }(time.Now())

	reading, err := s.store.LatestReading(ctx, deviceID)
	if err != nil {
		return nil, storeError(err)
	}
	if reading == nil {
		return nil, notFound("No data found for this device")
	}
	return reading, nil
}

// GetRecent returns up to limit of the newest readings for a device.
// A device with no readings yields NotFound.
func (s *Service) GetRecent(ctx context.Context, deviceID int, limit int) (_ []*models.Reading, err error) {
	defer func(start time.Time) { s.observe("get_recent", start, err) }(time.Now())

	if limit < 1 || limit > MaxPageSize {
		return nil, invalidArgument(fmt.Sprintf("limit must be between 1 and %d", MaxPageSize))
	}

	readings, err := s.store.RecentReadings(ctx, deviceID, limit)
	if err != nil {
		return nil, storeError(err)
	}
	if len(readings) == 0 {
		return nil, notFound(fmt.Sprintf("No data found for device %d", deviceID))
	}
	return readings, nil
}

// GetRecentMetric projects GetRecent onto one metric for charting
func (s *Service) GetRecentMetric(ctx context.Context, deviceID int, metric models.Metric, limit int) ([]models.RecentValue, error) {
	readings, err := s.GetRecent(ctx, deviceID, limit)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, notFound(fmt.Sprintf("No %s data found for device %d", metric, deviceID))
		}
		return nil, err
	}
	return models.NewRecentValues(metric, readings), nil
}

// GetHistory returns one page of a device's readings.
// Pages past the end are empty; a device with no readings yields NotFound.
func (s *Service) GetHistory(ctx context.Context, deviceID int, page, pageSize int) (_ *models.HistoryPage, err error) {
	defer func(start time.Time) { s.observe("get_history", start, err) }(time.Now())

	if page < 1 {
		return nil, invalidArgument("page must be a positive integer")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, invalidArgument(fmt.Sprintf("limit must be between 1 and %d", MaxPageSize))
	}

	total, err := s.store.CountReadings(ctx, deviceID)
	if err != nil {
		return nil, storeError(err)
	}
	if total == 0 {
		return nil, notFound(fmt.Sprintf("No history data found for device %d", deviceID))
	}

	var records []*models.Reading
	if page <= models.TotalPages(total, pageSize) {
		records, err = s.store.ReadingsPage(ctx, deviceID, models.PageOffset(page, pageSize), pageSize)
		if err != nil {
			return nil, storeError(err)
		}
	}

	result, err := models.NewHistoryPage(deviceID, records, total, page, pageSize)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: "Internal server error", Err: err}
	}
	return result, nil
}

// Stats returns table-wide statistics
func (s *Service) Stats(ctx context.Context) (_ *storage.StorageStats, err error) {
	defer func(start time.Time) { s.observe("stats", start, err) }(time.Now())

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return stats, nil
}

// Ping checks that the store is reachable
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storeError(err)
	}
	return nil
}
