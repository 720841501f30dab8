package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/afroash/corrosion-monitor/internal/models"
)

// ErrStoreClosed is returned by MemoryStore after Close
var ErrStoreClosed = errors.New("store is closed")

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// MemoryStore serves a fixed snapshot of readings from memory.
// It backs fixtures and demos where no database is available.
type MemoryStore struct {
	data   map[int][]*models.Reading // newest first
	total  int64
	closed bool
	mutex  sync.RWMutex
}

// NewMemoryStore creates a store holding copies of the given readings
func NewMemoryStore(readings ...*models.Reading) *MemoryStore {
	ms := &MemoryStore{
		data: make(map[int][]*models.Reading),
	}
	for _, r := range readings {
		ms.data[r.DeviceID] = append(ms.data[r.DeviceID], r.Copy())
		ms.total++
	}
	for _, rs := range ms.data {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Newer(rs[j]) })
	}
	return ms
}

// DeviceIDs returns the distinct device ids in ascending order
func (ms *MemoryStore) DeviceIDs(ctx context.Context) ([]int, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if err := ms.check(ctx); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(ms.data))
	for id := range ms.data {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// LatestReading returns the most recent reading for a device
func (ms *MemoryStore) LatestReading(ctx context.Context, deviceID int) (*models.Reading, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if err := ms.check(ctx); err != nil {
		return nil, err
	}

	readings := ms.data[deviceID]
	if len(readings) == 0 {
		return nil, nil
	}
	// Return a copy, not a pointer to internal data
	return readings[0].Copy(), nil
}

// RecentReadings returns up to limit of the newest readings for a device
func (ms *MemoryStore) RecentReadings(ctx context.Context, deviceID int, limit int) ([]*models.Reading, error) {
	return ms.ReadingsPage(ctx, deviceID, 0, limit)
}

// CountReadings returns how many readings a device has
func (ms *MemoryStore) CountReadings(ctx context.Context, deviceID int) (int, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if err := ms.check(ctx); err != nil {
		return 0, err
	}
	return len(ms.data[deviceID]), nil
}

// ReadingsPage returns one slice of a device's readings, newest first
func (ms *MemoryStore) ReadingsPage(ctx context.Context, deviceID int, offset, limit int) ([]*models.Reading, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if err := ms.check(ctx); err != nil {
		return nil, err
	}

	readings := ms.data[deviceID]
	result := []*models.Reading{}
	if offset < 0 || offset >= len(readings) || limit <= 0 {
		return result, nil
	}
	end := offset + limit
	if end > len(readings) {
		end = len(readings)
	}
	for _, r := range readings[offset:end] {
		result = append(result, r.Copy())
	}
	return result, nil
}

// Stats returns statistics about the snapshot
func (ms *MemoryStore) Stats(ctx context.Context) (*StorageStats, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if err := ms.check(ctx); err != nil {
		return nil, err
	}

	stats := &StorageStats{
		TotalReadings: ms.total,
		UniqueDevices: len(ms.data),
	}
	for _, readings := range ms.data {
		newest := readings[0].CapturedAt
		oldest := readings[len(readings)-1].CapturedAt
		if stats.NewestReading.IsZero() || newest.After(stats.NewestReading) {
			stats.NewestReading = newest
		}
		if stats.OldestReading.IsZero() || oldest.Before(stats.OldestReading) {
			stats.OldestReading = oldest
		}
	}
	return stats, nil
}

// Ping reports whether the store is still open
func (ms *MemoryStore) Ping(ctx context.Context) error {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return ms.check(ctx)
}

// Close makes every later query fail with ErrStoreClosed
func (ms *MemoryStore) Close() error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	ms.closed = true
	return nil
}

func (ms *MemoryStore) check(ctx context.Context) error {
	if ms.closed {
		return ErrStoreClosed
	}
	return ctx.Err()
}
