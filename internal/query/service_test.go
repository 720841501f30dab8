package query

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/storage"
)

var ten = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func fixtureStore() *storage.MemoryStore {
	readings := []*models.Reading{
		{ID: 1, DeviceID: 7, Temperature: 20.0, CapturedAt: ten},
		{ID: 2, DeviceID: 7, Temperature: 21.0, CapturedAt: ten.Add(5 * time.Minute)},
	}
	for i := 0; i < 12; i++ {
		readings = append(readings, &models.Reading{
			ID:          int64(100 + i),
			DeviceID:    9,
			Temperature: float64(i),
			Humidity:    50,
			Resistor:    0.01 * float64(i),
			CapturedAt:  ten.Add(time.Duration(i) * time.Minute),
		})
	}
	return storage.NewMemoryStore(readings...)
}

type recordingObserver struct {
	mu  sync.Mutex
	ops map[string][]error
}

func (o *recordingObserver) ObserveQuery(op string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops == nil {
		o.ops = make(map[string][]error)
	}
	o.ops[op] = append(o.ops[op], err)
}

func newTestService(store storage.Store) *Service {
	return NewService(store, zerolog.Nop())
}

func TestListDevices(t *testing.T) {
	svc := newTestService(fixtureStore())

	list, err := svc.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{7, 9}, list.Devices)
}

func TestListDevices_StoreUnavailable(t *testing.T) {
	store := fixtureStore()
	store.Close()
	svc := newTestService(store)

	_, err := svc.ListDevices(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, "Internal server error", PublicMessage(err))
	assert.ErrorIs(t, err, storage.ErrStoreClosed, "cause should stay reachable for logging")
}

func TestGetLatest(t *testing.T) {
	svc := newTestService(fixtureStore())

	latest, err := svc.GetLatest(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 21.0, latest.Temperature)
	assert.True(t, latest.CapturedAt.Equal(ten.Add(5*time.Minute)))
}

func TestGetLatest_NotFound(t *testing.T) {
	svc := newTestService(fixtureStore())

	_, err := svc.GetLatest(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestGetRecent(t *testing.T) {
	svc := newTestService(fixtureStore())
	ctx := context.Background()

	readings, err := svc.GetRecent(ctx, 9, DefaultRecentLimit)
	require.NoError(t, err)
	require.Len(t, readings, 10)
	assert.Equal(t, 11.0, readings[0].Temperature)
	for i := 1; i < len(readings); i++ {
		assert.False(t, readings[i].CapturedAt.After(readings[i-1].CapturedAt))
	}

	few, err := svc.GetRecent(ctx, 7, DefaultRecentLimit)
	require.NoError(t, err)
	assert.Len(t, few, 2)

	_, err = svc.GetRecent(ctx, 99, DefaultRecentLimit)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetRecent(ctx, 9, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetRecentMetric(t *testing.T) {
	svc := newTestService(fixtureStore())

	values, err := svc.GetRecentMetric(context.Background(), 9, models.MetricResistor, 3)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.InDelta(t, 0.11, values[0].Value, 1e-9)
	assert.Equal(t, "2024-05-01T10:11:00Z", values[0].Calendar)

	_, err = svc.GetRecentMetric(context.Background(), 99, models.MetricHumidity, 3)
	require.Error(t, err)
	assert.Contains(t, PublicMessage(err), "humidity")
}

func TestGetHistory(t *testing.T) {
	svc := newTestService(fixtureStore())

	page, err := svc.GetHistory(context.Background(), 9, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 5, page.PageSize)
	require.Len(t, page.Records, 5)

	// items 6..10 by descending time
	for i, r := range page.Records {
		assert.Equal(t, float64(6-i), r.Temperature)
	}
}

func TestGetHistory_OutOfRangePage(t *testing.T) {
	svc := newTestService(fixtureStore())

	page, err := svc.GetHistory(context.Background(), 9, 8, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 8, page.CurrentPage)

	// (page-1)*limit would wrap to 0 here and return page 1
	const huge = 4611686018427387905
	page, err = svc.GetHistory(context.Background(), 9, huge, 4)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, huge, page.CurrentPage)
}

func TestGetHistory_NotFound(t *testing.T) {
	svc := newTestService(fixtureStore())

	_, err := svc.GetHistory(context.Background(), 99, 1, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetHistory_InvalidArguments(t *testing.T) {
	svc := newTestService(fixtureStore())
	ctx := context.Background()

	tests := []struct {
		name           string
		page, pageSize int
	}{
		{"zero page", 0, 5},
		{"negative page", -1, 5},
		{"zero page size", 1, 0},
		{"page size too large", 1, MaxPageSize + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetHistory(ctx, 9, tt.page, tt.pageSize)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, http.StatusBadRequest, StatusCode(err))
		})
	}
}

func TestTotalPagesProperty(t *testing.T) {
	svc := newTestService(fixtureStore())
	for size := 1; size <= 13; size++ {
		page, err := svc.GetHistory(context.Background(), 9, 1, size)
		require.NoError(t, err)
		assert.Equal(t, (12+size-1)/size, page.TotalPages, "page size %d", size)
	}
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	svc := newTestService(fixtureStore())
	svc.SetObserver(obs)

	svc.GetLatest(context.Background(), 7)
	svc.GetLatest(context.Background(), 99)

	require.Len(t, obs.ops["get_latest"], 2)
	assert.NoError(t, obs.ops["get_latest"][0])
	assert.ErrorIs(t, obs.ops["get_latest"][1], ErrNotFound)
}

func TestConcurrentQueries(t *testing.T) {
	svc := newTestService(fixtureStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			device := 7
			if i%2 == 0 {
				device = 9
			}
			_, err := svc.GetLatest(ctx, device)
			assert.NoError(t, err)
			_, err = svc.GetHistory(ctx, 9, 1+i%3, 5)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestStoreErrorCancelled(t *testing.T) {
	err := storeError(context.Canceled)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
}
