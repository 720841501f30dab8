package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afroash/corrosion-monitor/internal/history"
	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/query"
	"github.com/afroash/corrosion-monitor/internal/refresh"
	"github.com/afroash/corrosion-monitor/internal/server"
	"github.com/afroash/corrosion-monitor/internal/storage"
)

// Compile-time interface checks
var (
	_ refresh.Fetcher = (*APIClient)(nil)
	_ history.Fetcher = (*APIClient)(nil)
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// newTestService starts a real query service over an in-memory store
func newTestService(t *testing.T, interval time.Duration) (*httptest.Server, *storage.MemoryStore) {
	t.Helper()
	readings := []*models.Reading{
		{ID: 1, DeviceID: 7, Temperature: 20.0, CapturedAt: base},
		{ID: 2, DeviceID: 7, Temperature: 21.0, Humidity: 45, Resistor: 0.3, CapturedAt: base.Add(5 * time.Minute)},
	}
	for i := 1; i <= 12; i++ {
		readings = append(readings, &models.Reading{
			ID:          int64(100 + i),
			DeviceID:    9,
			Temperature: float64(i),
			CapturedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	store := storage.NewMemoryStore(readings...)

	logger := zerolog.Nop()
	svc := query.NewService(store, logger)
	api := server.NewAPIHandler(svc, server.APIConfig{}, logger)
	stream := server.NewStreamHandler(svc, interval, nil, logger)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		API:    api,
		Stream: stream,
		Logger: logger,
	}))
	t.Cleanup(srv.Close)
	return srv, store
}

func newTestClient(t *testing.T, baseURL string) *APIClient {
	t.Helper()
	c, err := NewAPIClient(APIConfig{BaseURL: baseURL, Timeout: 2 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewAPIClient_InvalidURL(t *testing.T) {
	_, err := NewAPIClient(APIConfig{BaseURL: "ftp://example.com"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewAPIClient(APIConfig{BaseURL: "://bad"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestAPIClient_ListDevices(t *testing.T) {
	srv, _ := newTestService(t, time.Hour)

	for _, baseURL := range []string{srv.URL, srv.URL + "/api"} {
		c := newTestClient(t, baseURL)
		list, err := c.ListDevices(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int{7, 9}, list.Devices)
	}
}

func TestAPIClient_GetLatest(t *testing.T) {
	srv, _ := newTestService(t, time.Hour)
	c := newTestClient(t, srv.URL)

	reading, err := c.GetLatest(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, reading.DeviceID)
	assert.Equal(t, 21.0, reading.Temperature)
	assert.Equal(t, 45.0, reading.Humidity)
	assert.Equal(t, 0.3, reading.Resistor)
	assert.True(t, base.Add(5*time.Minute).Equal(reading.CapturedAt))

	_, err = c.GetLatest(context.Background(), 99)
	assert.ErrorIs(t, err, query.ErrNotFound)
	assert.Equal(t, "No data found for this device", query.PublicMessage(err))
}

func TestAPIClient_GetRecent(t *testing.T) {
	srv, _ := newTestService(t, time.Hour)
	c := newTestClient(t, srv.URL)

	values, err := c.GetRecent(context.Background(), 9, models.MetricTemperature)
	require.NoError(t, err)
	require.Len(t, values, query.DefaultRecentLimit)
	assert.Equal(t, 12.0, values[0].Value)
}

func TestAPIClient_GetHistory(t *testing.T) {
	srv, _ := newTestService(t, time.Hour)
	c := newTestClient(t, srv.URL)

	page, err := c.GetHistory(context.Background(), 9, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	require.Len(t, page.Records, 5)
	assert.Equal(t, int64(107), page.Records[0].ID)
	assert.Equal(t, 9, page.Records[0].DeviceID)

	_, err = c.GetHistory(context.Background(), 9, 1, 1000)
	assert.ErrorIs(t, err, query.ErrInvalidArgument)

	_, err = c.GetHistory(context.Background(), 99, 1, 5)
	assert.ErrorIs(t, err, query.ErrNotFound)
}

func TestAPIClient_StoreUnavailable(t *testing.T) {
	srv, store := newTestService(t, time.Hour)
	require.NoError(t, store.Close())
	c := newTestClient(t, srv.URL)

	_, err := c.ListDevices(context.Background())
	assert.ErrorIs(t, err, query.ErrStoreUnavailable)
	assert.Equal(t, "Internal server error", query.PublicMessage(err))
}

func TestAPIClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.GetLatest(context.Background(), 7)
	assert.ErrorIs(t, err, query.ErrStoreUnavailable)
}

func TestAPIClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"DEVICE": 7, "CALENDAR": "yesterday"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetLatest(context.Background(), 7)
	assert.ErrorIs(t, err, query.ErrUnknown)
}

func TestAPIClient_Cancelled(t *testing.T) {
	srv, _ := newTestService(t, time.Hour)
	c := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListDevices(ctx)
	assert.Equal(t, query.KindUnknown, query.KindOf(err))
}

func TestAPIClient_DrivesPaginator(t *testing.T) {
	srv, _ := newTestService(t, time.Hour)
	c := newTestClient(t, srv.URL)

	p := history.NewPaginator(c, 5, zerolog.Nop())
	p.SetDevice(context.Background(), 9)
	require.True(t, p.GoTo(context.Background(), 3))

	s := p.State()
	assert.Equal(t, history.StatusLoaded, s.Status)
	assert.Equal(t, 3, s.CurrentPage)
	assert.Len(t, s.Records, 2)
}

func TestAPIClient_DrivesScheduler(t *testing.T) {
	srv, _ := newTestService(t, time.Hour)
	c := newTestClient(t, srv.URL)

	s := refresh.NewScheduler(c, time.Hour, zerolog.Nop())
	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()
	defer s.Stop()

	s.Start(9)

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		assert.Equal(t, 12.0, u.Reading.Temperature)
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
	}
}
