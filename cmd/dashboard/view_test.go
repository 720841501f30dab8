package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/afroash/corrosion-monitor/internal/history"
	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/query"
)

var captured = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

func renderString(v *view) string {
	var buf bytes.Buffer
	v.render(&buf)
	return buf.String()
}

func TestView_RenderLoaded(t *testing.T) {
	v := &view{
		mode:     "poll",
		devices:  []int{3, 9},
		deviceID: 9,
		metric:   models.MetricTemperature,
		loc:      time.UTC,
		latest: &models.Reading{
			ID: 42, DeviceID: 9, Temperature: 21.5, Humidity: 40, Resistor: 0.25, CapturedAt: captured,
		},
		recent: []models.RecentValue{
			{Value: 3, Calendar: "2024-05-01T10:30:00Z"},
			{Value: 1, Calendar: "2024-05-01T10:29:00Z"},
		},
		history: history.State{
			DeviceID:    9,
			Records:     []*models.Reading{{ID: 42, DeviceID: 9, Temperature: 21.5, CapturedAt: captured}},
			CurrentPage: 2,
			TotalPages:  3,
			TotalItems:  12,
			PageSize:    5,
			Status:      history.StatusLoaded,
		},
		window: history.Window(2, 3, history.WindowDelta),
	}

	out := renderString(v)
	assert.Contains(t, out, "Devices: 3 [9]")
	assert.Contains(t, out, "Temperature 21.50 °C")
	assert.Contains(t, out, "Captured 2024-05-01 10:30:00")
	assert.Contains(t, out, "min 1.00 max 3.00")
	assert.Contains(t, out, "History page 2 of 3 (12 readings)")
	assert.Contains(t, out, "Pages: 1 [2] 3")
	assert.Contains(t, out, "Commands:")
}

func TestView_RenderStatuses(t *testing.T) {
	t.Run("loading", func(t *testing.T) {
		v := &view{latestLoading: true, history: history.State{CurrentPage: 1, Status: history.StatusLoading}}
		out := renderString(v)
		assert.Contains(t, out, "Loading...")
		assert.Contains(t, out, "Devices: none")
	})

	t.Run("empty device", func(t *testing.T) {
		v := &view{history: history.State{CurrentPage: 1, Status: history.StatusEmpty}}
		out := renderString(v)
		assert.Contains(t, out, "No data available for this device.")
		assert.NotContains(t, out, "Pages:")
	})

	t.Run("errors", func(t *testing.T) {
		v := &view{
			latestErr: query.ErrStoreUnavailable,
			recentErr: errors.New("boom"),
			history:   history.State{CurrentPage: 1, Status: history.StatusError, Err: query.ErrNotFound},
		}
		out := renderString(v)
		assert.Contains(t, out, "Error: store unavailable. Retrying on next refresh.")
		assert.Contains(t, out, "Error: Internal server error.")
		assert.Contains(t, out, "Error: not found. Try again.")
	})
}

func TestRenderWindow(t *testing.T) {
	items := history.Window(5, 10, history.WindowDelta)
	assert.Equal(t, "1 ... 3 4 [5] 6 7 ... 10", renderWindow(items, 5))
	assert.Equal(t, "[1]", renderWindow(history.Window(1, 1, history.WindowDelta), 1))
}

func TestSparkline(t *testing.T) {
	assert.Empty(t, sparkline(nil))

	// newest first in, oldest first out
	values := []models.RecentValue{{Value: 10}, {Value: 5}, {Value: 0}}
	assert.Equal(t, "▁▄█", sparkline(values))

	flat := []models.RecentValue{{Value: 2}, {Value: 2}}
	assert.Equal(t, "▁▁", sparkline(flat))
}

func TestView_FormatTimeUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	v := &view{loc: loc}
	assert.Equal(t, "2024-05-01 12:30:00", v.formatTime(captured))
}
