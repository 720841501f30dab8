package models

import (
	"fmt"
	"time"
)

// CalendarLayout is the wire format of every CALENDAR field (ISO 8601, UTC).
// Fractional seconds are kept when the store has them.
const CalendarLayout = time.RFC3339Nano

// FormatCalendar renders a capture time for the wire
func FormatCalendar(t time.Time) string {
	return t.UTC().Format(CalendarLayout)
}

// ParseCalendar parses a CALENDAR field
func ParseCalendar(s string) (time.Time, error) {
	t, err := time.Parse(CalendarLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid CALENDAR %q: %w", s, err)
	}
	return t, nil
}

// LatestData is the response body of GET /latest_data/{deviceId}
type LatestData struct {
	Device      int     `json:"DEVICE"`
	Temperature float64 `json:"TEMPERATURE"`
	Humidity    float64 `json:"HUMIDITY"`
	Resistor    float64 `json:"RESISTOR"`
	Calendar    string  `json:"CALENDAR"`
}

// NewLatestData converts a reading to its wire form
func NewLatestData(r *Reading) LatestData {
	return LatestData{
		Device:      r.DeviceID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Resistor:    r.Resistor,
		Calendar:    FormatCalendar(r.CapturedAt),
	}
}

// Reading converts the wire form back into a Reading. The id is not on the wire.
func (d LatestData) Reading() (*Reading, error) {
	capturedAt, err := ParseCalendar(d.Calendar)
	if err != nil {
		return nil, err
	}
	return &Reading{
		DeviceID:    d.Device,
		Temperature: d.Temperature,
		Humidity:    d.Humidity,
		Resistor:    d.Resistor,
		CapturedAt:  capturedAt,
	}, nil
}

// RecentValue is one point of GET /{metric}/{deviceId}/latest
type RecentValue struct {
	Value    float64 `json:"VALUE"`
	Calendar string  `json:"CALENDAR"`
}

// NewRecentValues projects readings onto a single metric
func NewRecentValues(metric Metric, readings []*Reading) []RecentValue {
	values := make([]RecentValue, 0, len(readings))
	for _, r := range readings {
		values = append(values, RecentValue{
			Value:    metric.Value(r),
			Calendar: FormatCalendar(r.CapturedAt),
		})
	}
	return values
}

// HistoryRecord is one row of GET /data_history/{deviceId}
type HistoryRecord struct {
	ID          int64   `json:"ID"`
	Temperature float64 `json:"TEMPERATURE"`
	Humidity    float64 `json:"HUMIDITY"`
	Resistor    float64 `json:"RESISTOR"`
	Calendar    string  `json:"CALENDAR"`
}

// HistoryResponse is the response body of GET /data_history/{deviceId}
type HistoryResponse struct {
	Data        []HistoryRecord `json:"data"`
	TotalItems  int             `json:"totalItems"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Limit       int             `json:"limit"`
}

// NewHistoryResponse converts a page to its wire form
func NewHistoryResponse(p *HistoryPage) HistoryResponse {
	data := make([]HistoryRecord, 0, len(p.Records))
	for _, r := range p.Records {
		data = append(data, HistoryRecord{
			ID:          r.ID,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Resistor:    r.Resistor,
			Calendar:    FormatCalendar(r.CapturedAt),
		})
	}
	return HistoryResponse{
		Data:        data,
		TotalItems:  p.TotalItems,
		TotalPages:  p.TotalPages,
		CurrentPage: p.CurrentPage,
		Limit:       p.PageSize,
	}
}

// Page converts the wire form back into a HistoryPage for deviceID
func (hr HistoryResponse) Page(deviceID int) (*HistoryPage, error) {
	records := make([]*Reading, 0, len(hr.Data))
	for _, rec := range hr.Data {
		capturedAt, err := ParseCalendar(rec.Calendar)
		if err != nil {
			return nil, err
		}
		records = append(records, &Reading{
			ID:          rec.ID,
			DeviceID:    deviceID,
			Temperature: rec.Temperature,
			Humidity:    rec.Humidity,
			Resistor:    rec.Resistor,
			CapturedAt:  capturedAt,
		})
	}
	page, err := NewHistoryPage(deviceID, records, hr.TotalItems, hr.CurrentPage, hr.Limit)
	if err != nil {
		return nil, err
	}
	if page.TotalPages != hr.TotalPages {
		return nil, fmt.Errorf("totalPages %d does not match %d items at %d per page", hr.TotalPages, hr.TotalItems, hr.Limit)
	}
	return page, nil
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Message string `json:"message"`
}

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	TotalReadings  int64  `json:"total_readings"`
	UniqueDevices  int    `json:"unique_devices"`
	OldestReading  string `json:"oldest_reading,omitempty"`
	NewestReading  string `json:"newest_reading,omitempty"`
	ActiveSessions int    `json:"active_sessions"`
}
