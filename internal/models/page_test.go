// internal/models/page_test.go
package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		items, size, want int
	}{
		{0, 5, 0},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{12, 5, 3},
		{12, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.items, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.items, tt.size, got, tt.want)
		}
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page, size, want int
	}{
		{1, 5, 0},
		{3, 5, 10},
		{0, 5, 0},
		{2, 0, 0},
		{4611686018427387905, 4, math.MaxInt},
		{math.MaxInt, math.MaxInt, math.MaxInt},
	}
	for _, tt := range tests {
		if got := PageOffset(tt.page, tt.size); got != tt.want {
			t.Errorf("PageOffset(%d, %d) = %d, want %d", tt.page, tt.size, got, tt.want)
		}
	}
}

func TestNewHistoryPage(t *testing.T) {
	records := []*Reading{{ID: 1}, {ID: 2}}

	page, err := NewHistoryPage(9, records, 12, 2, 5)
	if err != nil {
		t.Fatalf("NewHistoryPage failed: %v", err)
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}
	if !page.InRange() {
		t.Error("page 2 of 3 should be in range")
	}

	if _, err := NewHistoryPage(9, records, 12, 0, 5); err == nil {
		t.Error("expected error for page 0")
	}
	if _, err := NewHistoryPage(9, records, 12, 1, 0); err == nil {
		t.Error("expected error for page size 0")
	}
	if _, err := NewHistoryPage(9, records, 12, 1, 1); err == nil {
		t.Error("expected error when records exceed page size")
	}

	empty, err := NewHistoryPage(9, nil, 12, 7, 5)
	if err != nil {
		t.Fatalf("NewHistoryPage failed: %v", err)
	}
	if empty.Records == nil || len(empty.Records) != 0 {
		t.Error("nil records should become an empty slice")
	}
	if empty.InRange() {
		t.Error("page 7 of 3 should be out of range")
	}
}

func TestHistoryResponse_RoundTrip(t *testing.T) {
	captured := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
	page, err := NewHistoryPage(9, []*Reading{
		{ID: 10, DeviceID: 9, Temperature: 21, Humidity: 50, Resistor: 0.1, CapturedAt: captured},
	}, 6, 2, 5)
	if err != nil {
		t.Fatalf("NewHistoryPage failed: %v", err)
	}

	data, err := json.Marshal(NewHistoryResponse(page))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"data", "totalItems", "totalPages", "currentPage", "limit"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("response missing key %q", key)
		}
	}

	var decoded HistoryResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Data[0].Calendar != "2024-05-01T10:05:00Z" {
		t.Errorf("CALENDAR = %q, want ISO 8601 UTC", decoded.Data[0].Calendar)
	}

	back, err := decoded.Page(9)
	if err != nil {
		t.Fatalf("Page() failed: %v", err)
	}
	if !back.Records[0].CapturedAt.Equal(captured) {
		t.Errorf("CapturedAt = %v, want %v", back.Records[0].CapturedAt, captured)
	}
}

func TestHistoryResponse_PageRejectsInconsistentTotals(t *testing.T) {
	resp := HistoryResponse{TotalItems: 12, TotalPages: 4, CurrentPage: 1, Limit: 5}
	if _, err := resp.Page(9); err == nil {
		t.Error("expected error when totalPages disagrees with totalItems")
	}
}

func TestLatestData_Keys(t *testing.T) {
	r := &Reading{ID: 2, DeviceID: 7, Temperature: 21, CapturedAt: time.Date(2024, 5, 1, 10, 5, 0, 0, time.FixedZone("ICT", 7*3600))}
	data, err := json.Marshal(NewLatestData(r))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	for _, key := range []string{"DEVICE", "TEMPERATURE", "HUMIDITY", "RESISTOR", "CALENDAR"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("latest data missing key %q", key)
		}
	}
	if raw["CALENDAR"] != "2024-05-01T03:05:00Z" {
		t.Errorf("CALENDAR = %v, want UTC rendering", raw["CALENDAR"])
	}
}

func TestLatestData_KeepsFractionalSeconds(t *testing.T) {
	captured := time.Date(2024, 5, 1, 10, 5, 0, 250_000_000, time.UTC)
	r := &Reading{ID: 3, DeviceID: 7, Temperature: 21, CapturedAt: captured}

	data, err := json.Marshal(NewLatestData(r))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var latest LatestData
	if err := json.Unmarshal(data, &latest); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if latest.Calendar != "2024-05-01T10:05:00.25Z" {
		t.Errorf("CALENDAR = %q", latest.Calendar)
	}

	back, err := latest.Reading()
	if err != nil {
		t.Fatalf("Reading failed: %v", err)
	}
	if !back.CapturedAt.Equal(captured) {
		t.Errorf("CapturedAt = %v, want %v", back.CapturedAt, captured)
	}
}
