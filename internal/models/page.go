package models

import (
	"fmt"
	"math"
)

// DeviceList is the ascending set of device ids present in the store
type DeviceList struct {
	Devices []int `json:"devices"`
}

// HistoryPage is one page of a device's readings, newest first
type HistoryPage struct {
	DeviceID    int
	Records     []*Reading
	TotalItems  int
	TotalPages  int
	CurrentPage int
	PageSize    int
}

// TotalPages returns ceil(totalItems / pageSize)
func TotalPages(totalItems, pageSize int) int {
	if pageSize <= 0 || totalItems <= 0 {
		return 0
	}
	return (totalItems + pageSize - 1) / pageSize
}

// PageOffset returns the number of rows skipped before the given 1-based page.
// It saturates at math.MaxInt instead of wrapping.
func PageOffset(page, pageSize int) int {
	if page <= 1 || pageSize <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// NewHistoryPage builds a validated page. Records beyond pageSize are rejected
// rather than truncated so a store bug cannot silently leak into responses.
func NewHistoryPage(deviceID int, records []*Reading, totalItems, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be positive, got %d", page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if totalItems < 0 {
		return nil, fmt.Errorf("total items must not be negative, got %d", totalItems)
	}
	if len(records) > pageSize {
		return nil, fmt.Errorf("page holds %d records, page size is %d", len(records), pageSize)
	}
	if records == nil {
		records = []*Reading{}
	}
	return &HistoryPage{
		DeviceID:    deviceID,
		Records:     records,
		TotalItems:  totalItems,
		TotalPages:  TotalPages(totalItems, pageSize),
		CurrentPage: page,
		PageSize:    pageSize,
	}, nil
}

// InRange reports whether the current page lies within [1, TotalPages]
func (p *HistoryPage) InRange() bool {
	return p.CurrentPage >= 1 && p.CurrentPage <= p.TotalPages
}
