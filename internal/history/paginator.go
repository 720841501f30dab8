// Package history holds one page of a device's readings at a time and
// computes the page selector shown beneath it.
package history

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/query"
)

// Fetcher issues a history query.
// query.Service and client.APIClient both implement it.
type Fetcher interface {
	GetHistory(ctx context.Context, deviceID int, page, pageSize int) (*models.HistoryPage, error)
}

// Status is what the presentation layer should show for the held page
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusEmpty
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusEmpty:
		return "empty"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// State is a snapshot of the paginator.
// 1 <= CurrentPage <= max(TotalPages, 1) holds for every snapshot.
type State struct {
	DeviceID    int
	Records     []*models.Reading
	CurrentPage int
	TotalPages  int
	TotalItems  int
	PageSize    int
	Status      Status
	Err         error
}

// Paginator fetches one history page at a time for a selected device.
//
// Records, CurrentPage and TotalPages change together on success. A failed
// load clears Records and keeps the page counters it had. Responses to
// requests superseded by a newer load or device change are dropped.
type Paginator struct {
	fetcher Fetcher
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
	seq   uint64
}

// NewPaginator creates a paginator with the given page size
func NewPaginator(fetcher Fetcher, pageSize int, logger zerolog.Logger) *Paginator {
	if pageSize <= 0 {
		pageSize = query.DefaultPageSize
	}
	return &Paginator{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "history").Logger(),
		state: State{
			CurrentPage: 1,
			PageSize:    pageSize,
		},
	}
}

// State returns a copy of the current state
func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	s.Records = append([]*models.Reading(nil), p.state.Records...)
	return s
}

// Window returns the page selector for the current state
func (p *Paginator) Window() []PageItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Window(p.state.CurrentPage, p.state.TotalPages, WindowDelta)
}

// SetDevice switches to a device and loads its first page
func (p *Paginator) SetDevice(ctx context.Context, deviceID int) {
	p.mu.Lock()
	p.state = State{
		DeviceID:    deviceID,
		CurrentPage: 1,
		PageSize:    p.state.PageSize,
	}
	p.mu.Unlock()

	p.LoadPage(ctx, deviceID, 1)
}

// GoTo loads page n of the current device. Requests outside
// [1, TotalPages] are ignored and reported as false.
func (p *Paginator) GoTo(ctx context.Context, n int) bool {
	p.mu.Lock()
	deviceID := p.state.DeviceID
	total := p.state.TotalPages
	p.mu.Unlock()

	if n < 1 || n > total {
		return false
	}
	p.LoadPage(ctx, deviceID, n)
	return true
}

// Next moves one page forward if possible
func (p *Paginator) Next(ctx context.Context) bool {
	return p.GoTo(ctx, p.State().CurrentPage+1)
}

// Prev moves one page back if possible
func (p *Paginator) Prev(ctx context.Context) bool {
	return p.GoTo(ctx, p.State().CurrentPage-1)
}

// LoadPage fetches a page and installs it unless a newer request was
// issued in the meantime. Failures end up in State; nothing is returned.
func (p *Paginator) LoadPage(ctx context.Context, deviceID, page int) {
	if page < 1 {
		page = 1
	}

	p.mu.Lock()
	p.seq++
	seq := p.seq
	if p.state.DeviceID != deviceID {
		p.state = State{DeviceID: deviceID, CurrentPage: 1, PageSize: p.state.PageSize}
	}
	p.state.Status = StatusLoading
	p.state.Err = nil
	pageSize := p.state.PageSize
	p.mu.Unlock()

	result, err := p.fetcher.GetHistory(ctx, deviceID, page, pageSize)

	// An out-of-range page means the history shrank; settle on its last page
	if err == nil && result != nil && result.TotalPages > 0 && result.CurrentPage > result.TotalPages {
		p.logger.Debug().
			Int("device_id", deviceID).
			Int("page", page).
			Int("total_pages", result.TotalPages).
			Msg("Requested page past the end, loading last page")
		result, err = p.fetcher.GetHistory(ctx, deviceID, result.TotalPages, pageSize)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != p.seq {
		p.logger.Debug().
			Int("device_id", deviceID).
			Int("page", page).
			Msg("Discarding superseded history response")
		return
	}

	switch {
	case err == nil && result == nil:
		p.fail(deviceID, page, errors.New("empty history response"))
	case err == nil:
		p.state = State{
			DeviceID:    deviceID,
			Records:     result.Records,
			CurrentPage: clampPage(result.CurrentPage, result.TotalPages),
			TotalPages:  result.TotalPages,
			TotalItems:  result.TotalItems,
			PageSize:    pageSize,
			Status:      StatusLoaded,
		}
		if result.TotalItems == 0 {
			p.state.Status = StatusEmpty
		}
	case errors.Is(err, query.ErrNotFound):
		p.state = State{
			DeviceID:    deviceID,
			Records:     nil,
			CurrentPage: 1,
			PageSize:    pageSize,
			Status:      StatusEmpty,
		}
	default:
		p.fail(deviceID, page, err)
	}
}

// fail records a load error. Callers hold p.mu.
func (p *Paginator) fail(deviceID, page int, err error) {
	p.logger.Warn().
		Err(err).
		Int("device_id", deviceID).
		Int("page", page).
		Msg("Failed to load history page")

	p.state.Records = nil
	p.state.CurrentPage = clampPage(p.state.CurrentPage, p.state.TotalPages)
	p.state.Status = StatusError
	p.state.Err = err
}

func clampPage(page, totalPages int) int {
	upper := max(totalPages, 1)
	if page < 1 {
		return 1
	}
	if page > upper {
		return upper
	}
	return page
}
