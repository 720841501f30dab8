// Package client talks to the query service over HTTP and to its refresh
// channel over WebSocket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/query"
)

// APIConfig holds configuration for the HTTP client
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// APIClient calls the query service endpoints. Failures come back as
// *query.Error so callers can branch on the same kinds the server uses.
type APIClient struct {
	baseURL *url.URL
	http    *http.Client
	logger  zerolog.Logger
}

// NewAPIClient creates a client for the service at cfg.BaseURL
func NewAPIClient(cfg APIConfig, logger zerolog.Logger) (*APIClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "api_client").Logger(),
	}, nil
}

// ListDevices calls GET /devices
func (c *APIClient) ListDevices(ctx context.Context) (*models.DeviceList, error) {
	var list models.DeviceList
	if err := c.get(ctx, nil, &list, "devices"); err != nil {
		return nil, err
	}
	if list.Devices == nil {
		list.Devices = []int{}
	}
	return &list, nil
}

// GetLatest calls GET /latest_data/{deviceId}
func (c *APIClient) GetLatest(ctx context.Context, deviceID int) (*models.Reading, error) {
	var latest models.LatestData
	if err := c.get(ctx, nil, &latest, "latest_data", strconv.Itoa(deviceID)); err != nil {
		return nil, err
	}
	reading, err := latest.Reading()
	if err != nil {
		return nil, malformed(err)
	}
	return reading, nil
}

// GetRecent calls GET /{metric}/{deviceId}/latest
func (c *APIClient) GetRecent(ctx context.Context, deviceID int, metric models.Metric) ([]models.RecentValue, error) {
	var values []models.RecentValue
	if err := c.get(ctx, nil, &values, string(metric), strconv.Itoa(deviceID), "latest"); err != nil {
		return nil, err
	}
	return values, nil
}

// GetHistory calls GET /data_history/{deviceId}?page=&limit=
func (c *APIClient) GetHistory(ctx context.Context, deviceID int, page, pageSize int) (*models.HistoryPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(pageSize))

	var resp models.HistoryResponse
	if err := c.get(ctx, params, &resp, "data_history", strconv.Itoa(deviceID)); err != nil {
		return nil, err
	}
	result, err := resp.Page(deviceID)
	if err != nil {
		return nil, malformed(err)
	}
	return result, nil
}

func (c *APIClient) get(ctx context.Context, params url.Values, v interface{}, segments ...string) error {
	u := c.baseURL.JoinPath(segments...)
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &query.Error{Kind: query.KindUnknown, Message: "Failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &query.Error{Kind: query.KindUnknown, Message: "request cancelled", Err: err}
		}
		return &query.Error{Kind: query.KindStoreUnavailable, Message: "Query service unreachable", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("url", u.String()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Query completed")

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return malformed(err)
	}
	return nil
}

// statusError rebuilds the query error a non-200 response stands for
func statusError(resp *http.Response) error {
	var body models.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}

	kind := query.KindUnknown
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		kind = query.KindInvalidArgument
	case resp.StatusCode == http.StatusNotFound:
		kind = query.KindNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		kind = query.KindStoreUnavailable
	}
	return &query.Error{
		Kind:    kind,
		Message: body.Message,
		Err:     errors.New(resp.Status),
	}
}

func malformed(err error) error {
	return &query.Error{Kind: query.KindUnknown, Message: "Malformed response", Err: err}
}
