package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/query"
)

// APIConfig holds the defaults applied to optional query parameters
type APIConfig struct {
	DefaultPageSize int
	RecentLimit     int
}

// APIHandler serves the read-only query endpoints
type APIHandler struct {
	service  QueryService
	sessions SessionCounter
	config   APIConfig
	logger   zerolog.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(service QueryService, cfg APIConfig, logger zerolog.Logger) *APIHandler {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = query.DefaultPageSize
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = query.DefaultRecentLimit
	}
	return &APIHandler{
		service: service,
		config:  cfg,
		logger:  logger,
	}
}

// SetSessionCounter lets /stats report open refresh channel connections
func (api *APIHandler) SetSessionCounter(sc SessionCounter) {
	api.sessions = sc
}

// HandleDevices returns the ascending list of device ids
func (api *APIHandler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := api.service.ListDevices(r.Context())
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, devices)
}

// HandleLatest returns the newest reading of a device
func (api *APIHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	deviceID, err := query.ParseDeviceID(mux.Vars(r)["deviceId"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	reading, err := api.service.GetLatest(r.Context(), deviceID)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, models.NewLatestData(reading))
}

// HandleRecent returns the most recent values of one metric for charting
func (api *APIHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	metric, err := models.ParseMetric(vars["metric"])
	if err != nil {
		api.writeError(w, r, &query.Error{Kind: query.KindInvalidArgument, Message: "Unknown metric", Err: err})
		return
	}
	deviceID, err := query.ParseDeviceID(vars["deviceId"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	values, err := api.service.GetRecentMetric(r.Context(), deviceID, metric, api.config.RecentLimit)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, values)
}

// HandleHistory returns one page of a device's readings
func (api *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, err := query.ParseDeviceID(mux.Vars(r)["deviceId"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	page, err := query.ParsePositiveInt("page", r.URL.Query().Get("page"), query.DefaultPage)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	limit, err := query.ParsePositiveInt("limit", r.URL.Query().Get("limit"), api.config.DefaultPageSize)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	result, err := api.service.GetHistory(r.Context(), deviceID, page, limit)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, models.NewHistoryResponse(result))
}

// HandleStats returns table statistics
func (api *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := api.service.Stats(r.Context())
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	resp := models.StatsResponse{
		TotalReadings: stats.TotalReadings,
		UniqueDevices: stats.UniqueDevices,
	}
	if !stats.OldestReading.IsZero() {
		resp.OldestReading = models.FormatCalendar(stats.OldestReading)
	}
	if !stats.NewestReading.IsZero() {
		resp.NewestReading = models.FormatCalendar(stats.NewestReading)
	}
	if api.sessions != nil {
		resp.ActiveSessions = api.sessions.SessionCount()
	}
	api.writeJSON(w, http.StatusOK, resp)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HandleHealth reports whether the store answers
func (api *APIHandler) HandleHealth(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := api.service.Ping(r.Context()); err != nil {
			api.logger.Warn().Err(err).Msg("Health check failed")
			api.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Version: version})
			return
		}
		api.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: version})
	}
}

// HandleNotFound answers unknown routes in the error body format
func (api *APIHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusNotFound, models.ErrorResponse{Message: "Not found"})
}

func (api *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// writeError maps err onto its status code. Internal detail is logged only.
func (api *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := query.StatusCode(err)

	var ev *zerolog.Event
	if status >= http.StatusInternalServerError {
		ev = api.logger.Error()
	} else {
		ev = api.logger.Debug()
	}
	ev.Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")

	api.writeJSON(w, status, models.ErrorResponse{Message: query.PublicMessage(err)})
}
