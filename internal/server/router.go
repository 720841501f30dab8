package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/metrics"
	"github.com/afroash/corrosion-monitor/internal/models"
)

// RouterConfig wires the handlers into one http.Handler
type RouterConfig struct {
	API            *APIHandler
	Stream         *StreamHandler
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	Version        string
	Logger         zerolog.Logger
}

// NewRouter builds the route table. Query routes are served both at the
// root and under /api.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(cfg.API.HandleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		cfg.API.writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Message: "Method not allowed"})
	})

	m := cfg.Metrics
	route := func(router *mux.Router, path string, h http.HandlerFunc) {
		router.Handle(path, m.WrapHandler(path, handlers.CompressHandler(h))).Methods(http.MethodGet)
	}

	for _, router := range []*mux.Router{r, r.PathPrefix("/api").Subrouter()} {
		route(router, "/devices", cfg.API.HandleDevices)
		route(router, "/latest_data/{deviceId}", cfg.API.HandleLatest)
		route(router, "/{metric:temperature|humidity|resistor}/{deviceId}/latest", cfg.API.HandleRecent)
		route(router, "/data_history/{deviceId}", cfg.API.HandleHistory)
		route(router, "/stats", cfg.API.HandleStats)
	}

	r.Handle("/health", m.WrapHandler("/health", cfg.API.HandleHealth(cfg.Version))).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	if cfg.Stream != nil {
		r.Handle("/ws/latest", m.WrapHandler("/ws/latest", cfg.Stream)).Methods(http.MethodGet)
		r.Handle("/ws/sessions", m.WrapHandler("/ws/sessions", http.HandlerFunc(cfg.Stream.HandleSessions))).Methods(http.MethodGet)
	}

	var h http.Handler = r
	if len(cfg.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(h)
	}
	h = handlers.CustomLoggingHandler(io.Discard, h, accessLog(cfg.Logger))
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{cfg.Logger}),
		handlers.PrintRecoveryStack(true),
	)(h)
	return h
}

// accessLog writes one debug line per request through zerolog
func accessLog(logger zerolog.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Debug().
			Str("method", p.Request.Method).
			Str("path", p.URL.Path).
			Int("status", p.StatusCode).
			Int("size", p.Size).
			Dur("duration", time.Since(p.TimeStamp)).
			Msg("HTTP request")
	}
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
