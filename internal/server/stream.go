package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/metrics"
	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/query"
	"github.com/afroash/corrosion-monitor/internal/refresh"
)

// Constants for WebSocket timeouts
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamHandler serves the background refresh channel. Each connection
// owns a refresh.Scheduler that the client retargets by sending
// {"deviceId": n}; every tick is pushed back as an UPDATE or ERROR message.
type StreamHandler struct {
	upgrader       websocket.Upgrader
	fetcher        refresh.Fetcher
	interval       time.Duration
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	allowedOrigins []string
	sessions       map[string]*Session
	mutex          sync.RWMutex
}

// Session describes one open refresh channel connection
type Session struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	DeviceID    int       `json:"device_id"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSent    time.Time `json:"last_sent"`

	conn *websocket.Conn
}

// NewStreamHandler creates a refresh channel handler
func NewStreamHandler(fetcher refresh.Fetcher, interval time.Duration, m *metrics.Metrics, logger zerolog.Logger, allowedOrigins ...string) *StreamHandler {
	h := &StreamHandler{
		fetcher:        fetcher,
		interval:       interval,
		metrics:        m,
		logger:         logger.With().Str("component", "stream").Logger(),
		allowedOrigins: allowedOrigins,
		sessions:       make(map[string]*Session),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: origin not in allowlist")
	return false
}

// ServeHTTP upgrades the request. An optional ?deviceId= starts the
// scheduler before the first client message.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var initial *int
	if raw := r.URL.Query().Get("deviceId"); raw != "" {
		id, err := query.ParseDeviceID(raw)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(query.StatusCode(err))
			json.NewEncoder(w).Encode(models.ErrorResponse{Message: query.PublicMessage(err)})
			return
		}
		initial = &id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	h.handleConnection(conn, initial)
}

// handleConnection manages a single WebSocket connection
func (h *StreamHandler) handleConnection(conn *websocket.Conn, initialDevice *int) {
	session := &Session{
		ID:          uuid.NewString(),
		RemoteAddr:  conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
		conn:        conn,
	}
	logger := h.logger.With().Str("session_id", session.ID).Logger()

	h.mutex.Lock()
	h.sessions[session.ID] = session
	h.mutex.Unlock()
	h.metrics.SessionOpened()
	logger.Info().Str("remote_addr", session.RemoteAddr).Msg("Refresh channel opened")

	scheduler := refresh.NewScheduler(h.fetcher, h.interval, logger)
	updates, unsubscribe := scheduler.Subscribe()
	outbox := make(chan *models.Message, 8)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(conn, session.ID, updates, outbox, done, logger)
	}()

	defer func() {
		scheduler.Stop()
		unsubscribe()
		close(done)
		wg.Wait()
		conn.Close()
		h.removeSession(session.ID)
		h.metrics.SessionClosed()
		logger.Info().Msg("Refresh channel closed")
	}()

	if initialDevice != nil {
		h.retarget(scheduler, session.ID, *initialDevice, logger)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Read loop
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		var sub models.SubscribeMessage
		if err := json.Unmarshal(data, &sub); err != nil {
			logger.Debug().Err(err).Msg("Invalid subscribe message")
			select {
			case outbox <- models.NewErrorMessage("Invalid Device ID format"):
			default:
			}
			continue
		}
		h.retarget(scheduler, session.ID, sub.DeviceID, logger)
	}
}

func (h *StreamHandler) retarget(scheduler *refresh.Scheduler, sessionID string, deviceID int, logger zerolog.Logger) {
	logger.Debug().Int("device_id", deviceID).Msg("Retargeting refresh channel")

	h.mutex.Lock()
	if s, ok := h.sessions[sessionID]; ok {
		s.DeviceID = deviceID
	}
	h.mutex.Unlock()

	scheduler.SetDevice(deviceID)
}

// writeLoop is the only writer on conn
func (h *StreamHandler) writeLoop(conn *websocket.Conn, sessionID string, updates <-chan refresh.Update, outbox <-chan *models.Message, done <-chan struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var msg *models.Message
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug().Err(err).Msg("Failed to send ping")
				return
			}
			continue
		case msg = <-outbox:
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.metrics.RefreshTick(u.Err)
			msg = h.updateMessage(u, logger)
		}

		if msg == nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Warn().Err(err).Msg("Failed to send refresh message")
			return
		}
		h.touchSession(sessionID)
	}
}

func (h *StreamHandler) updateMessage(u refresh.Update, logger zerolog.Logger) *models.Message {
	if u.Err != nil {
		return models.NewDeviceErrorMessage(u.DeviceID, query.PublicMessage(u.Err))
	}
	msg, err := models.NewUpdateMessage(u.Reading)
	if err != nil {
		logger.Error().Err(err).Int("device_id", u.DeviceID).Msg("Failed to create update message")
		return models.NewDeviceErrorMessage(u.DeviceID, "Internal server error")
	}
	return msg
}

func (h *StreamHandler) touchSession(sessionID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if s, ok := h.sessions[sessionID]; ok {
		s.LastSent = time.Now()
	}
}

func (h *StreamHandler) removeSession(sessionID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.sessions, sessionID)
}

// CloseAll closes every open connection. Their handlers then clean up
// as if the client had gone away.
func (h *StreamHandler) CloseAll() {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, s := range h.sessions {
		s.conn.Close()
	}
}

// SessionCount returns the number of open connections
func (h *StreamHandler) SessionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessions)
}

// Sessions returns a snapshot of the open connections
func (h *StreamHandler) Sessions() []Session {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	sessions := make([]Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, *s)
	}
	return sessions
}

// HandleSessions lists the open refresh channel connections
func (h *StreamHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.Sessions()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Session-Count", strconv.Itoa(len(sessions)))
	json.NewEncoder(w).Encode(sessions)
}
