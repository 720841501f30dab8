package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/query"
)

// ConnectionState represents the current state of the connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

const writeWait = 10 * time.Second

// StreamConfig holds configuration for the refresh channel client
type StreamConfig struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	PongTimeout          time.Duration
}

// Event is one refresh channel message decoded for the UI.
// Exactly one of Reading and Err is set.
type Event struct {
	DeviceID int
	Reading  *models.Reading
	Err      error
	At       time.Time
}

// StreamClient keeps a refresh channel subscription alive. It reconnects
// with exponential backoff and re-sends the current device after every
// reconnect.
type StreamClient struct {
	url                      string
	conn                     *websocket.Conn
	state                    ConnectionState
	deviceID                 int
	stateMutex               sync.RWMutex
	writeMutex               sync.Mutex
	logger                   zerolog.Logger
	reconnectInterval        time.Duration
	maxReconnectInterval     time.Duration
	currentReconnectInterval time.Duration
	pongTimeout              time.Duration
	events                   chan Event
}

// NewStreamClient creates a refresh channel client for deviceID
func NewStreamClient(config StreamConfig, deviceID int, logger zerolog.Logger) *StreamClient {
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = time.Second
	}
	if config.MaxReconnectInterval < config.ReconnectInterval {
		config.MaxReconnectInterval = 30 * time.Second
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = 90 * time.Second
	}
	return &StreamClient{
		url:                      config.URL,
		state:                    StateDisconnected,
		deviceID:                 deviceID,
		logger:                   logger.With().Str("component", "stream_client").Logger(),
		reconnectInterval:        config.ReconnectInterval,
		maxReconnectInterval:     config.MaxReconnectInterval,
		currentReconnectInterval: config.ReconnectInterval,
		pongTimeout:              config.PongTimeout,
		events:                   make(chan Event, 1),
	}
}

// StreamURL derives the refresh channel URL from an HTTP base URL
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("base url %q must be http or https", baseURL)
	}
	u.Path = ""
	u.RawPath = ""
	return u.JoinPath("ws", "latest").String(), nil
}

// Events returns the channel events are delivered on. Only the newest
// undelivered event is kept.
func (c *StreamClient) Events() <-chan Event {
	return c.events
}

// setState safely updates the connection state
func (c *StreamClient) setState(state ConnectionState) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.state = state
	c.logger.Info().Str("state", state.String()).Msg("Connection state updated")
}

// State returns the current connection state
func (c *StreamClient) State() ConnectionState {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.state
}

// IsConnected returns true if currently connected
func (c *StreamClient) IsConnected() bool {
	return c.State() == StateConnected
}

// DeviceID returns the device the client is subscribed to
func (c *StreamClient) DeviceID() int {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.deviceID
}

// SetDevice retargets the subscription. When disconnected the new device
// is sent on the next connect.
func (c *StreamClient) SetDevice(deviceID int) error {
	c.stateMutex.Lock()
	c.deviceID = deviceID
	connected := c.state == StateConnected
	c.stateMutex.Unlock()

	// Drop an event for the previous device that the UI has not read yet
	select {
	case <-c.events:
	default:
	}

	if !connected {
		return nil
	}
	return c.subscribe(deviceID)
}

// Connect establishes a WebSocket connection and subscribes
func (c *StreamClient) Connect(ctx context.Context) error {
	c.setState(StateConnecting)
	c.logger.Info().Str("url", c.url).Msg("Connecting to refresh channel...")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial failed: %w", err)
	}
	defer resp.Body.Close()

	c.stateMutex.Lock()
	c.conn = conn
	c.stateMutex.Unlock()
	c.setState(StateConnected)
	c.currentReconnectInterval = c.reconnectInterval // reset backoff

	if err := c.subscribe(c.DeviceID()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send subscription")
		c.disconnect()
		return err
	}
	return nil
}

// subscribe sends {"deviceId": n} on the current connection
func (c *StreamClient) subscribe(deviceID int) error {
	c.stateMutex.RLock()
	conn := c.conn
	c.stateMutex.RUnlock()
	if conn == nil {
		return errors.New("not connected")
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(models.SubscribeMessage{DeviceID: deviceID}); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}
	c.logger.Debug().Int("device_id", deviceID).Msg("Subscribed")
	return nil
}

// Run starts the connection manager with auto-reconnect.
// Blocks until context is cancelled.
func (c *StreamClient) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.Connect(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Connection failed")
			c.emit(Event{
				DeviceID: c.DeviceID(),
				Err:      &query.Error{Kind: query.KindStoreUnavailable, Message: "Refresh channel unavailable", Err: err},
				At:       time.Now(),
			})
			c.waitBeforeReconnect(ctx)
			continue
		}

		c.readLoop(ctx)
		c.disconnect()

		c.logger.Info().Msg("Connection lost, will reconnect")
		c.waitBeforeReconnect(ctx)
	}
}

// waitBeforeReconnect waits before next reconnection attempt with exponential backoff
func (c *StreamClient) waitBeforeReconnect(ctx context.Context) {
	c.logger.Info().Dur("delay", c.currentReconnectInterval).Msg("Waiting before reconnect")
	select {
	case <-time.After(c.currentReconnectInterval):
	case <-ctx.Done():
		return
	}
	c.currentReconnectInterval *= 2
	if c.currentReconnectInterval > c.maxReconnectInterval {
		c.currentReconnectInterval = c.maxReconnectInterval
	}
}

// readLoop reads messages until the connection fails or ctx is done
func (c *StreamClient) readLoop(ctx context.Context) {
	c.stateMutex.RLock()
	conn := c.conn
	c.stateMutex.RUnlock()

	c.logger.Debug().Msg("Starting read loop")
	defer c.logger.Debug().Msg("Read loop stopped")

	// Unblock ReadJSON on cancellation
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
		c.writeMutex.Lock()
		defer c.writeMutex.Unlock()
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("Read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
		c.handleMessage(&msg)
	}
}

// handleMessage converts a refresh channel message into an Event
func (c *StreamClient) handleMessage(msg *models.Message) {
	c.logger.Debug().Str("type", string(msg.Type)).Msg("Received message")
	current := c.DeviceID()

	switch msg.Type {
	case models.MessageTypeUpdate:
		var latest models.LatestData
		if err := msg.UnmarshalPayload(&latest); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to unmarshal update")
			return
		}
		if latest.Device != current {
			c.logger.Debug().Int("device_id", latest.Device).Msg("Dropping update for previous device")
			return
		}
		reading, err := latest.Reading()
		if err != nil {
			c.logger.Warn().Err(err).Msg("Invalid update payload")
			return
		}
		c.emit(Event{DeviceID: current, Reading: reading, At: msg.Timestamp})
	case models.MessageTypeError:
		// errors without a device answer the last subscribe message
		if msg.DeviceID != 0 && msg.DeviceID != current {
			c.logger.Debug().Int("device_id", msg.DeviceID).Msg("Dropping error for previous device")
			return
		}
		c.emit(Event{
			DeviceID: current,
			Err:      &query.Error{Kind: query.KindUnknown, Message: msg.Message},
			At:       msg.Timestamp,
		})
	default:
		c.logger.Debug().Str("type", string(msg.Type)).Msg("Unknown message type")
	}
}

// emit delivers ev, replacing any undelivered event
func (c *StreamClient) emit(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

// disconnect closes the WebSocket connection
func (c *StreamClient) disconnect() {
	c.stateMutex.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.stateMutex.Unlock()
	c.logger.Info().Msg("Connection disconnected")
}

// Close gracefully shuts down the connection
func (c *StreamClient) Close() error {
	c.logger.Info().Msg("Closing connection")

	c.stateMutex.RLock()
	conn := c.conn
	c.stateMutex.RUnlock()

	if conn != nil {
		c.writeMutex.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMutex.Unlock()
	}
	c.disconnect()
	return nil
}

// String describes the client for logs
func (c *StreamClient) String() string {
	return c.url + " device=" + strconv.Itoa(c.DeviceID())
}
