package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MessageType represents the type of a refresh channel message
type MessageType string

const (
	MessageTypeUpdate MessageType = "UPDATE"
	MessageTypeError  MessageType = "ERROR"
)

// Message is the envelope for all refresh channel events sent to the UI
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Message   string          `json:"message,omitempty"`
	DeviceID  int             `json:"deviceId,omitempty"` // device an ERROR refers to
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadJSON,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewUpdateMessage wraps a reading in an UPDATE event
func NewUpdateMessage(r *Reading) (*Message, error) {
	return NewMessage(MessageTypeUpdate, NewLatestData(r))
}

// NewErrorMessage creates an ERROR event carrying a display message
func NewErrorMessage(message string) *Message {
	return &Message{
		Type:      MessageTypeError,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeviceErrorMessage creates an ERROR event for a failed refresh of deviceID
func NewDeviceErrorMessage(deviceID int, message string) *Message {
	msg := NewErrorMessage(message)
	msg.DeviceID = deviceID
	return msg
}

// UnmarshalPayload unmarshals the message payload into the provided struct
func (m *Message) UnmarshalPayload(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", m.Type)
	}
	return json.Unmarshal(m.Payload, v)
}

// SubscribeMessage is sent by the UI to (re)target the refresh channel.
// deviceId is accepted as a JSON number or a numeric string.
type SubscribeMessage struct {
	DeviceID int `json:"deviceId"`
}

// UnmarshalJSON implements json.Unmarshaler
func (s *SubscribeMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		DeviceID json.RawMessage `json:"deviceId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value := bytes.Trim(bytes.TrimSpace(raw.DeviceID), `"`)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return fmt.Errorf("deviceId is required")
	}
	id, err := strconv.Atoi(string(value))
	if err != nil {
		return fmt.Errorf("invalid deviceId %q", value)
	}
	s.DeviceID = id
	return nil
}
