// Package model defines shared message structures for DriveBridge.
package model

import (
	"encoding/json"
	"time"
)

// Inbound message types accepted from websocket clients.
const (
	TypeCommand      = "command"       // raw serial pass-through
	TypeMotorControl = "motor_control" // structured joystick intent
)

// Outbound message types sent to websocket clients.
const (
	TypeResponse = "response"
	TypeError    = "error"
	TypeStatus   = "status"
)

// Motor control intents carried inside a motor_control message.
const (
	IntentForward      = "forward"
	IntentBackward     = "backward"
	IntentSpin         = "spin"
	IntentDifferential = "differential"
	IntentStop         = "stop"
)

// ClientMessage is the envelope for all inbound client traffic. Command is
// kept raw because its shape depends on Type: a plain string for "command",
// a MotorCommand object for "motor_control".
type ClientMessage struct {
	Type    string          `json:"type"`
	Command json.RawMessage `json:"command"`
}

// MotorCommand is a structured motion intent from the joystick interface.
type MotorCommand struct {
	Type       string  `json:"type"`
	Speed      float64 `json:"speed,omitempty"`
	Direction  string  `json:"direction,omitempty"`
	LeftSpeed  float64 `json:"leftSpeed,omitempty"`
	RightSpeed float64 `json:"rightSpeed,omitempty"`
}

// ResponseMessage acknowledges a client request with device output.
type ResponseMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorMessage reports a failure to the client that caused it.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatusSnapshot is an immutable point-in-time motor status broadcast to
// every connected client. SyncDrift is the absolute step difference between
// the two motor positions reported by the board.
type StatusSnapshot struct {
	Type      string    `json:"type"`
	Speed     int       `json:"speed"`
	Direction string    `json:"direction"`
	SyncDrift int       `json:"syncDrift"`
	Timestamp time.Time `json:"timestamp"`
}

// NewResponse builds a response envelope.
func NewResponse(msg string) ResponseMessage {
	return ResponseMessage{Type: TypeResponse, Message: msg}
}

// NewError builds an error envelope.
func NewError(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: msg}
}

// DriftSample is one recorded synchronization drift measurement.
type DriftSample struct {
	Drift     int       `json:"drift"`
	Timestamp time.Time `json:"timestamp"`
}
