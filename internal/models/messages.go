package models

import "encoding/json"

// Message types sent to WebSocket clients.
const (
	TypeConfig        = "config"
	TypeDecodeStarted = "decode_started"
	TypeRecord        = "record"
	TypeSkipped       = "skipped"
	TypeSummary       = "summary"
	TypeError         = "error"
)

// WSMessage is the envelope for all WebSocket communication.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DeviceConfig describes the registry and framing every decode uses.
type DeviceConfig struct {
	Devices  []uint16 `json:"devices"`
	Wildcard bool     `json:"wildcard"`
	FCS      bool     `json:"fcs"`
}

// DecodeStarted announces a new run to clients.
type DecodeStarted struct {
	Source string       `json:"source"`
	Config DeviceConfig `json:"config"`
}

// SkippedPayload describes a frame that produced no record.
type SkippedPayload struct {
	Number int    `json:"number"`
	Reason string `json:"reason"`
}

// ErrorPayload describes an error sent to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}
