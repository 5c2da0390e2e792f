package models

import "time"

// DecodedRecord is the result of timestamping one captured frame.
type DecodedRecord struct {
	Number        int       `json:"number"`
	PcapTimestamp time.Time `json:"pcapTimestamp"`
	PcapDeltaNs   int64     `json:"pcapDeltaNs"`
	HWTicks       uint32    `json:"hwTicks"`
	HWDeltaTicks  uint32    `json:"hwDeltaTicks"`
	UTCNanos      uint64    `json:"utcNanos"`
	UTCDeltaNs    int64     `json:"utcDeltaNs"`
	Rollover      bool      `json:"rollover"`
	IsKeyframe    bool      `json:"isKeyframe"`
	DeviceID      uint16    `json:"deviceId"`
	VLAN          uint16    `json:"vlan,omitempty"`
	Tagged        bool      `json:"tagged,omitempty"`
	SrcIP         string    `json:"srcIp,omitempty"`
}

// Decoded reports whether a UTC time could be reconstructed.
func (r DecodedRecord) Decoded() bool {
	return r.UTCNanos != 0
}

// Summary counts the outcome of one run.
type Summary struct {
	Frames      int `json:"frames"`
	Keyframes   int `json:"keyframes"`
	Decoded     int `json:"decoded"`
	Undecodable int `json:"undecodable"`
	Skipped     int `json:"skipped"`
	Rollovers   int `json:"rollovers"`
	Devices     int `json:"devices"`
}
