// Package flow keeps the running per-device state of a decoding run: the
// keyframe window used to anchor ticks and the previous values used for
// delta and rollover reporting.
package flow

import (
	"fmt"
	"sort"
	"time"

	"tickstamp/internal/timestamp"
)

// DeviceState is created on the first frame seen for a device.
type DeviceState struct {
	ID     uint16
	Window timestamp.Window

	prevTicks       uint32
	hasPrevTicks    bool
	prevCaptureTime time.Time // zero until the first frame
	prevUTCNanos    uint64    // zero until the first decoded frame

	Frames    int
	Keyframes int
	Rollovers int
}

// Deltas are computed against the device's previous frame.
type Deltas struct {
	HWDeltaTicks  uint32
	Rollover      bool
	PcapDeltaNs   int64
	UTCDeltaNanos int64
}

// Tracker owns the DeviceState table. It is not safe for concurrent use;
// one tracker serves one ordered run.
type Tracker struct {
	devices map[uint16]*DeviceState
}

// NewTracker creates an empty state table.
func NewTracker() *Tracker {
	return &Tracker{devices: make(map[uint16]*DeviceState)}
}

// Device returns the state of id, creating it if needed.
func (t *Tracker) Device(id uint16) *DeviceState {
	d, ok := t.devices[id]
	if !ok {
		d = &DeviceState{ID: id}
		t.devices[id] = d
	}
	return d
}

// Devices returns a copy of every device state, ordered by id.
func (t *Tracker) Devices() []DeviceState {
	out := make([]DeviceState, 0, len(t.devices))
	for _, d := range t.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddKeyframe slides kf into the device's window.
func (d *DeviceState) AddKeyframe(kf timestamp.Keyframe) {
	d.Window.Push(kf)
	d.Keyframes++
}

// Track records a frame and returns its deltas. utcNanos of 0 means the
// frame could not be decoded; it neither produces a UTC delta nor replaces
// the previous decoded time.
func (d *DeviceState) Track(ticks uint32, captureTime time.Time, utcNanos uint64) Deltas {
	var out Deltas

	if d.hasPrevTicks {
		out.HWDeltaTicks, out.Rollover = timestamp.DeltaTicks(ticks, d.prevTicks)
	}
	if !d.prevCaptureTime.IsZero() {
		out.PcapDeltaNs = captureTime.Sub(d.prevCaptureTime).Nanoseconds()
	}
	if utcNanos != 0 && d.prevUTCNanos != 0 {
		out.UTCDeltaNanos = int64(utcNanos - d.prevUTCNanos)
	}

	d.prevTicks = ticks
	d.hasPrevTicks = true
	d.prevCaptureTime = captureTime
	if utcNanos != 0 {
		d.prevUTCNanos = utcNanos
	}

	d.Frames++
	if out.Rollover {
		d.Rollovers++
	}
	return out
}

// String returns a human-readable description of the device state.
func (d *DeviceState) String() string {
	return fmt.Sprintf("device %d frames=%d keyframes=%d rollovers=%d window=%d",
		d.ID, d.Frames, d.Keyframes, d.Rollovers, d.Window.Len())
}
