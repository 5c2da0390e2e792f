// Package timestamp converts raw 31-bit hardware tick counters into UTC
// nanoseconds using the keyframes a device periodically emits.
package timestamp

import (
	"math"
	"time"
)

const (
	// TickLengthNS is the tick period of the 350 MHz reference clock.
	TickLengthNS = 20.0 / 7.0

	// TickModulus is the wrap point of the 31-bit counter.
	TickModulus = 1<<31 - 1

	tickMask  = 0x7FFFFFFF
	halfRange = (1 << 31) / 2
)

// MaskTicks keeps the low 31 bits of a device clock value.
func MaskTicks(clock uint64) uint32 {
	return uint32(clock & tickMask)
}

// UnpackTicks rebuilds the 31-bit counter from the 32-bit wire field.
// Bit 7 of the field is not part of the counter; bits 8..31 hold the
// counter's bits 7..30.
func UnpackTicks(raw uint32) uint32 {
	return ((raw & 0xFFFFFF00) >> 1) | (raw & 0x7F)
}

// TicksToNanos converts a tick count to nanoseconds.
func TicksToNanos(ticks uint32) float64 {
	return float64(ticks) * TickLengthNS
}

// DeltaTicks returns cur-prev in counter space. rollover is set when the
// counter wrapped; more than one wrap between the two values is not
// detectable.
func DeltaTicks(cur, prev uint32) (delta uint32, rollover bool) {
	d := int64(cur) - int64(prev)
	if d < 0 {
		d += TickModulus
		rollover = true
	}
	return uint32(d), rollover
}

// Decode returns the UTC time in nanoseconds of target ticks, anchored on
// one of the keyframes in w. It returns 0 when no anchor applies.
//
// Targets less than half the counter range ahead of the latest keyframe
// are anchored on it; targets behind it (or far ahead, i.e. from before a
// wrap) fall back to the previous keyframe. At most one wrap between the
// anchor and the target is accounted for.
func Decode(target uint32, w Window) uint64 {
	kf, ok := w.Latest()
	if !ok {
		return 0
	}
	prev, hasPrev := w.Previous()
	k1 := kf.ASICTicks

	var anchor Keyframe
	switch {
	case target == k1:
		return kf.UTCNanos
	case target > k1:
		if target-k1 < halfRange {
			anchor = kf
		} else if hasPrev {
			anchor = prev
		} else {
			return 0
		}
	default:
		if k1-target < halfRange {
			if !hasPrev {
				return 0
			}
			anchor = prev
		} else {
			anchor = kf
		}
	}

	diff := int64(target) - int64(anchor.ASICTicks)
	if diff < 0 {
		diff += TickModulus
	}
	return anchor.UTCNanos + uint64(math.Round(float64(diff)*TickLengthNS))
}

// Time converts UTC nanoseconds to a time.Time. Values past the int64 range
// are clamped to its maximum.
func Time(utcNanos uint64) time.Time {
	if utcNanos > math.MaxInt64 {
		utcNanos = math.MaxInt64
	}
	return time.Unix(0, int64(utcNanos)).UTC()
}
