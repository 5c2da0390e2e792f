// Package errs defines the error taxonomy of a decoding run and helpers to
// classify errors as fatal (abort the run) or skip (drop one frame and go on).
package errs

import (
	"errors"
	"fmt"
)

// ErrorClass tells the stream driver how to react to an error.
type ErrorClass int

const (
	// ClassSkip drops the current frame; processing continues.
	ClassSkip ErrorClass = iota
	// ClassFatal aborts the whole run.
	ClassFatal
)

// String returns the string representation of ErrorClass
func (c ErrorClass) String() string {
	switch c {
	case ClassSkip:
		return "skip"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyRegistry  = errors.New("device registry is empty")
	ErrMalformedFrame = errors.New("malformed frame")
)

// ConfigError reports an unusable configuration, detected before any frame
// is processed.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Reason, e.Err)
	}
	return "config: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InputError reports a capture file that cannot be opened, read or written.
type InputError struct {
	Path string
	Op   string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// UnknownDeviceError reports a keyframe from a device that is not in the
// registry.
type UnknownDeviceError struct {
	DeviceID uint16
	Frame    int
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("frame %d: keyframe from unknown device %d", e.Frame, e.DeviceID)
}

// UnconfiguredVlanError reports a data frame whose VLAN (or lack of one)
// has no device mapping.
type UnconfiguredVlanError struct {
	VLAN   uint16
	Tagged bool
}

func (e *UnconfiguredVlanError) Error() string {
	if !e.Tagged {
		return "untagged frame and no wildcard device configured"
	}
	return fmt.Sprintf("vlan %d is not configured", e.VLAN)
}

// SkippedFrame wraps the reason a frame produced no record.
type SkippedFrame struct {
	Frame  int
	Reason error
}

func (e *SkippedFrame) Error() string {
	return fmt.Sprintf("frame %d skipped: %v", e.Frame, e.Reason)
}

func (e *SkippedFrame) Unwrap() error { return e.Reason }

// Classify returns the class of err. Errors outside the taxonomy are fatal.
func Classify(err error) ErrorClass {
	var (
		skipped *SkippedFrame
		vlan    *UnconfiguredVlanError
	)
	switch {
	case errors.As(err, &skipped),
		errors.As(err, &vlan),
		errors.Is(err, ErrMalformedFrame):
		return ClassSkip
	default:
		return ClassFatal
	}
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return err != nil && Classify(err) == ClassFatal
}

// IsSkip reports whether err only drops the current frame.
func IsSkip(err error) bool {
	return err != nil && Classify(err) == ClassSkip
}
