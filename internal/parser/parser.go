package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"tickstamp/internal/errs"
	"tickstamp/internal/timestamp"
)

// Kind is the outcome of classifying one frame.
type Kind int

const (
	KindData Kind = iota
	KindKeyframe
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindKeyframe:
		return "keyframe"
	case KindSkip:
		return "skip"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	keyframeProtocol layers.IPProtocol = 253
	keyframeTTL                        = 64

	// Keyframe payload layout (big-endian):
	//   0..7   device clock, low 31 bits are the tick counter
	//   8..15  UTC nanoseconds
	//   40..41 device id
	kfClockOff   = 0
	kfUTCOff     = 8
	kfDeviceOff  = 40
	kfMinPayload = kfDeviceOff + 2
	tickFieldLen = 4
	fcsLen       = 4
)

// Frame holds the fields extracted from one captured frame.
type Frame struct {
	Kind     Kind
	Keyframe timestamp.Keyframe // set for KindKeyframe

	RawTicks uint32 // wire value of the tick field
	Ticks    uint32 // unpacked 31-bit counter

	VLAN   uint16
	Tagged bool
	SrcIP  string

	Err error // why a KindSkip frame was dropped
}

// Classifier decides whether a frame is a keyframe or a data frame and
// extracts the fields needed to timestamp it.
type Classifier struct {
	linkType    layers.LinkType
	fcs         bool
	inspectVLAN bool
}

// NewClassifier creates a classifier for frames of the given link type.
// fcs reports whether frames keep their trailing frame-check sequence;
// inspectVLAN enables 802.1Q tag extraction for data frames.
func NewClassifier(linkType layers.LinkType, fcs, inspectVLAN bool) *Classifier {
	return &Classifier{linkType: linkType, fcs: fcs, inspectVLAN: inspectVLAN}
}

// Classify inspects data without modifying it.
func (c *Classifier) Classify(data []byte) Frame {
	pkt := gopacket.NewPacket(data, c.linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	f := Frame{SrcIP: sourceAddr(pkt)}

	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok && isKeyframe(ip4) {
		kf, err := parseKeyframe(ip4.Payload)
		if err != nil {
			return skip(f, err)
		}
		f.Kind = KindKeyframe
		f.Keyframe = kf
		f.Ticks = kf.ASICTicks
		return f
	}

	if c.inspectVLAN {
		vlan, tagged, err := vlanTag(pkt)
		if err != nil {
			return skip(f, err)
		}
		f.VLAN, f.Tagged = vlan, tagged
	}

	raw, err := c.tickField(data)
	if err != nil {
		return skip(f, err)
	}
	f.Kind = KindData
	f.RawTicks = raw
	f.Ticks = timestamp.UnpackTicks(raw)
	return f
}

func isKeyframe(ip4 *layers.IPv4) bool {
	return ip4.Protocol == keyframeProtocol && ip4.TTL == keyframeTTL
}

func parseKeyframe(payload []byte) (timestamp.Keyframe, error) {
	if len(payload) < kfMinPayload {
		return timestamp.Keyframe{}, fmt.Errorf("keyframe payload of %d bytes: %w", len(payload), errs.ErrMalformedFrame)
	}
	return timestamp.Keyframe{
		ASICTicks: timestamp.MaskTicks(binary.BigEndian.Uint64(payload[kfClockOff:])),
		UTCNanos:  binary.BigEndian.Uint64(payload[kfUTCOff:]),
		DeviceID:  binary.BigEndian.Uint16(payload[kfDeviceOff:]),
	}, nil
}

// tickField returns the 4 bytes before the end of the frame, or before
// the frame-check sequence when one is present.
func (c *Classifier) tickField(data []byte) (uint32, error) {
	end := len(data)
	if c.fcs {
		end -= fcsLen
	}
	if end < tickFieldLen {
		return 0, fmt.Errorf("frame of %d bytes has no tick field: %w", len(data), errs.ErrMalformedFrame)
	}
	return binary.BigEndian.Uint32(data[end-tickFieldLen : end]), nil
}

func skip(f Frame, err error) Frame {
	f.Kind = KindSkip
	f.Err = err
	return f
}
